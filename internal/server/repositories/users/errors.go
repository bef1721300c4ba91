package users

import (
	"fmt"

	"github.com/dmitrijs2005/vidtube/internal/common"
)

// ConflictError reports a unique field that is already taken.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Unwrap() error { return common.ErrorConflict }

func conflictField(constraint string) string {
	switch constraint {
	case "users_username_key":
		return "username"
	case "users_email_key":
		return "email"
	default:
		return "user"
	}
}
