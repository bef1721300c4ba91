// Package users is the credential store: durable user identities with their
// password hash and the single live refresh token.
package users

import (
	"context"

	"github.com/dmitrijs2005/vidtube/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID and timestamps. A duplicate
	// username or email fails with *ConflictError.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// ExistsByUsernameOrEmail reports whether either value is taken as a
	// username or as an email.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// FindByLogin looks a user up by email when login contains "@" and by
	// username otherwise.
	// Returns common.ErrorNotFound when absent.
	FindByLogin(ctx context.Context, login string) (*models.User, error)

	// GetByID returns common.ErrorNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// SetRefreshToken overwrites the stored refresh token; nil clears it.
	SetRefreshToken(ctx context.Context, id string, token *string) error

	// SwapRefreshToken replaces the stored token with next only if it still
	// equals presented, and reports whether it did.
	SwapRefreshToken(ctx context.Context, id, presented, next string) (bool, error)

	SetPasswordHash(ctx context.Context, id, hash string) error
}
