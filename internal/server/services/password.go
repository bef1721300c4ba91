package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/dbx"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
)

// ChangePassword replaces the password hash after checking oldPassword.
// The stored refresh token is cleared in the same transaction, so every
// existing session has to log in again.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "users.ChangePassword"

	if strings.TrimSpace(userID) == "" {
		return common.E(op, common.ErrorUnauthorized, msgUnauthorized)
	}
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return common.E(op, common.ErrorValidation, "Old and new password are required")
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.E(op, common.ErrorNotFound, msgUserNotFound)
		}
		return internal(op, "USER_LOOKUP_FAILED", err, "user_id", userID)
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return internal(op, "PASSWORD_VERIFY_FAILED", err, "user_id", userID)
	}
	if !ok {
		return common.E(op, common.ErrorUnauthorized, "Invalid old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return common.Wrap(op, common.ErrorValidation, "Password must be at most 72 bytes", err)
		}
		return internal(op, "PASSWORD_HASH_FAILED", err, "user_id", userID)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := repo.SetPasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return repo.SetRefreshToken(ctx, userID, nil)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.E(op, common.ErrorNotFound, msgUserNotFound)
		}
		return internal(op, "PASSWORD_UPDATE_FAILED", err, "user_id", userID)
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)

	return nil
}
