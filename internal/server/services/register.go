package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/users"
)

// RegisterInput carries the registration fields. AvatarPath is required;
// CoverImagePath is optional. Both are local files handed to MediaStorage.
type RegisterInput struct {
	Fullname       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// Register creates an identity. Media uploaded along the way is deleted
// again if the identity cannot be created.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	u, err := s.register(ctx, in)
	s.metrics.Registration(registrationOutcome(err))
	return u, err
}

func (s *UserService) register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	const op = "users.Register"

	fullname := strings.TrimSpace(in.Fullname)
	username := users.NormalizeUsername(in.Username)
	email := users.NormalizeEmail(in.Email)

	if fullname == "" || username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.E(op, common.ErrorValidation, "All fields are required")
	}
	if users.IsEmailLogin(username) {
		return nil, common.E(op, common.ErrorValidation, "Username must not contain @")
	}

	repo := s.repomanager.Users(s.db)

	exists, err := repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, internal(op, "USER_LOOKUP_FAILED", err, "username", username)
	}
	if exists {
		return nil, common.E(op, common.ErrorConflict, "User with email or username already exists")
	}

	if strings.TrimSpace(in.AvatarPath) == "" {
		return nil, common.E(op, common.ErrorValidation, "Avatar file is required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, common.Wrap(op, common.ErrorValidation, "Password must be at most 72 bytes", err)
		}
		return nil, internal(op, "PASSWORD_HASH_FAILED", err)
	}

	avatar, err := s.media.Upload(ctx, in.AvatarPath)
	if err != nil {
		return nil, internal(op, "AVATAR_UPLOAD_FAILED", err)
	}
	uploaded := []string{avatar.PublicID}

	var cover models.MediaRef
	if strings.TrimSpace(in.CoverImagePath) != "" {
		c, err := s.media.Upload(ctx, in.CoverImagePath)
		if err != nil {
			return nil, s.rollbackUploads(ctx, op, uploaded, internal(op, "COVER_UPLOAD_FAILED", err))
		}
		cover = *c
		uploaded = append(uploaded, c.PublicID)
	}

	created, err := repo.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		Fullname:     fullname,
		Avatar:       *avatar,
		CoverImage:   cover,
		PasswordHash: hash,
	})
	if err != nil {
		var conflict *users.ConflictError
		if errors.As(err, &conflict) {
			err = common.Wrap(op, common.ErrorConflict, "User with email or username already exists", conflict)
		} else {
			err = internal(op, "USER_CREATE_FAILED", err, "username", username)
		}
		return nil, s.rollbackUploads(ctx, op, uploaded, err)
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID)

	return created.Public(), nil
}

// rollbackUploads deletes every uploaded object. The request context may
// already be cancelled, so deletion runs detached from it. If any deletion
// fails the result is an internal error carrying both failures.
func (s *UserService) rollbackUploads(ctx context.Context, op string, publicIDs []string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, id := range publicIDs {
		if err := s.media.Delete(ctx, id); err != nil {
			logging.LogError(ctx, s.logger, "media rollback failed", err)
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return cause
	}

	return internal(op, "MEDIA_ROLLBACK_FAILED", errors.Join(append([]error{cause}, errs...)...))
}

func registrationOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch common.KindOf(err) {
	case common.ErrorValidation:
		return metrics.OutcomeValidation
	case common.ErrorConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
