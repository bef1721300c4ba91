// Package services contains server-side business logic. UserService is the
// session controller: it registers accounts, logs users in, rotates refresh
// tokens, ends sessions and changes passwords, translating every inner
// failure into a *common.Error with an abstract kind.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/repomanager"
	"github.com/samber/oops"
)

// TokenIssuer issues token pairs and verifies presented tokens.
type TokenIssuer interface {
	IssuePair(u *models.User) (*models.TokenPair, error)
	Verify(token string, kind auth.TokenKind) (*auth.Claims, error)
}

// MediaStorage stores uploaded files referenced by local path.
type MediaStorage interface {
	Upload(ctx context.Context, path string) (*models.MediaRef, error)
	Delete(ctx context.Context, publicID string) error
}

// Recorder counts operation outcomes.
type Recorder interface {
	Registration(outcome string)
	Login(outcome string)
	Refresh(outcome string)
}

// Session is the result of a successful login.
type Session struct {
	User   *models.PublicUser
	Tokens *models.TokenPair
}

const (
	msgInternal           = "Something went wrong"
	msgInvalidCredentials = "Invalid credentials"
	msgUnauthorized       = "Unauthorized request"
	msgUserNotFound       = "User not found"
)

// dummyPassword feeds the timing-equalizing hash comparison for unknown users.
const dummyPassword = "vidtube-timing-equalizer"

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      TokenIssuer
	hasher      auth.PasswordHasher
	media       MediaStorage
	metrics     Recorder
	logger      logging.Logger
	dummyHash   func() (string, error)
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, issuer TokenIssuer, hasher auth.PasswordHasher,
	media MediaStorage, metrics Recorder, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		hasher:      hasher,
		media:       media,
		metrics:     metrics,
		logger:      logger.With("module", "user_service"),
		dummyHash: sync.OnceValues(func() (string, error) {
			return hasher.Hash(dummyPassword)
		}),
	}
}

// CurrentUser returns the public view of the authenticated identity.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	const op = "users.CurrentUser"

	if strings.TrimSpace(userID) == "" {
		return nil, common.E(op, common.ErrorUnauthorized, msgUnauthorized)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.E(op, common.ErrorNotFound, msgUserNotFound)
		}
		return nil, internal(op, "USER_LOOKUP_FAILED", err, "user_id", userID)
	}

	return user.Public(), nil
}

// internal hides err behind the generic message and tags it for logs.
func internal(op, code string, err error, kv ...any) error {
	return common.Wrap(op, common.ErrorInternal, msgInternal, oops.Code(code).With(kv...).Wrap(err))
}

// equalizeTiming spends one hash comparison so unknown logins cost the same
// as wrong passwords.
func (s *UserService) equalizeTiming(password string) {
	hash, err := s.dummyHash()
	if err != nil {
		return
	}
	_, _ = s.hasher.Verify(password, hash)
}
