package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/dbx"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/users"
	"github.com/google/uuid"
)

const msgRefreshUsed = "Refresh token is expired or used"

// Login verifies credentials and starts a new session. Unknown logins and
// wrong passwords fail with the same message.
func (s *UserService) Login(ctx context.Context, login, password string) (*Session, error) {
	sess, err := s.login(ctx, login, password)
	s.metrics.Login(loginOutcome(err))
	return sess, err
}

func (s *UserService) login(ctx context.Context, login, password string) (*Session, error) {
	const op = "users.Login"

	login = users.NormalizeLogin(login)
	if login == "" || password == "" {
		return nil, common.E(op, common.ErrorValidation, "Username or email and password are required")
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.equalizeTiming(password)
			return nil, common.E(op, common.ErrorUnauthorized, msgInvalidCredentials)
		}
		return nil, internal(op, "USER_LOOKUP_FAILED", err, "login", login)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, internal(op, "PASSWORD_VERIFY_FAILED", err, "user_id", user.ID)
	}
	if !ok {
		return nil, common.E(op, common.ErrorUnauthorized, msgInvalidCredentials)
	}

	tokens, err := s.issuer.IssuePair(user)
	if err != nil {
		return nil, internal(op, "TOKEN_ISSUE_FAILED", err, "user_id", user.ID)
	}

	if err := repo.SetRefreshToken(ctx, user.ID, &tokens.RefreshToken); err != nil {
		return nil, internal(op, "REFRESH_TOKEN_STORE_FAILED", err, "user_id", user.ID)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)

	return &Session{User: user.Public(), Tokens: tokens}, nil
}

// RefreshSession exchanges a live refresh token for a new pair. The
// presented token stops being valid as soon as the new one is stored.
func (s *UserService) RefreshSession(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	tokens, err := s.refreshSession(ctx, refreshToken)
	s.metrics.Refresh(refreshOutcome(err))
	return tokens, err
}

func (s *UserService) refreshSession(ctx context.Context, presented string) (*models.TokenPair, error) {
	const op = "users.RefreshSession"

	if strings.TrimSpace(presented) == "" {
		return nil, common.E(op, common.ErrorUnauthorized, msgUnauthorized)
	}

	claims, err := s.issuer.Verify(presented, auth.RefreshToken)
	if err != nil {
		return nil, tokenError(op, "Refresh token", err)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, common.Wrap(op, common.ErrorUnauthorized, "Invalid refresh token", common.ErrInvalidToken)
	}

	var tokens *models.TokenPair

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.Wrap(op, common.ErrorUnauthorized, "Invalid refresh token", common.ErrInvalidToken)
			}
			return internal(op, "USER_LOOKUP_FAILED", err, "user_id", claims.UserID)
		}

		if user.RefreshToken == nil ||
			subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
			return common.Wrap(op, common.ErrorUnauthorized, msgRefreshUsed, common.ErrTokenReused)
		}

		next, err := s.issuer.IssuePair(user)
		if err != nil {
			return internal(op, "TOKEN_ISSUE_FAILED", err, "user_id", user.ID)
		}

		swapped, err := repo.SwapRefreshToken(ctx, user.ID, presented, next.RefreshToken)
		if err != nil {
			return internal(op, "REFRESH_TOKEN_STORE_FAILED", err, "user_id", user.ID)
		}
		if !swapped {
			return common.Wrap(op, common.ErrorUnauthorized, msgRefreshUsed, common.ErrTokenReused)
		}

		tokens = next
		return nil
	})
	if err != nil {
		var ce *common.Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, internal(op, "REFRESH_TX_FAILED", err, "user_id", claims.UserID)
	}

	return tokens, nil
}

// Logout clears the stored refresh token. Logging out twice is not an error.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	const op = "users.Logout"

	if strings.TrimSpace(userID) == "" {
		return common.E(op, common.ErrorUnauthorized, msgUnauthorized)
	}

	if err := s.repomanager.Users(s.db).SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.E(op, common.ErrorNotFound, msgUserNotFound)
		}
		return internal(op, "REFRESH_TOKEN_CLEAR_FAILED", err, "user_id", userID)
	}

	s.logger.Info(ctx, "user logged out", "user_id", userID)

	return nil
}

// Authenticate verifies an access token and returns its claims.
func (s *UserService) Authenticate(accessToken string) (*auth.Claims, error) {
	const op = "users.Authenticate"

	if strings.TrimSpace(accessToken) == "" {
		return nil, common.E(op, common.ErrorUnauthorized, msgUnauthorized)
	}

	claims, err := s.issuer.Verify(accessToken, auth.AccessToken)
	if err != nil {
		return nil, tokenError(op, "Access token", err)
	}

	return claims, nil
}

// tokenError keeps expired and invalid tokens apart so clients can decide
// between re-login and treating the token as tampered.
func tokenError(op, what string, err error) error {
	if errors.Is(err, common.ErrTokenExpired) {
		return common.Wrap(op, common.ErrorUnauthorized, what+" expired", common.ErrTokenExpired)
	}
	return common.Wrap(op, common.ErrorUnauthorized, "Invalid "+strings.ToLower(what), common.ErrInvalidToken)
}

func loginOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch common.KindOf(err) {
	case common.ErrorValidation:
		return metrics.OutcomeValidation
	case common.ErrorUnauthorized:
		return metrics.OutcomeUnauthorized
	default:
		return metrics.OutcomeError
	}
}

func refreshOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, common.ErrInvalidToken):
		return metrics.OutcomeInvalid
	case errors.Is(err, common.ErrTokenReused):
		return metrics.OutcomeReused
	case errors.Is(err, common.ErrorUnauthorized):
		return metrics.OutcomeUnauthorized
	default:
		return metrics.OutcomeError
	}
}
