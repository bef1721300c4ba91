// Package auth issues and verifies the signed session tokens and hashes
// account passwords.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// TokenKind selects the secret and claim set a token is issued or verified with.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// Claims is the payload carried by both token kinds. Refresh tokens carry
// only the identity id.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Fullname string `json:"fullname,omitempty"`
}

// Issuer signs tokens with HS256. Access and refresh tokens use different
// secrets so that neither can be forged from the other's key.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer copies secrets and lifetimes out of cfg.
func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccessToken(u *models.User) (string, error) {
	now := i.now()
	return i.sign(AccessToken, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Fullname: u.Fullname,
	})
}

// IssueRefreshToken includes a random jti, so two refresh tokens issued for
// the same user within one second are still distinct.
func (i *Issuer) IssueRefreshToken(u *models.User) (string, error) {
	now := i.now()
	return i.sign(RefreshToken, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
		UserID: u.ID,
	})
}

// IssuePair issues an access and a refresh token for u.
func (i *Issuer) IssuePair(u *models.User) (*models.TokenPair, error) {
	access, err := i.IssueAccessToken(u)
	if err != nil {
		return nil, err
	}
	refresh, err := i.IssueRefreshToken(u)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature and expiry of a token of the given kind. It fails
// with common.ErrTokenExpired for a well-signed token past its expiry and
// common.ErrInvalidToken for anything else.
func (i *Issuer) Verify(token string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !parsed.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func (i *Issuer) secret(kind TokenKind) []byte {
	if kind == RefreshToken {
		return i.refreshSecret
	}
	return i.accessSecret
}

func (i *Issuer) sign(kind TokenKind, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	s, err := token.SignedString(i.secret(kind))
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("kind", kind.String()).Wrap(err)
	}

	return s, nil
}
