// Package httpapi exposes the session controller over HTTP with gin. Tokens
// travel as HTTP-only cookies and are also returned in the response body for
// clients that do not keep cookies.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/services"
	"github.com/gin-gonic/gin"
)

// UserService is the part of services.UserService the handlers call.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, login, password string) (*services.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
	Authenticate(accessToken string) (*auth.Claims, error)
}

type Handler struct {
	users          UserService
	cookies        *CookieManager
	maxUploadBytes int64
	logger         logging.Logger
}

// NewHandler wires the handlers. maxUploadBytes bounds the registration
// body, files included.
func NewHandler(us UserService, cookies *CookieManager, maxUploadBytes int64, l logging.Logger) *Handler {
	return &Handler{
		users:          us,
		cookies:        cookies,
		maxUploadBytes: maxUploadBytes,
		logger:         l.With("module", "http_handler"),
	}
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type sessionResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

func (h *Handler) Register(c *gin.Context) {
	const op = "http.Register"

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	dir, err := os.MkdirTemp("", "vidtube-upload-*")
	if err != nil {
		abortWithError(c, h.logger, common.Wrap(op, common.ErrorInternal, "", err))
		return
	}
	defer os.RemoveAll(dir)

	avatar, err := h.spool(c, dir, "avatar")
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	cover, err := h.spool(c, dir, "coverImage")
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Fullname:       c.PostForm("fullname"),
		Email:          c.PostForm("email"),
		Username:       c.PostForm("username"),
		Password:       c.PostForm("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, user, "User registered successfully")
}

// spool saves the named multipart file into dir and returns its path, or ""
// when the request carries no such file.
func (h *Handler) spool(c *gin.Context, dir, field string) (string, error) {
	const op = "http.Register"

	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", common.Wrap(op, common.ErrorValidation, "Upload is too large", err)
		}
		return "", common.Wrap(op, common.ErrorValidation, "Invalid multipart form", err)
	}

	dst := filepath.Join(dir, field+filepath.Ext(filepath.Base(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", common.Wrap(op, common.ErrorInternal, "", err)
	}
	return dst, nil
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, h.logger, common.Wrap("http.Login", common.ErrorValidation, "Invalid request body", err))
		return
	}

	// Email identifies exactly one account, so it wins when both are sent.
	login := req.Email
	if strings.TrimSpace(login) == "" {
		login = req.Username
	}

	sess, err := h.users.Login(c.Request.Context(), login, req.Password)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.cookies.SetTokens(c, sess.Tokens)
	respond(c, http.StatusOK, sessionResponse{
		User:         sess.User,
		AccessToken:  sess.Tokens.AccessToken,
		RefreshToken: sess.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (h *Handler) RefreshToken(c *gin.Context) {
	token := h.cookies.Get(c, common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	tokens, err := h.users.RefreshSession(c.Request.Context(), token)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.cookies.SetTokens(c, tokens)
	respond(c, http.StatusOK, tokens, "Access token refreshed")
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), userID(c)); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.cookies.ClearTokens(c)
	respond(c, http.StatusOK, gin.H{}, "User logged out")
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, common.Wrap("http.ChangePassword", common.ErrorValidation, "Invalid request body", err))
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), userID(c), req.OldPassword, req.NewPassword); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.cookies.ClearTokens(c)
	respond(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

func (h *Handler) CurrentUser(c *gin.Context) {
	user, err := h.users.CurrentUser(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, user, "Current user fetched successfully")
}
