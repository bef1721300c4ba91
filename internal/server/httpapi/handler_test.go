package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const aliceID = "0b7e4f0e-58c2-4d53-8c55-7f0f1c1a9a11"

type fakeUsers struct {
	registered   services.RegisterInput
	avatarExists bool
	registerErr  error

	login, password string
	loginErr        error

	refreshed  string
	refreshErr error

	loggedOut   string
	changed     []string
	changeErr   error
	internalErr error
}

var alice = &models.PublicUser{ID: aliceID, Username: "alice", Email: "alice@x.com"}

func (f *fakeUsers) Register(_ context.Context, in services.RegisterInput) (*models.PublicUser, error) {
	f.registered = in
	if in.AvatarPath != "" {
		_, err := os.Stat(in.AvatarPath)
		f.avatarExists = err == nil
	}
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return alice, nil
}

func (f *fakeUsers) Login(_ context.Context, login, password string) (*services.Session, error) {
	f.login, f.password = login, password
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.Session{User: alice, Tokens: &models.TokenPair{AccessToken: "acc-1", RefreshToken: "ref-1"}}, nil
}

func (f *fakeUsers) RefreshSession(_ context.Context, token string) (*models.TokenPair, error) {
	f.refreshed = token
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &models.TokenPair{AccessToken: "acc-2", RefreshToken: "ref-2"}, nil
}

func (f *fakeUsers) Logout(_ context.Context, userID string) error {
	f.loggedOut = userID
	return nil
}

func (f *fakeUsers) ChangePassword(_ context.Context, userID, oldPassword, newPassword string) error {
	f.changed = []string{userID, oldPassword, newPassword}
	return f.changeErr
}

func (f *fakeUsers) CurrentUser(context.Context, string) (*models.PublicUser, error) {
	if f.internalErr != nil {
		return nil, f.internalErr
	}
	return alice, nil
}

func (f *fakeUsers) Authenticate(token string) (*auth.Claims, error) {
	switch token {
	case "good-access":
		return &auth.Claims{UserID: aliceID}, nil
	case "expired-access":
		return nil, common.Wrap("test", common.ErrorUnauthorized, "Access token expired", common.ErrTokenExpired)
	case "":
		return nil, common.E("test", common.ErrorUnauthorized, "Unauthorized request")
	default:
		return nil, common.Wrap("test", common.ErrorUnauthorized, "Invalid access token", common.ErrInvalidToken)
	}
}

func newTestRouter(t *testing.T, env string, opts ...func(*config.Config)) (*gin.Engine, *fakeUsers) {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Environment = env
	cfg.CookieDomain = "vidtube.example"
	for _, o := range opts {
		o(cfg)
	}

	fu := &fakeUsers{}
	h := NewHandler(fu, NewCookieManager(cfg), cfg.MaxUploadBytes, logging.Nop())
	return NewRouter(h, prometheus.NewRegistry(), logging.Nop()), fu
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ApiErrorResponse {
	t.Helper()
	var out ApiErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func cookiesByName(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestLogin_SetsCookiesAndBody(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)

	w := do(r, jsonReq(http.MethodPost, "/api/v1/users/login", `{"email":"alice@x.com","password":"p1"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@x.com", fu.login)
	assert.Equal(t, "p1", fu.password)

	var body struct {
		StatusCode int             `json:"statusCode"`
		Success    bool            `json:"success"`
		Data       sessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, http.StatusOK, body.StatusCode)
	assert.Equal(t, "acc-1", body.Data.AccessToken)
	assert.Equal(t, "ref-1", body.Data.RefreshToken)
	assert.Equal(t, aliceID, body.Data.User.ID)

	cookies := cookiesByName(w)
	require.Contains(t, cookies, common.AccessTokenCookieName)
	require.Contains(t, cookies, common.RefreshTokenCookieName)

	access := cookies[common.AccessTokenCookieName]
	assert.Equal(t, "acc-1", access.Value)
	assert.True(t, access.HttpOnly)
	assert.False(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, "/", access.Path)
	assert.Empty(t, access.Domain)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)
	assert.Equal(t, int((240 * time.Hour).Seconds()), cookies[common.RefreshTokenCookieName].MaxAge)
}

func TestLogin_ProductionCookies(t *testing.T) {
	r, _ := newTestRouter(t, config.EnvProduction)

	w := do(r, jsonReq(http.MethodPost, "/api/v1/users/login", `{"username":"alice","password":"p1"}`))
	require.Equal(t, http.StatusOK, w.Code)

	for _, c := range w.Result().Cookies() {
		assert.True(t, c.Secure, c.Name)
		assert.True(t, c.HttpOnly, c.Name)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite, c.Name)
		assert.Equal(t, "vidtube.example", c.Domain, c.Name)
	}
}

func TestLogin_EmailPreferredOverUsername(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)

	w := do(r, jsonReq(http.MethodPost, "/api/v1/users/login",
		`{"username":"mallory","email":"alice@x.com","password":"p1"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@x.com", fu.login)

	w = do(r, jsonReq(http.MethodPost, "/api/v1/users/login",
		`{"username":"alice","email":"  ","password":"p1"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", fu.login)
}

func TestLogin_FormAndFailure(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)
	fu.loginErr = common.E("users.Login", common.ErrorUnauthorized, "Invalid credentials")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader("username=alice&password=nope"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := do(r, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "alice", fu.login)
	assert.Empty(t, w.Result().Cookies())

	body := decodeError(t, w)
	assert.False(t, body.Success)
	assert.Equal(t, "Invalid credentials", body.Message)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, CodeUnauthorized, body.Errors[0].Code)
}

func TestRefreshToken_CookieThenBody(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: "ref-cookie"})
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ref-cookie", fu.refreshed)
	assert.Equal(t, "ref-2", cookiesByName(w)[common.RefreshTokenCookieName].Value)

	w = do(r, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", `{"refreshToken":"ref-body"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ref-body", fu.refreshed)
}

func TestRefreshToken_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"expired", common.Wrap("x", common.ErrorUnauthorized, "Refresh token expired", common.ErrTokenExpired), CodeTokenExpired},
		{"invalid", common.Wrap("x", common.ErrorUnauthorized, "Invalid refresh token", common.ErrInvalidToken), CodeInvalidToken},
		{"reused", common.Wrap("x", common.ErrorUnauthorized, "Refresh token is expired or used", common.ErrTokenReused), CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, fu := newTestRouter(t, config.EnvDevelopment)
			fu.refreshErr = tt.err

			w := do(r, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", `{"refreshToken":"r"}`))
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Errors[0].Code)
		})
	}
}

func TestProtectedRoutes_RequireAccessToken(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, decodeError(t, w).Errors[0].Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer expired-access")
	w = do(r, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeTokenExpired, decodeError(t, w).Errors[0].Code)
	assert.Empty(t, fu.loggedOut)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer good-access")
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLogout_ClearsCookies(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvProduction)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: "good-access"})
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, aliceID, fu.loggedOut)

	cookies := cookiesByName(w)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge, c.Name)
		assert.Empty(t, c.Value, c.Name)
		assert.True(t, c.Secure, c.Name)
		assert.True(t, c.HttpOnly, c.Name)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite, c.Name)
		assert.Equal(t, "vidtube.example", c.Domain, c.Name)
		assert.Equal(t, "/", c.Path, c.Name)
	}
}

func TestChangePassword_ClearsCookies(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)

	req := jsonReq(http.MethodPost, "/api/v1/users/change-password", `{"oldPassword":"old","newPassword":"new"}`)
	req.Header.Set("Authorization", "Bearer good-access")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{aliceID, "old", "new"}, fu.changed)
	assert.Equal(t, -1, cookiesByName(w)[common.RefreshTokenCookieName].MaxAge)

	fu.changeErr = common.E("users.ChangePassword", common.ErrorUnauthorized, "Invalid old password")
	req = jsonReq(http.MethodPost, "/api/v1/users/change-password", `{"oldPassword":"x","newPassword":"new"}`)
	req.Header.Set("Authorization", "Bearer good-access")
	w = do(r, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid old password", decodeError(t, w).Message)
	assert.Empty(t, w.Result().Cookies())
}

func TestCurrentUser_InternalErrorIsGeneric(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)
	fu.internalErr = common.Wrap("users.CurrentUser", common.ErrorInternal, "Something went wrong", io.ErrUnexpectedEOF)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer good-access")
	w := do(r, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "Something went wrong", body.Message)
	assert.Equal(t, CodeInternal, body.Errors[0].Code)
	assert.NotContains(t, w.Body.String(), "unexpected EOF")
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRegister_SpoolsUploads(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment)

	req := multipartRequest(t,
		map[string]string{"fullname": "Alice A", "email": "alice@x.com", "username": "alice", "password": "p1"},
		map[string]string{"avatar": "me.png"},
	)
	w := do(r, req)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "alice", fu.registered.Username)
	assert.True(t, strings.HasSuffix(fu.registered.AvatarPath, "avatar.png"))
	assert.True(t, fu.avatarExists)
	assert.Empty(t, fu.registered.CoverImagePath)

	_, err := os.Stat(fu.registered.AvatarPath)
	assert.True(t, os.IsNotExist(err), "spooled file should be removed after the request")
}

func TestRegister_BodyOverLimitRejected(t *testing.T) {
	r, fu := newTestRouter(t, config.EnvDevelopment, func(c *config.Config) { c.MaxUploadBytes = 64 })

	req := multipartRequest(t,
		map[string]string{"fullname": "Alice A", "email": "alice@x.com", "username": "alice", "password": "p1"},
		map[string]string{"avatar": "me.png"},
	)
	w := do(r, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, CodeValidation, body.Errors[0].Code)
	assert.Equal(t, "Upload is too large", body.Message)
	assert.Empty(t, fu.registered.Username, "service must not be called")
}

func TestMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	assert.Equal(t, gin.DebugMode, Mode(cfg))

	cfg.Environment = config.EnvProduction
	assert.Equal(t, gin.ReleaseMode, Mode(cfg))
}

func TestRegister_ErrorStatuses(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{common.E("x", common.ErrorValidation, "Avatar file is required"), http.StatusBadRequest, CodeValidation},
		{common.E("x", common.ErrorConflict, "User with email or username already exists"), http.StatusConflict, CodeConflict},
		{common.E("x", common.ErrorNotFound, "User not found"), http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r, fu := newTestRouter(t, config.EnvDevelopment)
			fu.registerErr = tt.err

			w := do(r, multipartRequest(t, map[string]string{"username": "alice"}, nil))
			require.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.code, body.Errors[0].Code)
			assert.Equal(t, common.MessageOf(tt.err), body.Message)
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, config.EnvDevelopment)

	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestCookieManager_Prefix(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CookiePrefix = "vt"

	m := NewCookieManager(cfg)
	assert.Equal(t, "vt_accessToken", m.Name(common.AccessTokenCookieName))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.AddCookie(&http.Cookie{Name: "vt_refreshToken", Value: "r"})

	assert.Equal(t, "r", m.Get(c, common.RefreshTokenCookieName))
	assert.Empty(t, m.Get(c, common.AccessTokenCookieName))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer "))
}
