package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/gin-gonic/gin"
)

// CookieManager writes and clears the session cookies. Deletion reuses the
// attributes the cookies were set with, otherwise browsers keep them.
type CookieManager struct {
	prefix     string
	domain     string
	secure     bool
	sameSite   http.SameSite
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieManager(cfg *config.Config) *CookieManager {
	m := &CookieManager{
		prefix:     cfg.CookiePrefix,
		sameSite:   http.SameSiteLaxMode,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
	if cfg.IsProduction() {
		m.secure = true
		m.sameSite = http.SameSiteStrictMode
		m.domain = cfg.CookieDomain
	}
	return m
}

// Name returns the cookie name with the configured prefix.
func (m *CookieManager) Name(name string) string {
	if m.prefix == "" {
		return name
	}
	return m.prefix + "_" + name
}

// SetTokens writes both tokens as HTTP-only cookies.
func (m *CookieManager) SetTokens(c *gin.Context, tokens *models.TokenPair) {
	m.set(c, common.AccessTokenCookieName, tokens.AccessToken, int(m.accessTTL.Seconds()))
	m.set(c, common.RefreshTokenCookieName, tokens.RefreshToken, int(m.refreshTTL.Seconds()))
}

// ClearTokens expires both cookies.
func (m *CookieManager) ClearTokens(c *gin.Context) {
	m.set(c, common.AccessTokenCookieName, "", -1)
	m.set(c, common.RefreshTokenCookieName, "", -1)
}

// Get returns the cookie value, or "" when absent.
func (m *CookieManager) Get(c *gin.Context, name string) string {
	v, err := c.Cookie(m.Name(name))
	if err != nil {
		return ""
	}
	return v
}

func (m *CookieManager) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(m.sameSite)
	c.SetCookie(m.Name(name), value, maxAge, "/", m.domain, m.secure, true)
}
