package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// requireAuth verifies the access token from the cookie or the bearer
// header and stores its claims in the gin context.
func (h *Handler) requireAuth(c *gin.Context) {
	token := h.cookies.Get(c, common.AccessTokenCookieName)
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}

	claims, err := h.users.Authenticate(token)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// userID returns the authenticated identity, or "" outside requireAuth.
func userID(c *gin.Context) string {
	v, ok := c.Get(claimsKey)
	if !ok {
		return ""
	}
	claims, ok := v.(*auth.Claims)
	if !ok {
		return ""
	}
	return claims.UserID
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
