package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lambda-janitor/internal/shared/server/respond"
)

const principalKey = "principal"

// OpsToken guards ops endpoints with a static bearer token. With no token
// configured every request is rejected.
func OpsToken(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			respond.Error(c, http.StatusForbidden, "forbidden", "ops token is not configured", nil)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		provided := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(principalKey, "ops")
		c.Next()
	}
}

// PrincipalFromContext returns the caller identity set by OpsToken.
func PrincipalFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(principalKey)
	if p, ok := val.(string); ok {
		return p
	}
	return ""
}
