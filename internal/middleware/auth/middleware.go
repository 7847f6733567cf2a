package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by TokenMiddleware.
const (
	ContextClaims   = "claims"
	ContextIdentity = "identity"
	ContextLevel    = "level"
)

// TokenMiddleware authenticates HTTP requests with an RCON session token in
// the Authorization header. tokens is called per request so a reloaded
// secret applies immediately.
func TokenMiddleware(tokens func() *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		// "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		m := tokens()
		if !m.Enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session tokens are disabled"})
			return
		}
		claims, err := m.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextIdentity, claims.Subject)
		c.Set(ContextLevel, claims.Level)
		c.Next()
	}
}

// RequireLevel rejects tokens below the privilege floor returned by floor.
func RequireLevel(floor func() int) gin.HandlerFunc {
	return func(c *gin.Context) {
		level, ok := c.Get(ContextLevel)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "privilege level not found in token"})
			return
		}
		lvl, ok := level.(int)
		if !ok || lvl < floor() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "insufficient privilege",
				"required": floor(),
				"current":  level,
			})
			return
		}
		c.Next()
	}
}
