package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	contextUserID   = "auth_user_id"
	contextUsername = "auth_username"
)

// Middleware validates the Bearer token and stores the claims on the gin
// context. Requests without a valid token get 401.
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be 'Bearer <token>'"})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextUsername, claims.Username)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or zero when auth is
// disabled.
func GetUserID(c *gin.Context) int64 {
	if v, ok := c.Get(contextUserID); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetUsername returns the authenticated username, or empty.
func GetUsername(c *gin.Context) string {
	if v, ok := c.Get(contextUsername); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}
