package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"craftboost/api/internal/config"
	"craftboost/api/internal/models"
	"craftboost/api/internal/security"
)

const (
	ContextUserKey   = "current_user"
	ContextClaimsKey = "access_claims"
)

// SessionChecker verifies that the session named in a token is still
// live and returns its user id.
type SessionChecker interface {
	SessionUserID(ctx context.Context, sessionID string) (string, error)
}

// UserLoader resolves a user id to the stored user.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Auth validates the bearer token, checks the backing session is still
// live (so logout takes effect before token expiry), and loads the
// user into the request context.
func Auth(cfg *config.AppConfig, sessions SessionChecker, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		claims, err := security.ParseAccessToken(strings.TrimPrefix(authHeader, "Bearer "), cfg.Security.JWTAccessSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		userID, err := sessions.SessionUserID(c.Request.Context(), claims.SessionID)
		if err != nil || userID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_expired"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}

		c.Set(ContextClaimsKey, *claims)
		c.Set(ContextUserKey, user)

		c.Next()
	}
}
