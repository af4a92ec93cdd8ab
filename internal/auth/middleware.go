package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/quorumhq/quorum/internal/errors"
	"github.com/quorumhq/quorum/internal/logger"
)

const userIDKey = "user_id"

// Middleware validates bearer tokens and attaches the user ID to the
// request context.
type Middleware struct {
	validator TokenValidator
}

// NewMiddleware creates an auth middleware around a token validator.
func NewMiddleware(validator TokenValidator) *Middleware {
	return &Middleware{validator: validator}
}

// RequireAuth rejects requests without a valid bearer token.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apierrors.AbortWithUnauthorized(c, "Authorization header is required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			apierrors.AbortWithUnauthorized(c, "Authorization header must be a Bearer token")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			apierrors.AbortWithUnauthorized(c, "Bearer token is empty")
			return
		}

		userID, err := m.validator.ValidateToken(token)
		if err != nil {
			apierrors.AbortWithUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(userIDKey, userID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// GetUserID extracts the authenticated user ID from the Gin context.
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}
