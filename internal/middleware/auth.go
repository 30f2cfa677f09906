// ===========================================
// Package middleware - Session Authentication
// ===========================================
// The auth provider (session issuance, credentials, accounts) is an
// external collaborator. This middleware only extracts the bearer
// token and asks the provider to validate it.
// ===========================================

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/shortlink/internal/models"
)

// userIDKey is the gin context key the authenticated user id is
// stored under.
const userIDKey = "user_id"

// SessionValidator validates a session token with the auth provider
// and returns the account it belongs to.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (uuid.UUID, error)
}

// SessionAuth is the authentication middleware for the management API.
type SessionAuth struct {
	validator SessionValidator
}

// NewSessionAuth creates the auth middleware.
func NewSessionAuth(validator SessionValidator) *SessionAuth {
	return &SessionAuth{validator: validator}
}

// RequireSession returns middleware rejecting requests without a
// valid session before any handler logic runs.
func (a *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "Missing session token",
				Code:  models.ErrCodeUnauthorized,
			})
			c.Abort()
			return
		}

		userID, err := a.validator.Validate(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "Invalid or expired session",
				Code:  models.ErrCodeUnauthorized,
			})
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by RequireSession.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
