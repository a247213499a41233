package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusreach/backend/internal/auth"
	"github.com/campusreach/backend/pkg/response"
)

const (
	// ContextUserID is the key for the caller's uuid.UUID in gin context.
	ContextUserID = auth.ContextUserID
	// ContextAccountType is the key for the caller's models.AccountType.
	ContextAccountType = "account_type"
	// ContextUserEmail is the key for the caller's email.
	ContextUserEmail = "user_email"
)

// TokenValidator is satisfied by *auth.JWTService.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWT returns a middleware that validates the bearer token and sets the caller in context.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := tokens.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextAccountType, claims.AccountType)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
