package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/response"
)

// RequireAccountType returns a middleware that allows only the given account types.
func RequireAccountType(types ...models.AccountType) gin.HandlerFunc {
	allowed := make(map[models.AccountType]struct{})
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(c *gin.Context) {
		val, ok := c.Get(ContextAccountType)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		accountType, _ := val.(models.AccountType)
		if _, ok := allowed[accountType]; !ok {
			response.Forbidden(c, "not available for this account type")
			c.Abort()
			return
		}
		c.Next()
	}
}
