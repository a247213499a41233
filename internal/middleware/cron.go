package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusreach/backend/pkg/response"
)

// CronSecret guards scheduler endpoints with a shared bearer secret.
// An empty secret disables the check so sweeps can be triggered by hand in development.
func CronSecret(secret string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secret == "" {
		logger.Warn("CRON_SECRET not set; cron endpoints are unauthenticated")
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			logger.Warn("cron request rejected", zap.String("path", c.Request.URL.Path), zap.String("client_ip", c.ClientIP()))
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
