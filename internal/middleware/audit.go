package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
)

// Audit emits a structured log entry for every successful state-changing
// request, naming the authenticated actor. Failed requests are skipped; the
// access log already covers those.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.Writer.Header().Get("X-Request-ID")),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("event_request_id", id))
		}
		if claims, ok := c.Get(ContextUserKey); ok {
			if user, ok := claims.(*models.JWTClaims); ok {
				fields = append(fields,
					zap.String("actor_id", user.UserID),
					zap.String("actor_role", string(user.Role)),
				)
			}
		}
		logger.Info("audit", fields...)
	}
}
