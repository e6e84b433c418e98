package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/devportal/internal/application/dto"
	appservice "github.com/turtacn/devportal/internal/application/service"
	"github.com/turtacn/devportal/pkg/logger"
)

// UsageRecorder records one usage row per authenticated request after the
// handler runs. Recording failures never affect the response.
func UsageRecorder(keys appservice.APIKeyAppService, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		key := APIKeyFromContext(c)
		if key == nil {
			return
		}

		err := keys.RecordUsage(c.Request.Context(), &dto.RecordUsageRequest{
			APIKeyID:   key.ID,
			Method:     c.Request.Method,
			Endpoint:   c.FullPath(),
			StatusCode: c.Writer.Status(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		if err != nil {
			log.Warn(c.Request.Context(), "usage recording failed",
				logger.String("key_id", key.KeyID))
		}
	}
}
