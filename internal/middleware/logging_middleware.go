// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"efi-access/internal/logging"
)

// EFIStatusKey is the context key handlers set to the firmware status name
// behind a failed request.
const EFIStatusKey = "efi_status"

// LoggingMiddleware logs every request once it completes. Firmware
// failures surface as 502 responses and are logged at warn level with their
// status name; other 5xx responses are errors.
func LoggingMiddleware(logger *logging.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		logger.LogAPIRequest(logging.APIRequest{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			UserAgent:  c.Request.UserAgent(),
			ClientIP:   c.ClientIP(),
			RequestID:  c.GetString(RequestIDKey),
			StatusCode: c.Writer.Status(),
			Duration:   time.Since(startTime),
			EFIStatus:  c.GetString(EFIStatusKey),
		})
	}
}
