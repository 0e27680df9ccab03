package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/nphies-rag/pkg/utils/errors"
	"github.com/kart-io/nphies-rag/pkg/utils/response"
)

// RecoveryConfig defines the config for Recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace includes stack trace in error response (for development).
	EnableStackTrace bool
}

// Recovery returns a middleware that recovers from panics.
// It converts panics to JSON error responses using the error code system.
func Recovery() gin.HandlerFunc {
	return RecoveryWithConfig(RecoveryConfig{})
}

// RecoveryWithConfig returns a Recovery middleware with custom config.
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Errorw("panic recovered",
					"request_id", GetRequestID(c.Request.Context()),
					"path", c.Request.URL.Path,
					"panic", r,
					"stack", string(stack),
				)

				var err *errors.Errno
				if config.EnableStackTrace {
					err = errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v\n%s", r, string(stack)))
				} else {
					err = errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v", r))
				}
				response.Fail(c, err, "en")
			}
		}()
		c.Next()
	}
}
