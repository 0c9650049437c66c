package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/utils/response"
)

// Recovery turns a handler panic into a 500 response. The stack trace is
// logged, never returned to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", response.RequestID(c.Request.Context()),
				)
				response.Fail(c, errors.ErrPanic)
			}
		}()
		c.Next()
	}
}
