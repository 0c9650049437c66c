package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	infralog "github.com/kart-io/quizmind/pkg/infra/logger"
)

// Logger logs one line per request with the request's context log fields.
// Paths in skipPaths are not logged.
func Logger(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"latency_ms", latency.Milliseconds(),
		}

		log := infralog.GetLogger(c.Request.Context())
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Errorw("HTTP Request", fields...)
		case status >= 400:
			log.Warnw("HTTP Request", fields...)
		default:
			log.Infow("HTTP Request", fields...)
		}
	}
}
