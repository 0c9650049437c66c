package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/utils/response"
)

// BodyLimit rejects requests whose declared Content-Length exceeds maxSize
// and caps the bytes actually read from the body.
func BodyLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = 4 << 20
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			logger.Warnw("request body too large",
				"path", c.Request.URL.Path,
				"content_length", c.Request.ContentLength,
				"max_size", maxSize,
			)
			response.Fail(c, errors.ErrRequestTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
