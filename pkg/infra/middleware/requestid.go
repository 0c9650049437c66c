// Package middleware provides the gin middleware chain of the HTTP service.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/quizmind/pkg/id"
	infralog "github.com/kart-io/quizmind/pkg/infra/logger"
	"github.com/kart-io/quizmind/pkg/utils/response"
)

// RequestID reuses the client's X-Request-ID or generates a ULID, echoes it
// in the response header and stores it in the request context and its log
// fields.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(response.HeaderXRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = id.NewULID()
		}
		c.Header(response.HeaderXRequestID, requestID)
		ctx := response.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(infralog.WithRequestID(ctx, requestID))
		c.Next()
	}
}
