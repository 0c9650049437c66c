package response

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/quizmind/pkg/errors"
)

// HeaderXRequestID is the header carrying the request ID.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// OK writes a successful response with the given status.
func OK(c *gin.Context, status int, data interface{}) {
	r := SuccessWithStatus(status, data).WithRequestID(RequestID(c.Request.Context()))
	c.JSON(r.HTTPStatus(), r)
}

// Fail writes an error response and aborts the handler chain. The message
// language follows the Accept-Language header.
func Fail(c *gin.Context, e *errors.Errno) {
	r := ErrWithLang(e, Lang(c)).WithRequestID(RequestID(c.Request.Context()))
	c.AbortWithStatusJSON(r.HTTPStatus(), r)
}

// Lang returns "zh" when the client prefers Chinese, "en" otherwise.
func Lang(c *gin.Context) string {
	if strings.HasPrefix(strings.ToLower(c.GetHeader("Accept-Language")), "zh") {
		return "zh"
	}
	return "en"
}
