// Package httputils provides HTTP utility functions.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/quizmind/pkg/errors"
	infralog "github.com/kart-io/quizmind/pkg/infra/logger"
	"github.com/kart-io/quizmind/pkg/utils/response"
)

// WriteResponse writes a 200 response, or the error response when err is set.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	WriteResponseWithStatus(c, http.StatusOK, err, data)
}

// WriteResponseWithStatus writes data with the given success status. Errors
// that are not an *errors.Errno are reported as internal errors.
func WriteResponseWithStatus(c *gin.Context, status int, err error, data interface{}) {
	if err != nil {
		e := errors.FromError(err)
		if e.HTTPStatus() >= http.StatusInternalServerError {
			infralog.GetLogger(c.Request.Context()).Errorw("request failed",
				"path", c.Request.URL.Path,
				"code", e.Code,
				"error", err.Error(),
			)
		}
		response.Fail(c, e)
		return
	}
	response.OK(c, status, data)
}
