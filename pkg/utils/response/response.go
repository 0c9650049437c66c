// Package response defines the JSON envelope every HTTP endpoint answers with.
package response

import (
	"net/http"

	"github.com/kart-io/quizmind/pkg/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success).
	Code int `json:"code"`

	// HTTPCode is the HTTP status code, repeated for client convenience.
	HTTPCode int `json:"http_code,omitempty"`

	Message string `json:"message"`

	// Data contains the response payload (nil for errors).
	Data interface{} `json:"data,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// Success creates a 200 response with data.
func Success(data interface{}) *Response {
	return SuccessWithStatus(http.StatusOK, data)
}

// SuccessWithStatus creates a successful response with a non-200 status such
// as 201 Created or 202 Accepted.
func SuccessWithStatus(status int, data interface{}) *Response {
	return &Response{
		Code:     0,
		HTTPCode: status,
		Message:  "success",
		Data:     data,
	}
}

// Err creates an error response from an Errno with its English message.
func Err(e *errors.Errno) *Response {
	return ErrWithLang(e, "en")
}

// ErrWithLang creates an error response with a language-specific message.
// Messages customized with WithMessage are returned as is.
func ErrWithLang(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	msg := e.Message(lang)
	if registered, ok := errors.Lookup(e.Code); ok && registered.MessageEN != e.MessageEN {
		msg = e.MessageEN
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  msg,
	}
}

// WithRequestID adds request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus returns the HTTP status code for this response. Unset statuses
// are derived from the registered errno or, failing that, the code category.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryPermission:
		return http.StatusForbidden
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
