package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// ============================================================================
// Request Errors (Category: 01)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Bad request",
		MessageZH: "请求格式错误",
	})

	// ErrInvalidParam indicates invalid parameter.
	ErrInvalidParam = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	})

	// ErrValidationFailed indicates validation failure.
	ErrValidationFailed = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 4),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Validation failed",
		MessageZH: "数据验证失败",
	})

	// ErrRequestTooLarge indicates the request body exceeds the configured limit.
	ErrRequestTooLarge = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 5),
		HTTP:      http.StatusRequestEntityTooLarge,
		GRPCCode:  codes.ResourceExhausted,
		MessageEN: "Request body too large",
		MessageZH: "请求体过大",
	})
)

// ============================================================================
// Resource Errors (Category: 04)
// ============================================================================

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryResource, 0),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	})

	// ErrRouteNotFound indicates route not found.
	ErrRouteNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryResource, 4),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Route not found",
		MessageZH: "路由不存在",
	})
)

// ============================================================================
// Internal Errors (Category: 07)
// ============================================================================

var (
	// ErrInternal indicates an internal server error.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})

	// ErrPanic indicates a recovered panic.
	ErrPanic = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 2),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})
)

// ============================================================================
// Database Errors (Category: 08)
// ============================================================================

// ErrDatabase indicates a database error.
var ErrDatabase = Register(&Errno{
	Code:      MakeCode(ServiceCommon, CategoryDatabase, 0),
	HTTP:      http.StatusInternalServerError,
	GRPCCode:  codes.Internal,
	MessageEN: "Database error",
	MessageZH: "数据库错误",
})

// ============================================================================
// Timeout Errors (Category: 11)
// ============================================================================

// ErrTimeout indicates operation timeout.
var ErrTimeout = Register(&Errno{
	Code:      MakeCode(ServiceCommon, CategoryTimeout, 0),
	HTTP:      http.StatusGatewayTimeout,
	GRPCCode:  codes.DeadlineExceeded,
	MessageEN: "Operation timeout",
	MessageZH: "操作超时",
})

// ============================================================================
// Configuration Errors (Category: 12)
// ============================================================================

// ErrConfigInvalid indicates invalid configuration.
var ErrConfigInvalid = Register(&Errno{
	Code:      MakeCode(ServiceCommon, CategoryConfig, 2),
	HTTP:      http.StatusInternalServerError,
	GRPCCode:  codes.Internal,
	MessageEN: "Invalid configuration",
	MessageZH: "配置无效",
})
