package types

import (
	"errors"
	"strings"
)

// ErrorCode 统一错误码，同时用于 HTTP 响应体与日志字段
type ErrorCode string

// 网关与 API 通用错误码
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrModelOverloaded    ErrorCode = "MODEL_OVERLOADED"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// 视频任务错误码
const (
	ErrJobSubmission ErrorCode = "JOB_SUBMISSION"
	ErrJobQuery      ErrorCode = "JOB_QUERY"
	ErrJobFetch      ErrorCode = "JOB_FETCH"
	ErrJobTimeout    ErrorCode = "JOB_TIMEOUT"
	ErrJobFailed     ErrorCode = "JOB_FAILED"
	ErrJobNotReady   ErrorCode = "JOB_NOT_READY"
	ErrJobConflict   ErrorCode = "JOB_CONFLICT"
)

// Error is a coded error. HTTPStatus of zero lets the API layer derive
// the status from Code.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Code))
	b.WriteString("] ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is 按错误码匹配，errors.Is(err, types.NewError(code, "")) 即可判断错误类别
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code != "" && t.Code == e.Code
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// 以下 With* 方法原地修改并返回接收者，便于链式构造

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError 沿错误链查找第一个 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsRetryable 报告错误链上的 *Error 是否标记为可重试；非结构化错误一律视为不可重试
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// GetErrorCode 返回错误链上的错误码，没有 *Error 时返回空串
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
