package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/types"
)

// maxRequestBody 请求体上限，图生视频的首帧以 base64 传入
const maxRequestBody = 20 << 20

const jsonContentType = "application/json; charset=utf-8"

// =============================================================================
// 📦 响应信封
// =============================================================================

// Response 统一 API 响应结构；内容路由不使用信封，直接返回存储的 JSON
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误体
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func envelope(r *http.Request) Response {
	resp := Response{Timestamp: time.Now()}
	if r != nil {
		resp.RequestID, _ = types.RequestID(r.Context())
	}
	return resp
}

func writeHeaders(w http.ResponseWriter, status int) {
	h := w.Header()
	h.Set("Content-Type", jsonContentType)
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
}

// WriteJSON 编码 data 并写出
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeHeaders(w, status)
	// 头已写出，编码错误无法再报告
	_ = json.NewEncoder(w).Encode(data)
}

// WriteRawJSON 原样写出已编码的 JSON，字段顺序与非 ASCII 字符保持不变
func WriteRawJSON(w http.ResponseWriter, status int, raw json.RawMessage) {
	writeHeaders(w, status)
	_, _ = w.Write(raw)
}

// WriteSuccess 200 + 成功信封
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	WriteEnvelope(w, r, http.StatusOK, data)
}

// WriteEnvelope 以指定状态码写入成功信封，视频任务创建使用 202
func WriteEnvelope(w http.ResponseWriter, r *http.Request, status int, data any) {
	resp := envelope(r)
	resp.Success = true
	resp.Data = data
	WriteJSON(w, status, resp)
}

// =============================================================================
// ❌ 错误响应
// =============================================================================

// statusByCode 错误码对应的 HTTP 状态；未列出的按 500 处理
var statusByCode = map[types.ErrorCode]int{
	types.ErrInvalidRequest: http.StatusBadRequest,
	types.ErrUnauthorized:   http.StatusUnauthorized,
	types.ErrForbidden:      http.StatusForbidden,
	types.ErrNotFound:       http.StatusNotFound,
	types.ErrRateLimited:    http.StatusTooManyRequests,
	types.ErrQuotaExceeded:  http.StatusPaymentRequired,
	types.ErrJobConflict:    http.StatusConflict,
	types.ErrJobNotReady:    http.StatusConflict,

	types.ErrUpstreamTimeout:    http.StatusGatewayTimeout,
	types.ErrJobTimeout:         http.StatusGatewayTimeout,
	types.ErrModelOverloaded:    http.StatusServiceUnavailable,
	types.ErrServiceUnavailable: http.StatusServiceUnavailable,
	types.ErrUpstreamError:      http.StatusBadGateway,
	types.ErrMalformedResponse:  http.StatusBadGateway,
	types.ErrJobSubmission:      http.StatusBadGateway,
	types.ErrJobQuery:           http.StatusBadGateway,
	types.ErrJobFetch:           http.StatusBadGateway,
	types.ErrJobFailed:          http.StatusBadGateway,
}

// StatusForCode 返回错误码的默认 HTTP 状态
func StatusForCode(code types.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError 写出 types.Error；未显式设置 HTTPStatus 时按错误码推导
func WriteError(w http.ResponseWriter, r *http.Request, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = StatusForCode(err.Code)
	}

	resp := envelope(r)
	resp.Error = &ErrorInfo{
		Code:      string(err.Code),
		Message:   err.Message,
		Retryable: err.Retryable,
	}

	if logger != nil {
		log := logger.Warn
		if status >= http.StatusInternalServerError {
			log = logger.Error
		}
		log("request failed",
			zap.String("code", string(err.Code)),
			zap.Int("status", status),
			zap.String("request_id", resp.RequestID),
			zap.String("message", err.Message),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, resp)
}

// WriteErr 写入任意错误，非 types.Error 收敛为不带细节的内部错误
func WriteErr(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	var apiErr *types.Error
	if !errors.As(err, &apiErr) {
		apiErr = types.NewError(types.ErrInternalError, "internal error").WithCause(err)
	}
	WriteError(w, r, apiErr, logger)
}

// WriteErrorMessage 以显式状态码写出错误
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, r, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// =============================================================================
// 🛡️ 请求解析
// =============================================================================

// DecodeJSONBody 严格解码请求体，未知字段视为错误；失败时已写出响应
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil || r.Body == http.NoBody {
		apiErr := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, r, apiErr, logger)
		return apiErr
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").WithCause(err)

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiErr = types.NewError(types.ErrInvalidRequest, "request body too large").
				WithCause(err).
				WithHTTPStatus(http.StatusRequestEntityTooLarge)
		}
		WriteError(w, r, apiErr, logger)
		return apiErr
	}
	return nil
}

// ValidateContentType 只接受 application/json（参数大小写不敏感）
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "application/json" {
		return true
	}
	WriteErrorMessage(w, r, http.StatusUnsupportedMediaType, types.ErrInvalidRequest,
		"Content-Type must be application/json", logger)
	return false
}
