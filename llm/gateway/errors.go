package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/BaSui01/thucchien/types"
)

const providerName = "thucchien"

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error
func MapHTTPError(status int, msg string) *types.Error {
	var code types.ErrorCode
	retryable := false

	switch status {
	case http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case http.StatusForbidden:
		code = types.ErrForbidden
	case http.StatusNotFound:
		code = types.ErrNotFound
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case http.StatusBadRequest:
		// 检查配额/信用关键字
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") ||
			strings.Contains(lower, "credit") ||
			strings.Contains(lower, "budget") {
			code = types.ErrQuotaExceeded
		} else {
			code = types.ErrInvalidRequest
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		code = types.ErrUpstreamError
		retryable = true
	case http.StatusGatewayTimeout:
		code = types.ErrUpstreamTimeout
		retryable = true
	case 529: // 模型过载
		code = types.ErrModelOverloaded
		retryable = true
	default:
		code = types.ErrUpstreamError
		retryable = status >= 500
	}

	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(providerName)
}

// ReadErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Status  string `json:"status"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil {
		switch {
		case errResp.Error.Message != "" && errResp.Error.Type != "":
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		case errResp.Error.Message != "" && errResp.Error.Status != "":
			return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
		case errResp.Error.Message != "":
			return errResp.Error.Message
		case errResp.Detail != "":
			return errResp.Detail
		}
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "empty error response"
	}
	return msg
}

// transportError 包装网络层错误，保留原始错误用于 errors.Is / errors.As
func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	code := types.ErrUpstreamError
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		code = types.ErrUpstreamTimeout
	}
	return types.NewError(code, op+" failed").
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(providerName)
}

// malformed 响应结构不符合预期
func malformed(what string, cause error) error {
	e := types.NewError(types.ErrMalformedResponse, what).
		WithHTTPStatus(http.StatusBadGateway).
		WithProvider(providerName)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// Malformed 供上层包构造响应结构错误
func Malformed(what string) error {
	return malformed(what, nil)
}
