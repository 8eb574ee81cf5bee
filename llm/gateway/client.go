package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/types"
)

// AuthStyle 认证方式
type AuthStyle int

const (
	// AuthBearer Authorization: Bearer <key>，用于 OpenAI 兼容路由
	AuthBearer AuthStyle = iota
	// AuthGoogAPIKey x-goog-api-key: <key>，用于 /gemini 路由
	AuthGoogAPIKey
	// AuthNone 不携带密钥（下载第三方 CDN 上的产物）
	AuthNone
)

// ErrMissingAPIKey 未配置 API Key
var ErrMissingAPIKey = errors.New("gateway: api key is required")

// RequestHook 每次上游调用结束后回调，status 为 "ok" 或错误码
type RequestHook func(endpoint, status string, duration time.Duration)

// Client 网关客户端，可并发使用
type Client struct {
	cfg    Config
	http   *http.Client
	hook   RequestHook
	logger *zap.Logger
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithHTTPClient 替换底层 http.Client（测试时使用 httptest）
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRequestHook 设置调用回调（指标采集）
func WithRequestHook(h RequestHook) ClientOption {
	return func(c *Client) {
		c.hook = h
	}
}

// NewClient 创建网关客户端
func NewClient(cfg Config, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:    cfg,
		http:   NewHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "gateway")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL 返回规范化后的网关地址
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// URL 拼接网关路径
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.cfg.BaseURL + path
}

// NewRequest 构造带认证头的请求；body 非 nil 时编码为 JSON
func (c *Client) NewRequest(ctx context.Context, method, path string, auth AuthStyle, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.URL(path)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	switch auth {
	case AuthNone:
	case AuthGoogAPIKey:
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	default:
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

// Do 发送请求，2xx 时把响应 JSON 解码到 out（out 为 nil 时丢弃响应体）
func (c *Client) Do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return malformed("failed to decode response", err)
	}
	return nil
}

// DoRaw 发送请求并返回原始响应体（音频、视频）
func (c *Client) DoRaw(req *http.Request) ([]byte, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("read response body", err)
	}
	return data, nil
}

// PostJSON POST JSON 并解码响应
func (c *Client) PostJSON(ctx context.Context, path string, auth AuthStyle, body, out any) error {
	req, err := c.NewRequest(ctx, http.MethodPost, path, auth, body)
	if err != nil {
		return err
	}
	return c.Do(req, out)
}

// GetJSON GET 并解码响应
func (c *Client) GetJSON(ctx context.Context, path string, auth AuthStyle, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, auth, nil)
	if err != nil {
		return err
	}
	return c.Do(req, out)
}

func (c *Client) send(req *http.Request) (resp *http.Response, err error) {
	c.logger.Debug("gateway request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path))

	if c.hook != nil {
		start := time.Now()
		defer func() {
			status := "ok"
			if err != nil {
				status = string(types.GetErrorCode(err))
				if status == "" {
					status = "canceled"
				}
			}
			c.hook(endpointLabel(req.URL.Path), status, time.Since(start))
		}()
	}

	resp, err = c.http.Do(req)
	if err != nil {
		return nil, transportError(req.Method+" "+req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg := ReadErrorMessage(resp.Body)
		c.logger.Warn("gateway error response",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, MapHTTPError(resp.StatusCode, msg)
	}
	return resp, nil
}

// endpointLabel 把路径归并为低基数的指标标签
func endpointLabel(path string) string {
	switch {
	case strings.HasSuffix(path, ":predictLongRunning"):
		return "predictLongRunning"
	case strings.HasSuffix(path, ":generateContent"):
		return "generateContent"
	case strings.HasPrefix(path, "/gemini/download/"):
		return "download"
	case strings.Contains(path, "/operations/"):
		return "operations"
	case strings.HasPrefix(path, "/v1/tasks/"):
		return "tasks"
	case strings.HasPrefix(path, "/chat/"),
		strings.HasPrefix(path, "/images/"),
		strings.HasPrefix(path, "/audio/"),
		strings.HasPrefix(path, "/key/"),
		strings.HasPrefix(path, "/v1/image_to_video"):
		return path
	default:
		return "other"
	}
}
