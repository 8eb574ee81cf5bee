package gateway

import (
	"crypto/tls"
	"net/http"
	"time"
)

// gatewayIdleConns 所有请求都发往同一个网关主机
const gatewayIdleConns = 16

// NewHTTPClient 基于 http.DefaultTransport 调整连接池与 TLS 下限。
// timeout 覆盖整个请求（含读取响应体），视频下载时由 Config.Timeout 放宽。
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = gatewayIdleConns
	tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return &http.Client{Timeout: timeout, Transport: tr}
}
