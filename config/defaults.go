package config

import (
	"errors"
	"strings"
	"time"

	"github.com/BaSui01/thucchien/internal/cache"
	"github.com/BaSui01/thucchien/internal/database"
	"github.com/BaSui01/thucchien/internal/session"
	"github.com/BaSui01/thucchien/internal/telemetry"
	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/llm/image"
	"github.com/BaSui01/thucchien/llm/speech"
	"github.com/BaSui01/thucchien/llm/video"
)

// ErrMissingAPIKey 需要网关时未配置 API Key
var ErrMissingAPIKey = errors.New("gateway.api_key is required (set THUCCHIEN_GATEWAY_API_KEY)")

// DefaultConfig 返回一份可直接运行的配置：sqlite 本地库、无 redis、遥测关闭。
// 每次调用都返回新的实例，切片字段不共享底层数组
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9091,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    1,
			RateLimitBurst:  5,
		},
		Gateway: gateway.DefaultConfig(),
		Image:   image.DefaultConfig(),
		Speech:  speech.DefaultConfig(),
		Video:   video.DefaultConfig(),
		Jobs: JobsConfig{
			IdempotencyTTL:      24 * time.Hour,
			ResumePending:       true,
			MaxConcurrent:       4,
			SpendReportSchedule: "@every 1h",
		},
		Content: ContentConfig{
			Path:          "content.json",
			ImageDir:      ".",
			Watch:         true,
			WatchInterval: time.Second,
		},
		Session:  session.DefaultConfig(),
		Redis:    cache.DefaultConfig(),
		Database: database.DefaultConfig(),
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			OutputPaths:  []string{"stdout"},
			EnableCaller: true,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// RequireAPIKey 供 Loader.WithValidator 使用，空白 key 视为未配置
func RequireAPIKey(c *Config) error {
	if strings.TrimSpace(c.Gateway.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
