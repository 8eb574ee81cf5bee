// =============================================================================
// 📦 thucchien 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + .env 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithDotEnv(".env").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量（.env 中的值不会覆盖已存在的环境变量）
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/thucchien/internal/cache"
	"github.com/BaSui01/thucchien/internal/database"
	"github.com/BaSui01/thucchien/internal/session"
	"github.com/BaSui01/thucchien/internal/telemetry"
	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/llm/image"
	"github.com/BaSui01/thucchien/llm/speech"
	"github.com/BaSui01/thucchien/llm/video"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "THUCCHIEN"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 thucchien 的完整配置结构
type Config struct {
	Server    ServerConfig     `yaml:"server" env:"SERVER"`
	Gateway   gateway.Config   `yaml:"gateway" env:"GATEWAY"`
	Image     image.Config     `yaml:"image" env:"IMAGE"`
	Speech    speech.Config    `yaml:"speech" env:"SPEECH"`
	Video     video.Config     `yaml:"video" env:"VIDEO"`
	Jobs      JobsConfig       `yaml:"jobs" env:"JOBS"`
	Content   ContentConfig    `yaml:"content" env:"CONTENT"`
	Session   session.Config   `yaml:"session" env:"SESSION"`
	Redis     cache.Config     `yaml:"redis" env:"REDIS"`
	Database  database.Config  `yaml:"database" env:"DATABASE"`
	Log       LogConfig        `yaml:"log" env:"LOG"`
	Telemetry telemetry.Config `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口，0 表示不单独启动
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 生成类接口每 IP 限流
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// JobsConfig 后台视频任务配置
type JobsConfig struct {
	// 幂等键保留时间
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env:"IDEMPOTENCY_TTL"`
	// 启动时恢复未完成的任务
	ResumePending bool `yaml:"resume_pending" env:"RESUME_PENDING"`
	// 同时运行的任务上限
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// 网关额度报告的 cron 表达式，空表示关闭
	SpendReportSchedule string `yaml:"spend_report_schedule" env:"SPEND_REPORT_SCHEDULE"`
}

// ContentConfig 内容配置
type ContentConfig struct {
	// content.json 路径
	Path string `yaml:"path" env:"PATH"`
	// 内容中图片相对路径的根目录
	ImageDir string `yaml:"image_dir" env:"IMAGE_DIR"`
	// 是否监听文件变化
	Watch bool `yaml:"watch" env:"WATCH"`
	// 轮询间隔
	WatchInterval time.Duration `yaml:"watch_interval" env:"WATCH_INTERVAL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 按 默认值 → YAML → .env → 环境变量 的顺序组装 Config
type Loader struct {
	configPath string
	dotEnv     []string
	envPrefix  string
	validators []func(*Config) error
}

func NewLoader() *Loader {
	return &Loader{envPrefix: DefaultEnvPrefix}
}

// WithConfigPath 指定 YAML 文件；文件不存在时沿用默认值
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithDotEnv 追加 .env 文件，缺失的文件被跳过
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	l.dotEnv = append(l.dotEnv, paths...)
	return l
}

func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 追加加载完成后执行的校验，按注册顺序执行，遇错即停
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 组装配置。Validate 不会自动调用，由调用方决定时机
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	steps := []struct {
		name string
		run  func(*Config) error
	}{
		{"read config file", l.decodeFile},
		{"load .env", func(*Config) error { return l.loadDotEnv() }},
		{"apply env", func(c *Config) error { return bindEnv(c, l.envPrefix) }},
	}
	for _, step := range steps {
		if err := step.run(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) decodeFile(cfg *Config) error {
	if l.configPath == "" {
		return nil
	}
	raw, err := os.ReadFile(l.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("%s: %w", l.configPath, err)
	}
	return nil
}

// godotenv.Load 不覆盖进程中已存在的变量
func (l *Loader) loadDotEnv() error {
	for _, p := range l.dotEnv {
		err := godotenv.Load(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("%s: %w", p, err)
	}
	return nil
}
