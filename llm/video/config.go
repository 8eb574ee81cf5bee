package video

import (
	"fmt"
	"time"

	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/llm/longrun"
)

// 支持的后端
const (
	BackendVeo    = "veo"
	BackendRunway = "runway"
)

// VeoConfig 配置网关上的 Veo 视频生成
type VeoConfig struct {
	Model       string `json:"model" yaml:"model" env:"MODEL"` // veo-3.0-generate-001, veo-3.0-fast-generate-001, veo-2.0-generate-001
	AspectRatio string `json:"aspect_ratio" yaml:"aspect_ratio" env:"ASPECT_RATIO"`
	Resolution  string `json:"resolution" yaml:"resolution" env:"RESOLUTION"`
}

// RunwayConfig 配置 Runway 视频生成
type RunwayConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"` // gen4_turbo, gen3a_turbo
	Version string        `json:"version,omitempty" yaml:"version,omitempty" env:"VERSION"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// Config 视频模块配置
type Config struct {
	// Backend veo 或 runway
	Backend   string         `json:"backend" yaml:"backend" env:"BACKEND"`
	OutputDir string         `json:"output_dir" yaml:"output_dir" env:"OUTPUT_DIR"`
	Poll      longrun.Config `json:"poll" yaml:"poll" env:"POLL"`
	Veo       VeoConfig      `json:"veo" yaml:"veo" env:"VEO"`
	Runway    RunwayConfig   `json:"runway" yaml:"runway" env:"RUNWAY"`
}

// DefaultVeoConfig 返回默认 Veo 配置
func DefaultVeoConfig() VeoConfig {
	return VeoConfig{
		Model:       "veo-3.0-generate-001",
		AspectRatio: "16:9",
		Resolution:  "720p",
	}
}

// DefaultRunwayConfig 返回默认 Runway 配置
func DefaultRunwayConfig() RunwayConfig {
	return RunwayConfig{
		BaseURL: "https://api.dev.runwayml.com",
		Model:   "gen4_turbo",
		Version: "2024-11-06",
		Timeout: 300 * time.Second,
	}
}

// DefaultConfig 返回默认视频配置
func DefaultConfig() Config {
	return Config{
		Backend:   BackendVeo,
		OutputDir: "data/videos",
		Poll:      longrun.DefaultConfig(),
		Veo:       DefaultVeoConfig(),
		Runway:    DefaultRunwayConfig(),
	}
}

// NewBackend 按配置创建后端
func NewBackend(client *gateway.Client, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendVeo, "":
		return NewVeoBackend(client, cfg.Veo), nil
	case BackendRunway:
		return NewRunwayBackend(client, cfg.Runway), nil
	default:
		return nil, fmt.Errorf("unknown video backend %q", cfg.Backend)
	}
}
