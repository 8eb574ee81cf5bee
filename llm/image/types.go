package image

import "time"

// 默认模型与参数
const (
	DefaultModel       = "imagen-4"
	DefaultChatModel   = "gemini-2.5-flash-image-preview"
	DefaultAspectRatio = "1:1"
)

// Config 图像生成配置
type Config struct {
	Model       string        `json:"model" yaml:"model" env:"MODEL"`
	ChatModel   string        `json:"chat_model" yaml:"chat_model" env:"CHAT_MODEL"`
	AspectRatio string        `json:"aspect_ratio" yaml:"aspect_ratio" env:"ASPECT_RATIO"`
	OutputDir   string        `json:"output_dir" yaml:"output_dir" env:"OUTPUT_DIR"`
	Concurrency int           `json:"concurrency" yaml:"concurrency" env:"CONCURRENCY"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// DefaultConfig 返回默认图像配置
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		ChatModel:   DefaultChatModel,
		AspectRatio: DefaultAspectRatio,
		OutputDir:   "data/images",
		Concurrency: 2,
	}
}

// GenerateRequest 文生图请求
type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	N           int    `json:"n,omitempty"`            // 1-4
	AspectRatio string `json:"aspect_ratio,omitempty"` // 1:1, 3:4, 4:3, 16:9, 9:16
	// NoSeed 为 true 时不追加随机后缀
	NoSeed bool `json:"-"`
}

// Panel 漫画分镜
type Panel struct {
	Scene    string `json:"scene"`
	Dialogue string `json:"dialogue,omitempty"`
}

// MergeRequest 文字合成请求，两张图均为 PNG 的 base64
type MergeRequest struct {
	BackgroundBase64 string `json:"background_base64"`
	TextBase64       string `json:"text_base64"`
	Placement        string `json:"placement,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty"`
	Model            string `json:"model,omitempty"`
}

// MissingImage 批量生成条目
type MissingImage struct {
	Filename    string `json:"filename" yaml:"filename"`
	Prompt      string `json:"prompt" yaml:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty" yaml:"aspect_ratio,omitempty"`
}

// BatchReport 批量生成结果
type BatchReport struct {
	Generated []string          `json:"generated"`
	Skipped   []string          `json:"skipped"`
	Failed    map[string]string `json:"failed,omitempty"`
}
