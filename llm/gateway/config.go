package gateway

import "time"

// DefaultBaseURL 网关默认地址
const DefaultBaseURL = "https://api.thucchien.ai"

// Config 网关客户端配置
type Config struct {
	BaseURL   string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	APIKey    string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	UserAgent string        `json:"user_agent,omitempty" yaml:"user_agent,omitempty" env:"USER_AGENT"`
}

// DefaultConfig 返回默认网关配置
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   120 * time.Second,
		UserAgent: "thucchien/1.0",
	}
}
