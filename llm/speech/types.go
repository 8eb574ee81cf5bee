package speech

import "time"

// 默认模型与音色
const (
	DefaultModel       = "gemini-2.5-flash-preview-tts"
	DefaultVoice       = "Zephyr"
	DefaultGeminiVoice = "Kore"
)

// Config TTS 配置
type Config struct {
	Model string `json:"model" yaml:"model" env:"MODEL"`
	Voice string `json:"voice" yaml:"voice" env:"VOICE"`
}

// DefaultConfig 返回默认 TTS 配置
func DefaultConfig() Config {
	return Config{Model: DefaultModel, Voice: DefaultVoice}
}

// TTSRequest 文本转语音请求
type TTSRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"` // Zephyr, Puck, Charon, Kore, ...
}

// Speaker 多人对话中的说话人与音色
type Speaker struct {
	Speaker string `json:"speaker"`
	Voice   string `json:"voice"`
}

// GeminiTTSRequest Gemini TTS 请求
// MultiSpeaker 为 false 时只取 Speakers[0] 的音色
type GeminiTTSRequest struct {
	Text         string    `json:"text"`
	Model        string    `json:"model,omitempty"`
	MultiSpeaker bool      `json:"multi_speaker,omitempty"`
	Speakers     []Speaker `json:"speakers,omitempty"`
}

// TTSResponse 合成结果
type TTSResponse struct {
	Model     string    `json:"model"`
	Audio     []byte    `json:"-"`
	MimeType  string    `json:"mime_type,omitempty"`
	CharCount int       `json:"char_count"`
	CreatedAt time.Time `json:"created_at"`
}
