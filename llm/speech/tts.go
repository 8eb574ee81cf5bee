package speech

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/gateway"
)

// Synthesizer TTS 合成器
type Synthesizer struct {
	client *gateway.Client
	cfg    Config
	logger *zap.Logger
}

// NewSynthesizer 创建合成器
func NewSynthesizer(client *gateway.Client, cfg Config, logger *zap.Logger) *Synthesizer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "speech")),
	}
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize POST /audio/speech
func (s *Synthesizer) Synthesize(ctx context.Context, req TTSRequest) (*TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("tts text is required")
	}
	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}

	httpReq, err := s.client.NewRequest(ctx, http.MethodPost, "/audio/speech", gateway.AuthBearer,
		speechRequest{Model: model, Input: req.Text, Voice: voice})
	if err != nil {
		return nil, err
	}
	audio, err := s.client.DoRaw(httpReq)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("speech synthesized", zap.Int("bytes", len(audio)), zap.String("voice", voice))

	return &TTSResponse{
		Model:     model,
		Audio:     audio,
		CharCount: len([]rune(req.Text)),
		CreatedAt: time.Now(),
	}, nil
}

func prebuiltVoice(name string) map[string]any {
	return map[string]any{
		"prebuiltVoiceConfig": map[string]any{"voiceName": name},
	}
}

// speechConfig 构造 generationConfig.speechConfig
func speechConfig(req GeminiTTSRequest) map[string]any {
	if req.MultiSpeaker && len(req.Speakers) > 0 {
		configs := make([]map[string]any, 0, len(req.Speakers))
		for _, sp := range req.Speakers {
			configs = append(configs, map[string]any{
				"speaker":     sp.Speaker,
				"voiceConfig": prebuiltVoice(sp.Voice),
			})
		}
		return map[string]any{
			"multiSpeakerVoiceConfig": map[string]any{"speakerVoiceConfigs": configs},
		}
	}
	voice := DefaultGeminiVoice
	if len(req.Speakers) > 0 && req.Speakers[0].Voice != "" {
		voice = req.Speakers[0].Voice
	}
	return map[string]any{"voiceConfig": prebuiltVoice(voice)}
}

// SynthesizeGemini 通过 Gemini generateContent 合成语音
func (s *Synthesizer) SynthesizeGemini(ctx context.Context, req GeminiTTSRequest) (*TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("tts text is required")
	}
	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}

	resp, err := s.client.GenerateContent(ctx, model, gateway.GenerateContentRequest{
		Contents: []gateway.Content{{Parts: []gateway.Part{{Text: req.Text}}}},
		GenerationConfig: map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig":       speechConfig(req),
		},
	})
	if err != nil {
		return nil, err
	}
	audio, mime, err := resp.FirstInlineData()
	if err != nil {
		return nil, err
	}
	return &TTSResponse{
		Model:     model,
		Audio:     audio,
		MimeType:  mime,
		CharCount: len([]rune(req.Text)),
		CreatedAt: time.Now(),
	}, nil
}
