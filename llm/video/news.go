package video

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/llm/image"
	"github.com/BaSui01/thucchien/llm/speech"
)

// =============================================================================
// 📺 虚拟主播新闻视频
// =============================================================================

// 新闻视频默认值
const (
	DefaultAnchor       = "A professional Vietnamese female news anchor, 30s, wearing formal attire"
	DefaultNewsDuration = 80
	DefaultAnchorVoice  = "Kore"
)

// AnchorPainter 用 chat-image 生成主播形象，返回 data URL
type AnchorPainter interface {
	GenerateChat(ctx context.Context, prompt string, history []gateway.Message) (string, error)
}

// ScriptWriter 撰写口播稿
type ScriptWriter interface {
	GenerateText(ctx context.Context, prompt string, opts gateway.TextOptions) (*gateway.ChatResponse, error)
}

// Narrator 朗读口播稿
type Narrator interface {
	Synthesize(ctx context.Context, req speech.TTSRequest) (*speech.TTSResponse, error)
}

// VideoMaker 以首帧图片生成视频
type VideoMaker interface {
	Generate(ctx context.Context, req *GenerateRequest) (*Result, error)
}

// NewsRequest 新闻视频请求
type NewsRequest struct {
	// Content 新闻内容
	Content string
	// Anchor 主播外观描述，同时用于首帧图片与视频提示词
	Anchor string
	// Duration 口播稿目标时长（秒）
	Duration int
	Model    string
	Voice    string
	// OnNarration 在提交视频之前调用，调用方可先落盘音频与稿件；返回错误则中止
	OnNarration func(script string, audio *speech.TTSResponse) error
}

// NewsResult 各步骤产物。视频步骤失败时前面的产物仍然保留
type NewsResult struct {
	AnchorImage []byte
	AnchorMime  string
	Script      string
	Audio       *speech.TTSResponse
	Video       *Result
}

// NewsVideo 串联 主播图片 → 口播稿 → 配音 → 图生视频。
// 视频不含音轨，音频需另行合成
type NewsVideo struct {
	painter  AnchorPainter
	writer   ScriptWriter
	narrator Narrator
	maker    VideoMaker
	logger   *zap.Logger
}

func NewNewsVideo(painter AnchorPainter, writer ScriptWriter, narrator Narrator, maker VideoMaker, logger *zap.Logger) *NewsVideo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsVideo{
		painter:  painter,
		writer:   writer,
		narrator: narrator,
		maker:    maker,
		logger:   logger.With(zap.String("component", "news_video")),
	}
}

func scriptPrompt(content string, duration int) string {
	return fmt.Sprintf("Viết script bản tin truyền hình chuyên nghiệp về: %s. Thời lượng %d giây. Văn phong trang trọng, dễ hiểu.",
		content, duration)
}

func anchorVideoPrompt(anchor string) string {
	return "A professional news anchor is presenting the news on television. " + strings.TrimSuffix(anchor, ".") +
		". She is speaking confidently to the camera with professional hand gestures. Studio lighting, TV broadcast quality."
}

// Create 依次执行四个步骤，任一步失败即返回已完成的部分
func (n *NewsVideo) Create(ctx context.Context, req NewsRequest) (*NewsResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("news content is required")
	}
	if req.Anchor == "" {
		req.Anchor = DefaultAnchor
	}
	if req.Duration <= 0 {
		req.Duration = DefaultNewsDuration
	}
	if req.Voice == "" {
		req.Voice = DefaultAnchorVoice
	}
	res := &NewsResult{}

	n.logger.Info("generating anchor image")
	dataURL, err := n.painter.GenerateChat(ctx, req.Anchor, nil)
	if err != nil {
		return res, fmt.Errorf("anchor image: %w", err)
	}
	if res.AnchorImage, res.AnchorMime, err = image.DecodeDataURL(dataURL); err != nil {
		return res, fmt.Errorf("anchor image: %w", err)
	}

	n.logger.Info("writing script", zap.Int("duration_s", req.Duration))
	chat, err := n.writer.GenerateText(ctx, scriptPrompt(req.Content, req.Duration), gateway.TextOptions{})
	if err != nil {
		return res, fmt.Errorf("script: %w", err)
	}
	if res.Script, err = chat.Text(); err != nil {
		return res, fmt.Errorf("script: %w", err)
	}

	n.logger.Info("narrating script", zap.String("voice", req.Voice), zap.Int("chars", len([]rune(res.Script))))
	if res.Audio, err = n.narrator.Synthesize(ctx, speech.TTSRequest{Text: res.Script, Voice: req.Voice}); err != nil {
		return res, fmt.Errorf("narration: %w", err)
	}
	if req.OnNarration != nil {
		if err := req.OnNarration(res.Script, res.Audio); err != nil {
			return res, err
		}
	}

	n.logger.Info("generating anchor video")
	res.Video, err = n.maker.Generate(ctx, &GenerateRequest{
		Prompt:      anchorVideoPrompt(req.Anchor),
		Model:       req.Model,
		ImageBase64: base64.StdEncoding.EncodeToString(res.AnchorImage),
	})
	if err != nil {
		return res, fmt.Errorf("anchor video: %w", err)
	}
	return res, nil
}
