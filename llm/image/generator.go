package image

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/gateway"
)

// Generator 图像生成器，可并发使用
type Generator struct {
	client *gateway.Client
	cfg    Config
	logger *zap.Logger
	seed   func() int
}

// NewGenerator 创建图像生成器
func NewGenerator(client *gateway.Client, cfg Config, logger *zap.Logger) *Generator {
	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaults.ChatModel
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = defaults.AspectRatio
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "image")),
		seed:   func() int { return rand.Intn(10000) + 1 },
	}
}

type generationsRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	N           int    `json:"n"`
	AspectRatio string `json:"aspect_ratio"`
}

type generationsResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// Generate POST /images/generations，返回 data URL 列表
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("image prompt is required")
	}
	body := generationsRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		N:           req.N,
		AspectRatio: req.AspectRatio,
	}
	if body.Model == "" {
		body.Model = g.cfg.Model
	}
	if body.N <= 0 {
		body.N = 1
	}
	if body.AspectRatio == "" {
		body.AspectRatio = g.cfg.AspectRatio
	}
	// 追加随机数绕过网关缓存
	if !req.NoSeed {
		body.Prompt = fmt.Sprintf("%s %d", req.Prompt, g.seed())
	}

	var resp generationsResponse
	if err := g.client.PostJSON(ctx, "/images/generations", gateway.AuthBearer, body, &resp); err != nil {
		return nil, err
	}

	images := make([]string, 0, len(resp.Data))
	for _, item := range resp.Data {
		switch {
		case item.B64JSON != "":
			images = append(images, "data:image/png;base64,"+item.B64JSON)
		case item.URL != "":
			images = append(images, item.URL)
		}
	}
	g.logger.Debug("images generated", zap.Int("count", len(images)), zap.String("model", body.Model))
	return images, nil
}

// GenerateChat 通过 chat 接口生成图片，history 用于保持上下文一致
func (g *Generator) GenerateChat(ctx context.Context, prompt string, history []gateway.Message) (string, error) {
	messages := make([]gateway.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, gateway.Message{Role: "user", Content: prompt})

	resp, err := g.client.ChatCompletion(ctx, gateway.ChatRequest{
		Model:      g.cfg.ChatModel,
		Messages:   messages,
		Modalities: []string{"image"},
	})
	if err != nil {
		return "", err
	}
	return resp.FirstImageURL()
}

// ConsistentCharacters 先生成人物参考图，再把人物描述拼接到每个场景
// 返回 len(scenes)+1 张图
func (g *Generator) ConsistentCharacters(ctx context.Context, character string, scenes []string) ([]string, error) {
	images := make([]string, 0, len(scenes)+1)

	first, err := g.GenerateChat(ctx, character, nil)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	images = append(images, first)

	for i, scene := range scenes {
		g.logger.Info("generating scene",
			zap.Int("index", i+2),
			zap.Int("total", len(scenes)+1))
		img, err := g.GenerateChat(ctx, character+", "+scene, nil)
		if err != nil {
			return images, fmt.Errorf("scene %d: %w", i+1, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// Comic 生成封面与人物一致的分镜，返回 [cover, reference, panels...]
func (g *Generator) Comic(ctx context.Context, title, character string, panels []Panel) ([]string, error) {
	coverPrompt := fmt.Sprintf("Comic book cover titled '%s'. %s. Semi-realistic manga style, A4 vertical.", title, character)
	cover, err := g.GenerateChat(ctx, coverPrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("comic cover: %w", err)
	}

	scenes := make([]string, len(panels))
	for i, p := range panels {
		scenes[i] = p.Scene
	}
	pages, err := g.ConsistentCharacters(ctx, character, scenes)
	return append([]string{cover}, pages...), err
}

// TextBackground 生成留出标题空白、不含文字的背景图
func (g *Generator) TextBackground(ctx context.Context, prompt string) (string, error) {
	return g.GenerateChat(ctx, prompt+". Do not include any text. Leave a clear, empty space for the title text.", nil)
}

// Merge 把第二张图中的文字合成到第一张图上，返回 PNG 字节
func (g *Generator) Merge(ctx context.Context, req MergeRequest) ([]byte, error) {
	if req.BackgroundBase64 == "" || req.TextBase64 == "" {
		return nil, fmt.Errorf("merge requires background and text images")
	}
	placement := req.Placement
	if placement == "" {
		placement = "Place it in a visually fitting position"
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = "1:1"
	}
	model := req.Model
	if model == "" {
		model = g.cfg.ChatModel
	}

	resp, err := g.client.GenerateContent(ctx, model, gateway.GenerateContentRequest{
		Contents: []gateway.Content{{
			Parts: []gateway.Part{
				{InlineData: &gateway.InlineData{MimeType: "image/png", Data: req.BackgroundBase64}},
				{InlineData: &gateway.InlineData{MimeType: "image/png", Data: req.TextBase64}},
				{Text: "Add the text from the second image onto the first image. " + placement},
			},
		}},
		GenerationConfig: map[string]any{
			"imageConfig": map[string]any{"aspectRatio": aspect},
		},
	})
	if err != nil {
		return nil, err
	}
	data, _, err := resp.FirstInlineData()
	return data, err
}
