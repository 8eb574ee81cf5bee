package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// 默认模型
const (
	DefaultTextModel = "gemini-2.5-pro"
)

// Message OpenAI 兼容消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天补全请求
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Modalities  []string  `json:"modalities,omitempty"`
}

// ChatImage 多模态响应中的图片
type ChatImage struct {
	Type     string `json:"type,omitempty"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// ChatChoice 单个选项
type ChatChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string      `json:"role"`
		Content string      `json:"content"`
		Images  []ChatImage `json:"images,omitempty"`
	} `json:"message"`
}

// ChatUsage token 用量
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse 聊天补全响应
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *ChatUsage   `json:"usage,omitempty"`
	Created int64        `json:"created,omitempty"`
}

// Text 返回第一个选项的文本
func (r *ChatResponse) Text() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", Malformed("chat response has no choices")
	}
	return r.Choices[0].Message.Content, nil
}

// FirstImageURL 返回第一个选项的第一张图片（data URL）
func (r *ChatResponse) FirstImageURL() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", Malformed("chat response has no choices")
	}
	images := r.Choices[0].Message.Images
	if len(images) == 0 || images[0].ImageURL.URL == "" {
		return "", Malformed("chat response carries no image")
	}
	return images[0].ImageURL.URL, nil
}

// TextOptions 文本生成参数
type TextOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatCompletion POST /chat/completions
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = DefaultTextModel
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("chat completion requires at least one message")
	}
	var resp ChatResponse
	if err := c.PostJSON(ctx, "/chat/completions", AuthBearer, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateText 单轮文本生成，temperature 默认 1.0
func (c *Client) GenerateText(ctx context.Context, prompt string, opts TextOptions) (*ChatResponse, error) {
	temp := opts.Temperature
	if temp == 0 {
		temp = 1.0
	}
	return c.ChatCompletion(ctx, ChatRequest{
		Model:       opts.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
		MaxTokens:   opts.MaxTokens,
	})
}

// Summarize 汇总多份已抓取的网页内容，返回 markdown
func (c *Client) Summarize(ctx context.Context, topic string, sources []string, model string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Phân tích và tổng hợp thông tin về chủ đề: %s\n\n", topic)
	b.WriteString("Dữ liệu từ các nguồn:\n")
	b.WriteString(strings.Join(sources, "\n\n---\n\n"))
	b.WriteString("\n\nYêu cầu:\n1. Tổng hợp các thông tin chính\n2. Phân tích các điểm nổi bật\n3. Đưa ra kết luận\n\nTrình bày theo format markdown.\n")

	resp, err := c.GenerateText(ctx, b.String(), TextOptions{Model: model})
	if err != nil {
		return "", err
	}
	return resp.Text()
}

// KeyInfo GET /key/info 返回的消费信息，字段随网关版本变化，保留原始 JSON
type KeyInfo struct {
	Raw json.RawMessage
}

// Spend 尝试读取常见的消费字段
func (k *KeyInfo) Spend() (float64, bool) {
	var probe struct {
		Info struct {
			Spend *float64 `json:"spend"`
		} `json:"info"`
		Spend *float64 `json:"spend"`
	}
	if err := json.Unmarshal(k.Raw, &probe); err != nil {
		return 0, false
	}
	if probe.Info.Spend != nil {
		return *probe.Info.Spend, true
	}
	if probe.Spend != nil {
		return *probe.Spend, true
	}
	return 0, false
}

// CheckSpending GET /key/info
func (c *Client) CheckSpending(ctx context.Context) (*KeyInfo, error) {
	var raw json.RawMessage
	if err := c.GetJSON(ctx, "/key/info", AuthBearer, &raw); err != nil {
		return nil, err
	}
	return &KeyInfo{Raw: raw}, nil
}
