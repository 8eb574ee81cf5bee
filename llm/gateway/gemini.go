package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
)

// InlineData 请求中的内联二进制
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Part 请求内容片段
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// Content 请求内容
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerateContentRequest Gemini generateContent 请求
type GenerateContentRequest struct {
	Contents         []Content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

// GenerateContentResponse Gemini generateContent 响应
type GenerateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text,omitempty"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
}

// FirstInlineData 解码第一个候选中第一个内联数据片段
func (r *GenerateContentResponse) FirstInlineData() ([]byte, string, error) {
	if len(r.Candidates) == 0 {
		return nil, "", Malformed("generateContent response has no candidates")
	}
	for _, part := range r.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, "", malformed("inline data is not valid base64", err)
		}
		return data, part.InlineData.MimeType, nil
	}
	return nil, "", Malformed("generateContent response carries no inline data")
}

// GeminiModelPath 返回 /gemini/v1beta/models/{model}:{method}
func GeminiModelPath(model, method string) string {
	return fmt.Sprintf("/gemini/v1beta/models/%s:%s", url.PathEscape(model), method)
}

// GenerateContent POST /gemini/v1beta/models/{model}:generateContent
func (c *Client) GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (*GenerateContentResponse, error) {
	if model == "" {
		return nil, fmt.Errorf("generateContent requires a model")
	}
	var resp GenerateContentResponse
	if err := c.PostJSON(ctx, GeminiModelPath(model, "generateContent"), AuthGoogAPIKey, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
