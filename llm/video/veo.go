package video

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/llm/longrun"
)

// VeoBackend 通过网关的 Gemini 长任务接口生成视频
type VeoBackend struct {
	client *gateway.Client
	cfg    VeoConfig
}

// NewVeoBackend 创建 Veo 后端
func NewVeoBackend(client *gateway.Client, cfg VeoConfig) *VeoBackend {
	defaults := DefaultVeoConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = defaults.AspectRatio
	}
	if cfg.Resolution == "" {
		cfg.Resolution = defaults.Resolution
	}
	return &VeoBackend{client: client, cfg: cfg}
}

func (b *VeoBackend) Name() string { return BackendVeo }

// Model 返回请求使用的模型
func (b *VeoBackend) Model(req *GenerateRequest) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return b.cfg.Model
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoRequest struct {
	Instances  []veoInstance  `json:"instances"`
	Parameters map[string]any `json:"parameters"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []struct {
				Video *struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// locator 提取首个样本的视频 URI，结构缺失时返回空串
func (op *veoOperation) locator() string {
	if op.Response == nil || op.Response.GenerateVideoResponse == nil {
		return ""
	}
	samples := op.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 || samples[0].Video == nil {
		return ""
	}
	return samples[0].Video.URI
}

func (b *VeoBackend) buildRequest(req *GenerateRequest) veoRequest {
	instance := veoInstance{Prompt: req.Prompt}
	if req.ImageBase64 != "" {
		instance.Image = &veoImage{BytesBase64Encoded: req.ImageBase64, MimeType: "image/png"}
	}

	params := map[string]any{
		"aspectRatio": firstNonEmpty(req.AspectRatio, b.cfg.AspectRatio),
		"resolution":  firstNonEmpty(req.Resolution, b.cfg.Resolution),
	}
	if req.NegativePrompt != "" {
		params["negativePrompt"] = req.NegativePrompt
	}
	if req.Duration > 0 {
		params["durationSeconds"] = req.Duration
	}
	if req.Seed != 0 {
		params["seed"] = req.Seed
	}
	for k, v := range req.Extra {
		params[k] = v
	}
	return veoRequest{Instances: []veoInstance{instance}, Parameters: params}
}

// Submit POST /gemini/v1beta/models/{model}:predictLongRunning
func (b *VeoBackend) Submit(ctx context.Context, req *GenerateRequest) (longrun.Handle, error) {
	var op veoOperation
	path := gateway.GeminiModelPath(b.Model(req), "predictLongRunning")
	if err := b.client.PostJSON(ctx, path, gateway.AuthGoogAPIKey, b.buildRequest(req), &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", gateway.Malformed("predictLongRunning response has no operation name")
	}
	return longrun.Handle(op.Name), nil
}

// Poll GET /gemini/v1beta/{name}
func (b *VeoBackend) Poll(ctx context.Context, handle longrun.Handle) (longrun.Status, error) {
	var op veoOperation
	if err := b.client.GetJSON(ctx, "/gemini/v1beta/"+strings.TrimPrefix(string(handle), "/"), gateway.AuthGoogAPIKey, &op); err != nil {
		return longrun.Status{}, err
	}
	if op.Error != nil {
		msg := op.Error.Message
		if msg == "" {
			msg = op.Error.Status
		}
		return longrun.Status{Done: true, Failure: &longrun.Failure{Code: op.Error.Code, Message: msg}}, nil
	}
	st := longrun.Status{Done: op.Done}
	if op.Done {
		st.Locator = op.locator()
	}
	return st, nil
}

// FileID 从 .../files/{id}:download?alt=media 形式的 URI 中取出文件 ID
func FileID(locator string) (string, error) {
	_, rest, ok := strings.Cut(locator, "/files/")
	if !ok {
		return "", fmt.Errorf("unexpected video uri %q", locator)
	}
	id, _, _ := strings.Cut(rest, ":")
	id, _, _ = strings.Cut(id, "?")
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("unexpected video uri %q", locator)
	}
	return id, nil
}

// Fetch GET /gemini/download/v1beta/files/{id}:download?alt=media
func (b *VeoBackend) Fetch(ctx context.Context, locator string) ([]byte, error) {
	id, err := FileID(locator)
	if err != nil {
		return nil, err
	}
	req, err := b.client.NewRequest(ctx, http.MethodGet,
		"/gemini/download/v1beta/files/"+id+":download?alt=media", gateway.AuthGoogAPIKey, nil)
	if err != nil {
		return nil, err
	}
	return b.client.DoRaw(req)
}

// Tracker 返回用于恢复句柄的 Tracker
func (b *VeoBackend) Tracker() longrun.Tracker { return b }

// NewJob 为请求创建任务
func (b *VeoBackend) NewJob(req *GenerateRequest) (longrun.Job, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return &veoJob{VeoBackend: b, req: req}, nil
}

type veoJob struct {
	*VeoBackend
	req *GenerateRequest
}

func (j *veoJob) Submit(ctx context.Context) (longrun.Handle, error) {
	return j.VeoBackend.Submit(ctx, j.req)
}

func validate(req *GenerateRequest) error {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("video prompt is required")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
