package video

import (
	"context"
	"net/http"
	"net/url"

	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/llm/longrun"
)

// RunwayBackend 使用 Runway 任务接口生成视频
// API 文件: https://docs.dev.runwayml.com/api/
type RunwayBackend struct {
	client *gateway.Client
	cfg    RunwayConfig
}

// NewRunwayBackend 创建 Runway 后端，client 需指向 Runway 的 BaseURL 与密钥
func NewRunwayBackend(client *gateway.Client, cfg RunwayConfig) *RunwayBackend {
	defaults := DefaultRunwayConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	return &RunwayBackend{client: client, cfg: cfg}
}

func (b *RunwayBackend) Name() string { return BackendRunway }

// Model 返回请求使用的模型
func (b *RunwayBackend) Model(req *GenerateRequest) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return b.cfg.Model
}

type runwayRequest struct {
	Model       string `json:"model"`
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"` // HTTPS URL or data URI
	Ratio       string `json:"ratio,omitempty"`       // e.g., "1280:720", "720:1280"
	Duration    int    `json:"duration,omitempty"`    // 5 或 10 秒
	Seed        int64  `json:"seed,omitempty"`
}

type runwayTask struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"` // PENDING, THROTTLED, RUNNING, SUCCEEDED, FAILED, CANCELLED
	Output      []string `json:"output,omitempty"`
	Failure     string   `json:"failure,omitempty"`
	FailureCode string   `json:"failureCode,omitempty"`
}

// runwayRatio 把通用宽高比转换为 Runway 的像素比
func runwayRatio(aspect string) string {
	switch aspect {
	case "", "16:9":
		return "1280:720"
	case "9:16":
		return "720:1280"
	case "1:1":
		return "960:960"
	default:
		return aspect
	}
}

// runwayDuration Runway 仅接受 5 或 10 秒
func runwayDuration(d int) int {
	if d > 5 {
		return 10
	}
	return 5
}

func (b *RunwayBackend) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	req, err := b.client.NewRequest(ctx, method, path, gateway.AuthBearer, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Runway-Version", b.cfg.Version)
	return req, nil
}

// Submit POST /v1/image_to_video
func (b *RunwayBackend) Submit(ctx context.Context, req *GenerateRequest) (longrun.Handle, error) {
	body := runwayRequest{
		Model:      b.Model(req),
		PromptText: req.Prompt,
		Ratio:      runwayRatio(req.AspectRatio),
		Duration:   runwayDuration(req.Duration),
		Seed:       req.Seed,
	}
	switch {
	case req.ImageURL != "":
		body.PromptImage = req.ImageURL
	case req.ImageBase64 != "":
		body.PromptImage = "data:image/png;base64," + req.ImageBase64
	}

	httpReq, err := b.newRequest(ctx, http.MethodPost, "/v1/image_to_video", body)
	if err != nil {
		return "", err
	}
	var task runwayTask
	if err := b.client.Do(httpReq, &task); err != nil {
		return "", err
	}
	if task.ID == "" {
		return "", gateway.Malformed("runway response has no task id")
	}
	return longrun.Handle(task.ID), nil
}

// Poll GET /v1/tasks/{id}
func (b *RunwayBackend) Poll(ctx context.Context, handle longrun.Handle) (longrun.Status, error) {
	httpReq, err := b.newRequest(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(string(handle)), nil)
	if err != nil {
		return longrun.Status{}, err
	}
	var task runwayTask
	if err := b.client.Do(httpReq, &task); err != nil {
		return longrun.Status{}, err
	}

	switch task.Status {
	case "SUCCEEDED":
		st := longrun.Status{Done: true}
		if len(task.Output) > 0 {
			st.Locator = task.Output[0]
		}
		return st, nil
	case "FAILED", "CANCELLED":
		msg := task.Failure
		if msg == "" {
			msg = "runway task " + task.Status
		}
		if task.FailureCode != "" {
			msg += " (" + task.FailureCode + ")"
		}
		return longrun.Status{Done: true, Failure: &longrun.Failure{Message: msg}}, nil
	default:
		// PENDING, THROTTLED, RUNNING
		return longrun.Status{}, nil
	}
}

// Fetch 直接下载输出地址，不携带密钥
func (b *RunwayBackend) Fetch(ctx context.Context, locator string) ([]byte, error) {
	u, err := url.Parse(locator)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, gateway.Malformed("runway output is not a download url")
	}
	req, err := b.client.NewRequest(ctx, http.MethodGet, locator, gateway.AuthNone, nil)
	if err != nil {
		return nil, err
	}
	return b.client.DoRaw(req)
}

// Tracker 返回用于恢复句柄的 Tracker
func (b *RunwayBackend) Tracker() longrun.Tracker { return b }

// NewJob 为请求创建任务
func (b *RunwayBackend) NewJob(req *GenerateRequest) (longrun.Job, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return &runwayJob{RunwayBackend: b, req: req}, nil
}

type runwayJob struct {
	*RunwayBackend
	req *GenerateRequest
}

func (j *runwayJob) Submit(ctx context.Context) (longrun.Handle, error) {
	return j.RunwayBackend.Submit(ctx, j.req)
}
