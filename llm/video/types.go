package video

import (
	"context"
	"time"

	"github.com/BaSui01/thucchien/llm/longrun"
)

// GenerateRequest 视频生成请求
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"` // 16:9, 9:16
	Resolution     string `json:"resolution,omitempty"`   // 720p, 1080p
	Duration       int    `json:"duration,omitempty"`     // 秒
	Seed           int64  `json:"seed,omitempty"`
	// ImageBase64 图生视频的首帧（PNG base64）
	ImageBase64 string `json:"image_base64,omitempty"`
	// ImageURL 图生视频的首帧地址（Runway 使用）
	ImageURL string `json:"image_url,omitempty"`
	// Extra 透传到 parameters 的附加字段
	Extra map[string]any `json:"extra,omitempty"`
}

// Result 视频生成结果
type Result struct {
	Provider  string           `json:"provider"`
	Model     string           `json:"model"`
	Outcome   *longrun.Outcome `json:"outcome"`
	CreatedAt time.Time        `json:"created_at"`
}

// Video 返回视频字节，未完成时为 nil
func (r *Result) Video() []byte {
	if r == nil || r.Outcome == nil {
		return nil
	}
	return r.Outcome.Artifact
}

// Backend 视频后端
type Backend interface {
	// Name 后端名称
	Name() string
	// Model 请求实际使用的模型
	Model(req *GenerateRequest) string
	// NewJob 为请求创建可提交的任务
	NewJob(req *GenerateRequest) (longrun.Job, error)
	// Tracker 用于恢复已有句柄
	Tracker() longrun.Tracker
}

// Runner 执行 longrun 协议，*longrun.Poller 实现了该接口
type Runner interface {
	Run(ctx context.Context, job longrun.Job) (*longrun.Outcome, error)
	Wait(ctx context.Context, handle longrun.Handle, tracker longrun.Tracker) (*longrun.Outcome, error)
}
