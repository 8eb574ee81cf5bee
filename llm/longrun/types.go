package longrun

import (
	"context"
	"time"
)

// Handle 远程任务句柄，由提交接口返回，终态后不可复用
type Handle string

// State 任务状态
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Terminal 是否为终态
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

// Failure 服务端显式报告的失败信息
type Failure struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Status 单次轮询结果，不持久化
type Status struct {
	// Done 服务端是否认为任务已结束，缺失时按 false 处理
	Done bool
	// Locator 结果定位符，仅在 Done 且结果可取回时非空
	Locator string
	// Failure 非空表示服务端报告任务失败
	Failure *Failure
}

// Tracker 查询任务状态并取回产物
type Tracker interface {
	// Poll 查询一次任务状态
	Poll(ctx context.Context, handle Handle) (Status, error)
	// Fetch 根据定位符下载产物
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Job 一个可提交的远程任务
type Job interface {
	Tracker
	// Submit 创建远程任务（非幂等，重复提交会创建重复任务）
	Submit(ctx context.Context) (Handle, error)
}

// Outcome 任务的终态结果
// 只要拿到了句柄，Run/Wait 总会返回非 nil 的 Outcome
type Outcome struct {
	Handle   Handle        `json:"handle"`
	State    State         `json:"state"`
	Artifact []byte        `json:"-"`
	Locator  string        `json:"locator,omitempty"`
	Polls    int           `json:"polls"`
	Elapsed  time.Duration `json:"elapsed"`
	Failure  *Failure      `json:"failure,omitempty"`
}
