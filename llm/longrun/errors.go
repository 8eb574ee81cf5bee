package longrun

import (
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/thucchien/types"
)

// 错误类别，配合 errors.Is 使用
var (
	ErrSubmission = errors.New("job submission failed")
	ErrQuery      = errors.New("job status query failed")
	ErrFetch      = errors.New("job result fetch failed")
	ErrTimeout    = errors.New("job timed out")
	ErrFailed     = errors.New("job failed remotely")
)

// Phase 协议阶段
type Phase string

const (
	PhaseSubmit Phase = "submit"
	PhasePoll   Phase = "poll"
	PhaseFetch  Phase = "fetch"
)

// JobError 携带阶段上下文的任务错误
type JobError struct {
	Kind    error
	Phase   Phase
	Handle  Handle
	Polls   int
	Elapsed time.Duration
	Message string
	Cause   error
}

func (e *JobError) Error() string {
	msg := e.Kind.Error()
	if e.Handle != "" {
		msg += fmt.Sprintf(" (handle=%s", e.Handle)
		if e.Polls > 0 {
			msg += fmt.Sprintf(", polls=%d, elapsed=%s", e.Polls, e.Elapsed.Round(time.Millisecond))
		}
		msg += ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is 匹配错误类别
func (e *JobError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap 返回底层原因（传输错误、context 错误等）
func (e *JobError) Unwrap() error {
	return e.Cause
}

// Code 映射到统一错误码
func (e *JobError) Code() types.ErrorCode {
	switch e.Kind {
	case ErrSubmission:
		return types.ErrJobSubmission
	case ErrQuery:
		return types.ErrJobQuery
	case ErrFetch:
		return types.ErrJobFetch
	case ErrTimeout:
		return types.ErrJobTimeout
	case ErrFailed:
		return types.ErrJobFailed
	default:
		return types.ErrInternalError
	}
}

// AsJobError 沿错误链查找 *JobError
func AsJobError(err error) (*JobError, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je, true
	}
	return nil, false
}
