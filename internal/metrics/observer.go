package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/thucchien/llm/longrun"
)

// JobObserver 把 longrun 事件写入任务指标
type JobObserver struct {
	c       *Collector
	backend string
}

// NewJobObserver 创建任务指标观察者
func (c *Collector) NewJobObserver(backend string) *JobObserver {
	return &JobObserver{c: c, backend: backend}
}

func (o *JobObserver) OnSubmitted(longrun.Handle) {
	o.c.RecordJobSubmitted(o.backend)
}

func (o *JobObserver) OnPoll(longrun.Handle, int, time.Duration) {
	o.c.RecordJobPoll(o.backend)
}

func (o *JobObserver) OnCompleted(_ longrun.Handle, _ int, elapsed time.Duration) {
	o.c.RecordJobOutcome(o.backend, string(longrun.StateCompleted), elapsed)
}

func (o *JobObserver) OnTimedOut(_ longrun.Handle, elapsed time.Duration) {
	o.c.RecordJobOutcome(o.backend, string(longrun.StateTimedOut), elapsed)
}

func (o *JobObserver) OnFailed(_ longrun.Handle, err error) {
	state := longrun.StateFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		state = longrun.StateCanceled
	}
	var elapsed time.Duration
	if je, ok := longrun.AsJobError(err); ok {
		elapsed = je.Elapsed
	}
	o.c.RecordJobOutcome(o.backend, string(state), elapsed)
}
