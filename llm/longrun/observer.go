package longrun

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Observer 任务进度回调，实现必须是非阻塞的
type Observer interface {
	OnSubmitted(handle Handle)
	OnPoll(handle Handle, attempt int, elapsed time.Duration)
	OnCompleted(handle Handle, size int, elapsed time.Duration)
	OnTimedOut(handle Handle, elapsed time.Duration)
	OnFailed(handle Handle, err error)
}

// ObserverFuncs 以函数字段实现 Observer，未设置的回调忽略
type ObserverFuncs struct {
	Submitted func(handle Handle)
	Poll      func(handle Handle, attempt int, elapsed time.Duration)
	Completed func(handle Handle, size int, elapsed time.Duration)
	TimedOut  func(handle Handle, elapsed time.Duration)
	Failed    func(handle Handle, err error)
}

func (f ObserverFuncs) OnSubmitted(handle Handle) {
	if f.Submitted != nil {
		f.Submitted(handle)
	}
}

func (f ObserverFuncs) OnPoll(handle Handle, attempt int, elapsed time.Duration) {
	if f.Poll != nil {
		f.Poll(handle, attempt, elapsed)
	}
}

func (f ObserverFuncs) OnCompleted(handle Handle, size int, elapsed time.Duration) {
	if f.Completed != nil {
		f.Completed(handle, size, elapsed)
	}
}

func (f ObserverFuncs) OnTimedOut(handle Handle, elapsed time.Duration) {
	if f.TimedOut != nil {
		f.TimedOut(handle, elapsed)
	}
}

func (f ObserverFuncs) OnFailed(handle Handle, err error) {
	if f.Failed != nil {
		f.Failed(handle, err)
	}
}

type observerKey struct{}

// ContextWithObserver 为单次 Run/Wait 附加观察者（例如 HTTP 接口的单任务事件流）
func ContextWithObserver(ctx context.Context, o Observer) context.Context {
	if o == nil {
		return ctx
	}
	return context.WithValue(ctx, observerKey{}, o)
}

// ObserverFromContext 取出 ctx 上的观察者，没有时返回 nil
func ObserverFromContext(ctx context.Context) Observer {
	o, _ := ctx.Value(observerKey{}).(Observer)
	return o
}

type multiObserver []Observer

// Observers 把事件扇出到多个观察者，nil 项被跳过
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) OnSubmitted(handle Handle) {
	for _, o := range m {
		o.OnSubmitted(handle)
	}
}

func (m multiObserver) OnPoll(handle Handle, attempt int, elapsed time.Duration) {
	for _, o := range m {
		o.OnPoll(handle, attempt, elapsed)
	}
}

func (m multiObserver) OnCompleted(handle Handle, size int, elapsed time.Duration) {
	for _, o := range m {
		o.OnCompleted(handle, size, elapsed)
	}
}

func (m multiObserver) OnTimedOut(handle Handle, elapsed time.Duration) {
	for _, o := range m {
		o.OnTimedOut(handle, elapsed)
	}
}

func (m multiObserver) OnFailed(handle Handle, err error) {
	for _, o := range m {
		o.OnFailed(handle, err)
	}
}

// LogObserver 把进度写入 zap 日志
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver 创建日志观察者
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger.With(zap.String("component", "longrun"))}
}

func (l *LogObserver) OnSubmitted(handle Handle) {
	l.logger.Info("job submitted", zap.String("handle", string(handle)))
}

func (l *LogObserver) OnPoll(handle Handle, attempt int, elapsed time.Duration) {
	l.logger.Info("waiting for job",
		zap.String("handle", string(handle)),
		zap.Int("attempt", attempt),
		zap.Duration("elapsed", elapsed),
	)
}

func (l *LogObserver) OnCompleted(handle Handle, size int, elapsed time.Duration) {
	l.logger.Info("job completed",
		zap.String("handle", string(handle)),
		zap.Int("bytes", size),
		zap.Duration("elapsed", elapsed),
	)
}

func (l *LogObserver) OnTimedOut(handle Handle, elapsed time.Duration) {
	l.logger.Warn("job timed out",
		zap.String("handle", string(handle)),
		zap.Duration("elapsed", elapsed),
	)
}

func (l *LogObserver) OnFailed(handle Handle, err error) {
	l.logger.Error("job failed",
		zap.String("handle", string(handle)),
		zap.Error(err),
	)
}
