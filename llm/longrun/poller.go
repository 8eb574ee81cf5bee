package longrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/retry"
)

// DefaultMaxWait 默认等待预算
const DefaultMaxWait = 600 * time.Second

// Config 轮询配置
type Config struct {
	// MaxWait 自提交成功起的墙钟预算
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait" env:"MAX_WAIT"`
	// Backoff 轮询间隔策略
	Backoff retry.BackoffPolicy `json:"backoff" yaml:"backoff" env:"BACKOFF"`
}

// DefaultConfig 返回默认配置：600s 预算，10s 起步，×1.2，封顶 30s
func DefaultConfig() Config {
	return Config{
		MaxWait: DefaultMaxWait,
		Backoff: retry.DefaultPollPolicy(),
	}
}

// Option 轮询器选项
type Option func(*Poller)

// WithClock 替换时间源
func WithClock(c Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithObserver 设置进度观察者
func WithObserver(o Observer) Option {
	return func(p *Poller) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithTracer 替换 otel tracer
func WithTracer(t trace.Tracer) Option {
	return func(p *Poller) {
		if t != nil {
			p.tracer = t
		}
	}
}

// Poller 驱动 submit → poll → fetch 协议
// 本身不持有任务状态，可并发使用
type Poller struct {
	cfg      Config
	clock    Clock
	observer Observer
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewPoller 创建轮询器
func NewPoller(cfg Config, logger *zap.Logger, opts ...Option) *Poller {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	cfg.Backoff = cfg.Backoff.Normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		cfg:      cfg,
		clock:    RealClock(),
		observer: ObserverFuncs{},
		tracer:   otel.Tracer("github.com/BaSui01/thucchien/llm/longrun"),
		logger:   logger.With(zap.String("component", "poller")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config 返回生效的配置
func (p *Poller) Config() Config { return p.cfg }

// Run 提交任务并等待终态
// 提交失败时 Outcome 为 nil；其余情况总是返回 Outcome 与对应错误
func (p *Poller) Run(ctx context.Context, job Job) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "longrun.submit")
	handle, err := job.Submit(ctx)
	if err == nil && handle == "" {
		err = errors.New("response carries no job handle")
	}
	if err != nil {
		jerr := &JobError{Kind: ErrSubmission, Phase: PhaseSubmit, Cause: err}
		span.RecordError(jerr)
		span.SetStatus(codes.Error, jerr.Error())
		span.End()
		return nil, jerr
	}
	span.SetAttributes(attribute.String("job.handle", string(handle)))
	span.End()

	p.observerFor(ctx).OnSubmitted(handle)
	return p.Wait(ctx, handle, job)
}

// Wait 对已有句柄轮询直到终态，预算从调用时刻开始计算
func (p *Poller) Wait(ctx context.Context, handle Handle, tracker Tracker) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "longrun.wait",
		trace.WithAttributes(attribute.String("job.handle", string(handle))))
	defer span.End()

	obs := p.observerFor(ctx)
	start := p.clock.Now()
	deadline := start.Add(p.cfg.MaxWait)
	bo := retry.NewBackoff(p.cfg.Backoff)
	out := &Outcome{Handle: handle, State: StatePolling}

	finish := func(state State, err error) (*Outcome, error) {
		out.State = state
		out.Elapsed = p.clock.Now().Sub(start)
		span.SetAttributes(
			attribute.String("job.state", string(state)),
			attribute.Int("job.polls", out.Polls),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
	jobErr := func(kind error, phase Phase, msg string, cause error) *JobError {
		return &JobError{
			Kind:    kind,
			Phase:   phase,
			Handle:  handle,
			Polls:   out.Polls,
			Elapsed: p.clock.Now().Sub(start),
			Message: msg,
			Cause:   cause,
		}
	}

	// 取消也通过 OnFailed 通知，观察者可用 errors.Is(err, context.Canceled) 区分
	canceled := func(stage string, cause error) (*Outcome, error) {
		err := fmt.Errorf("%s for %s canceled: %w", stage, handle, cause)
		obs.OnFailed(handle, err)
		return finish(StateCanceled, err)
	}

	for {
		now := p.clock.Now()
		elapsed := now.Sub(start)
		if elapsed >= p.cfg.MaxWait {
			obs.OnTimedOut(handle, elapsed)
			return finish(StateTimedOut, jobErr(ErrTimeout, PhasePoll,
				fmt.Sprintf("no result within %s", p.cfg.MaxWait), nil))
		}
		if err := ctx.Err(); err != nil {
			return canceled("wait", err)
		}

		out.Polls++
		obs.OnPoll(handle, out.Polls, elapsed)
		status, err := tracker.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return canceled("poll", ctx.Err())
			}
			jerr := jobErr(ErrQuery, PhasePoll, "", err)
			obs.OnFailed(handle, jerr)
			return finish(StateFailed, jerr)
		}
		span.AddEvent("poll", trace.WithAttributes(
			attribute.Int("attempt", out.Polls),
			attribute.Bool("done", status.Done),
		))

		if status.Failure != nil {
			out.Failure = status.Failure
			jerr := jobErr(ErrFailed, PhasePoll, status.Failure.Message, nil)
			obs.OnFailed(handle, jerr)
			return finish(StateFailed, jerr)
		}

		if status.Done && status.Locator != "" {
			out.Locator = status.Locator
			data, err := p.fetch(ctx, tracker, handle, status.Locator)
			if err != nil {
				if ctx.Err() != nil {
					return canceled("fetch", ctx.Err())
				}
				jerr := jobErr(ErrFetch, PhaseFetch, "", err)
				obs.OnFailed(handle, jerr)
				return finish(StateFailed, jerr)
			}
			out.Artifact = data
			res, ferr := finish(StateCompleted, nil)
			obs.OnCompleted(handle, len(data), res.Elapsed)
			return res, ferr
		}
		if status.Done {
			p.logger.Debug("job done without locator, continue polling",
				zap.String("handle", string(handle)))
		}

		wait := bo.Current()
		if remaining := deadline.Sub(p.clock.Now()); wait > remaining {
			wait = remaining
		}
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return canceled("wait", err)
		}
		bo.Advance()
	}
}

// observerFor 合并构造时的观察者与 ctx 携带的单次观察者
func (p *Poller) observerFor(ctx context.Context) Observer {
	if o := ObserverFromContext(ctx); o != nil {
		return Observers(p.observer, o)
	}
	return p.observer
}

func (p *Poller) fetch(ctx context.Context, tracker Tracker, handle Handle, locator string) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "longrun.fetch",
		trace.WithAttributes(attribute.String("job.handle", string(handle))))
	defer span.End()

	data, err := tracker.Fetch(ctx, locator)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("job.bytes", len(data)))
	return data, nil
}
