package longrun

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/retry"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

type scriptedJob struct {
	mu sync.Mutex

	clock   *ManualClock
	latency time.Duration

	handle    Handle
	submitErr error

	statuses []Status
	pollErr  error
	pollAt   []time.Duration

	artifact []byte
	fetchErr error
	fetched  []string

	start time.Time
	polls int
}

func (j *scriptedJob) Submit(ctx context.Context) (Handle, error) {
	j.start = j.clock.Now()
	return j.handle, j.submitErr
}

func (j *scriptedJob) Poll(ctx context.Context, handle Handle) (Status, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pollAt = append(j.pollAt, j.clock.Now().Sub(j.start))
	j.clock.Advance(j.latency)
	idx := j.polls
	j.polls++
	if j.pollErr != nil {
		return Status{}, j.pollErr
	}
	if idx < len(j.statuses) {
		return j.statuses[idx], nil
	}
	return Status{}, nil
}

func (j *scriptedJob) Fetch(ctx context.Context, locator string) ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fetched = append(j.fetched, locator)
	if j.fetchErr != nil {
		return nil, j.fetchErr
	}
	return j.artifact, nil
}

func newTestPoller(clock Clock, maxWait, interval time.Duration, opts ...Option) *Poller {
	cfg := Config{
		MaxWait: maxWait,
		Backoff: retry.BackoffPolicy{
			InitialDelay: interval,
			MaxDelay:     30 * time.Second,
			Multiplier:   1.2,
		},
	}
	return NewPoller(cfg, zap.NewNop(), append([]Option{WithClock(clock)}, opts...)...)
}

func notDone(n int) []Status {
	return make([]Status, n)
}

// =============================================================================
// 🎯 预算与节奏
// =============================================================================

func TestPoller_ThirdPollAt25sCompletes(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{
		clock:    clock,
		latency:  1500 * time.Millisecond,
		handle:   "models/veo/operations/abc",
		statuses: append(notDone(2), Status{Done: true, Locator: "https://x/files/f1:download?alt=media"}),
		artifact: []byte("mp4-bytes"),
	}

	p := newTestPoller(clock, 30*time.Second, 10*time.Second)
	out, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, []byte("mp4-bytes"), out.Artifact)
	assert.Equal(t, 3, out.Polls)
	assert.Equal(t, []string{"https://x/files/f1:download?alt=media"}, job.fetched)
	require.Len(t, job.pollAt, 3)
	assert.InDelta(t, 25.0, job.pollAt[2].Seconds(), 0.001)
}

func TestPoller_ThirdPollPastBudgetTimesOut(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	// 第三次轮询本应发生在 35s，但预算仅 30s
	job := &scriptedJob{
		clock:    clock,
		latency:  6500 * time.Millisecond,
		handle:   "op-1",
		statuses: append(notDone(2), Status{Done: true, Locator: "loc"}),
		artifact: []byte("never"),
	}

	p := newTestPoller(clock, 30*time.Second, 10*time.Second)
	out, err := p.Run(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	require.NotNil(t, out)
	assert.Equal(t, StateTimedOut, out.State)
	assert.Nil(t, out.Artifact)
	assert.Equal(t, 2, out.Polls)
	assert.Empty(t, job.fetched)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2)
	assert.Equal(t, 10*time.Second, sleeps[0])
	// 第二次睡眠被裁剪到剩余预算
	assert.InDelta(t, 7.0, sleeps[1].Seconds(), 0.001)

	je, ok := AsJobError(err)
	require.True(t, ok)
	assert.Equal(t, PhasePoll, je.Phase)
	assert.Equal(t, Handle("op-1"), je.Handle)
}

func TestPoller_BackoffSequence(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{clock: clock, handle: "h"}

	p := newTestPoller(clock, 300*time.Second, 10*time.Second)
	_, err := p.Run(context.Background(), job)
	require.ErrorIs(t, err, ErrTimeout)

	want := []float64{10, 12, 14.4, 17.28, 20.736, 24.8832, 29.85984, 30, 30, 30}
	sleeps := clock.Sleeps()
	require.GreaterOrEqual(t, len(sleeps), len(want))
	for i, w := range want {
		assert.InDelta(t, w, sleeps[i].Seconds(), 1e-6, "sleep %d", i)
	}
}

// =============================================================================
// 🎯 已完成 / 未完成
// =============================================================================

func TestPoller_NPollsThenDone(t *testing.T) {
	for _, n := range []int{0, 1, 4, 9} {
		clock := NewManualClock(time.Unix(0, 0))
		job := &scriptedJob{
			clock:    clock,
			handle:   "h",
			statuses: append(notDone(n), Status{Done: true, Locator: "loc"}),
			artifact: []byte{1, 2, 3},
		}
		p := newTestPoller(clock, DefaultMaxWait, 10*time.Second)
		out, err := p.Run(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, n+1, out.Polls)
		assert.Len(t, job.fetched, 1)
	}
}

func TestPoller_DoneWithoutLocatorKeepsPolling(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{
		clock:  clock,
		handle: "h",
		statuses: []Status{
			{Done: true},
			{Done: true},
			{Done: true, Locator: "loc"},
		},
		artifact: []byte("ok"),
	}
	p := newTestPoller(clock, DefaultMaxWait, 10*time.Second)
	out, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Polls)
	assert.Equal(t, "loc", out.Locator)
}

func TestPoller_DoneWithoutLocatorUntilTimeout(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	statuses := make([]Status, 100)
	for i := range statuses {
		statuses[i] = Status{Done: true}
	}
	job := &scriptedJob{clock: clock, handle: "h", statuses: statuses}
	p := newTestPoller(clock, 60*time.Second, 10*time.Second)
	out, err := p.Run(context.Background(), job)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateTimedOut, out.State)
	assert.Empty(t, job.fetched)
}

// =============================================================================
// 🎯 错误分类
// =============================================================================

func TestPoller_SubmissionErrors(t *testing.T) {
	t.Run("missing handle", func(t *testing.T) {
		clock := NewManualClock(time.Unix(0, 0))
		job := &scriptedJob{clock: clock}
		out, err := newTestPoller(clock, time.Minute, time.Second).Run(context.Background(), job)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrSubmission)
		assert.Zero(t, job.polls)
	})

	t.Run("transport error kept as cause", func(t *testing.T) {
		clock := NewManualClock(time.Unix(0, 0))
		cause := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		job := &scriptedJob{clock: clock, handle: "h", submitErr: cause}
		_, err := newTestPoller(clock, time.Minute, time.Second).Run(context.Background(), job)
		assert.ErrorIs(t, err, ErrSubmission)
		var netErr net.Error
		assert.ErrorAs(t, err, &netErr)
		assert.Zero(t, job.polls)
	})
}

func TestPoller_QueryError(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{clock: clock, handle: "h", pollErr: errors.New("malformed status")}
	out, err := newTestPoller(clock, time.Minute, time.Second).Run(context.Background(), job)
	assert.ErrorIs(t, err, ErrQuery)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 1, out.Polls)
}

func TestPoller_FetchError(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{
		clock:    clock,
		handle:   "h",
		statuses: []Status{{Done: true, Locator: "bad"}},
		fetchErr: errors.New("unexpected locator"),
	}
	out, err := newTestPoller(clock, time.Minute, time.Second).Run(context.Background(), job)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, StateFailed, out.State)
	assert.Nil(t, out.Artifact)

	je, ok := AsJobError(err)
	require.True(t, ok)
	assert.Equal(t, PhaseFetch, je.Phase)
}

func TestPoller_RemoteFailure(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{
		clock:    clock,
		handle:   "h",
		statuses: []Status{{}, {Done: true, Failure: &Failure{Code: 3, Message: "content policy"}}},
	}
	out, err := newTestPoller(clock, time.Minute, time.Second).Run(context.Background(), job)
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, err.Error(), "content policy")
	assert.Equal(t, StateFailed, out.State)
	require.NotNil(t, out.Failure)
	assert.Equal(t, 3, out.Failure.Code)
	assert.Empty(t, job.fetched)
}

func TestPoller_Canceled(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	job := &scriptedJob{clock: clock, handle: "h"}
	obs := ObserverFuncs{Poll: func(_ Handle, attempt int, _ time.Duration) {
		if attempt == 2 {
			cancel()
		}
	}}

	out, err := newTestPoller(clock, time.Hour, time.Second, WithObserver(obs)).Run(ctx, job)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCanceled, out.State)
	assert.True(t, out.State.Terminal())
}

// =============================================================================
// 🎯 观察者
// =============================================================================

func TestPoller_ObserverEvents(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{
		clock:    clock,
		handle:   "h",
		statuses: append(notDone(2), Status{Done: true, Locator: "loc"}),
		artifact: []byte("abcd"),
	}

	var events []string
	var size int
	rec := ObserverFuncs{
		Submitted: func(Handle) { events = append(events, "submitted") },
		Poll:      func(Handle, int, time.Duration) { events = append(events, "poll") },
		Completed: func(_ Handle, n int, _ time.Duration) {
			events = append(events, "completed")
			size = n
		},
	}
	obs := Observers(rec, nil, NewLogObserver(zap.NewNop()))

	_, err := newTestPoller(clock, time.Minute, time.Second, WithObserver(obs)).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []string{"submitted", "poll", "poll", "poll", "completed"}, events)
	assert.Equal(t, 4, size)
}

func TestPoller_ContextObserver(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{
		clock:    clock,
		handle:   "h",
		statuses: []Status{{Done: true, Locator: "loc"}},
		artifact: []byte("ab"),
	}

	var global, scoped []string
	p := newTestPoller(clock, time.Minute, time.Second, WithObserver(ObserverFuncs{
		Submitted: func(Handle) { global = append(global, "submitted") },
		Completed: func(Handle, int, time.Duration) { global = append(global, "completed") },
	}))
	ctx := ContextWithObserver(context.Background(), ObserverFuncs{
		Submitted: func(Handle) { scoped = append(scoped, "submitted") },
		Completed: func(Handle, int, time.Duration) { scoped = append(scoped, "completed") },
	})

	_, err := p.Run(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, []string{"submitted", "completed"}, global)
	assert.Equal(t, global, scoped)

	assert.Nil(t, ObserverFromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithObserver(context.Background(), nil))
}

func TestPoller_WaitResumesHandle(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	job := &scriptedJob{
		clock:    clock,
		statuses: []Status{{Done: true, Locator: "loc"}},
		artifact: []byte("x"),
	}
	out, err := newTestPoller(clock, time.Minute, time.Second).Wait(context.Background(), "resumed", job)
	require.NoError(t, err)
	assert.Equal(t, Handle("resumed"), out.Handle)
	assert.Equal(t, StateCompleted, out.State)
}

func TestNewPoller_Defaults(t *testing.T) {
	p := NewPoller(Config{}, nil)
	cfg := p.Config()
	assert.Equal(t, DefaultMaxWait, cfg.MaxWait)
	assert.Equal(t, 10*time.Second, cfg.Backoff.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Backoff.MaxDelay)
	assert.Equal(t, 1.2, cfg.Backoff.Multiplier)
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateSubmitted.Terminal())
	assert.False(t, StatePolling.Terminal())
	for _, s := range []State{StateCompleted, StateTimedOut, StateFailed, StateCanceled} {
		assert.True(t, s.Terminal(), s)
	}
}
