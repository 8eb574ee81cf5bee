package jobs

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/thucchien/internal/jobstore"
	"github.com/BaSui01/thucchien/llm/longrun"
	"github.com/BaSui01/thucchien/llm/video"
	"github.com/BaSui01/thucchien/types"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

type fakeBackend struct{ name string }

func (b fakeBackend) Name() string { return b.name }
func (b fakeBackend) Model(*video.GenerateRequest) string { return "veo-test" }
func (b fakeBackend) NewJob(*video.GenerateRequest) (longrun.Job, error) { return nil, nil }
func (b fakeBackend) Tracker() longrun.Tracker { return nil }

// fakeGenerator 通过 ctx 上的观察者上报进度，release 非空时阻塞到关闭或取消。
// stallSubmit 模拟提交请求迟迟不返回：拿不到句柄，直到 ctx 结束
type fakeGenerator struct {
	backend     fakeBackend
	release     chan struct{}
	stallSubmit bool
	artifact    []byte
	err         error
	calls       atomic.Int32
	resumes     atomic.Int32
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{backend: fakeBackend{name: video.BackendVeo}, artifact: []byte("mp4-bytes")}
}

func (f *fakeGenerator) Backend() video.Backend { return f.backend }

func (f *fakeGenerator) Generate(ctx context.Context, req *video.GenerateRequest) (*video.Result, error) {
	f.calls.Add(1)
	if f.stallSubmit {
		<-ctx.Done()
		return nil, &longrun.JobError{Kind: longrun.ErrSubmission, Phase: longrun.PhaseSubmit, Cause: ctx.Err()}
	}
	handle := longrun.Handle("operations/" + req.Prompt)
	if obs := longrun.ObserverFromContext(ctx); obs != nil {
		obs.OnSubmitted(handle)
		obs.OnPoll(handle, 1, time.Second)
	}
	return f.wait(ctx, handle)
}

func (f *fakeGenerator) Resume(ctx context.Context, handle longrun.Handle) (*video.Result, error) {
	f.resumes.Add(1)
	if obs := longrun.ObserverFromContext(ctx); obs != nil {
		obs.OnPoll(handle, 1, time.Second)
	}
	return f.wait(ctx, handle)
}

func (f *fakeGenerator) wait(ctx context.Context, handle longrun.Handle) (*video.Result, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			out := &longrun.Outcome{Handle: handle, State: longrun.StateCanceled, Polls: 1}
			return &video.Result{Outcome: out}, ctx.Err()
		}
	}
	if f.err != nil {
		out := &longrun.Outcome{Handle: handle, State: longrun.StateTimedOut, Polls: 3}
		return &video.Result{Outcome: out}, f.err
	}
	out := &longrun.Outcome{Handle: handle, State: longrun.StateCompleted, Artifact: f.artifact, Polls: 2}
	return &video.Result{Outcome: out}, nil
}

func setupStore(t *testing.T) *jobstore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := jobstore.New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestManager(t *testing.T, store *jobstore.Store, gen Generator) *Manager {
	t.Helper()
	m := NewManager(Config{OutputDir: t.TempDir()}, store, gen, nil, zap.NewNop())
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func waitForState(t *testing.T, store *jobstore.Store, id string, state longrun.State) *jobstore.VideoJob {
	t.Helper()
	var job *jobstore.VideoJob
	require.Eventually(t, func() bool {
		j, err := store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.State == string(state)
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func TestManager_SubmitCompletes(t *testing.T) {
	store := setupStore(t)
	gen := newFakeGenerator()
	m := newTestManager(t, store, gen)

	sub, err := m.Submit(context.Background(), SubmitRequest{
		UserID: "u1",
		Video:  &video.GenerateRequest{Prompt: "Vịnh Hạ Long lúc bình minh"},
	})
	require.NoError(t, err)
	assert.False(t, sub.Replayed)
	assert.Equal(t, string(longrun.StateSubmitted), sub.Job.State)
	assert.Equal(t, video.BackendVeo, sub.Job.Backend)
	assert.Equal(t, "veo-test", sub.Job.Model)

	job := waitForState(t, store, sub.Job.ID, longrun.StateCompleted)
	assert.Equal(t, "operations/Vịnh Hạ Long lúc bình minh", job.Handle)
	assert.Equal(t, 2, job.Polls)
	assert.Equal(t, len("mp4-bytes"), job.Size)
	require.NotNil(t, job.CompletedAt)

	_, path, err := m.VideoPath(context.Background(), "u1", job.ID)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mp4-bytes", string(data))
}

func TestManager_SubmitRequiresPrompt(t *testing.T) {
	m := newTestManager(t, setupStore(t), newFakeGenerator())

	_, err := m.Submit(context.Background(), SubmitRequest{Video: &video.GenerateRequest{Prompt: "  "}})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	_, err = m.Submit(context.Background(), SubmitRequest{})
	assert.Error(t, err)
}

func TestManager_Idempotency(t *testing.T) {
	store := setupStore(t)
	gen := newFakeGenerator()
	m := newTestManager(t, store, gen)
	ctx := context.Background()

	req := SubmitRequest{UserID: "u1", IdempotencyKey: "key-1", Video: &video.GenerateRequest{Prompt: "Huế"}}
	first, err := m.Submit(ctx, req)
	require.NoError(t, err)
	waitForState(t, store, first.Job.ID, longrun.StateCompleted)

	second, err := m.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Job.ID, second.Job.ID)
	assert.Equal(t, int32(1), gen.calls.Load())

	// 不同用户的同名键互不影响
	other, err := m.Submit(ctx, SubmitRequest{UserID: "u2", IdempotencyKey: "key-1", Video: &video.GenerateRequest{Prompt: "Huế"}})
	require.NoError(t, err)
	assert.False(t, other.Replayed)
	assert.NotEqual(t, first.Job.ID, other.Job.ID)
}

func TestManager_FailedJob(t *testing.T) {
	store := setupStore(t)
	gen := newFakeGenerator()
	gen.err = &longrun.JobError{Kind: longrun.ErrTimeout, Phase: longrun.PhasePoll, Polls: 3}
	m := newTestManager(t, store, gen)

	sub, err := m.Submit(context.Background(), SubmitRequest{Video: &video.GenerateRequest{Prompt: "Sa Pa"}})
	require.NoError(t, err)

	job := waitForState(t, store, sub.Job.ID, longrun.StateTimedOut)
	assert.Equal(t, string(types.ErrJobTimeout), job.ErrorCode)
	assert.NotEmpty(t, job.Error)

	_, _, err = m.VideoPath(context.Background(), "", job.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestManager_GetScopedToUser(t *testing.T) {
	store := setupStore(t)
	m := newTestManager(t, store, newFakeGenerator())
	ctx := context.Background()

	sub, err := m.Submit(ctx, SubmitRequest{UserID: "u1", Video: &video.GenerateRequest{Prompt: "Hội An"}})
	require.NoError(t, err)

	_, err = m.Get(ctx, "u1", sub.Job.ID)
	assert.NoError(t, err)
	_, err = m.Get(ctx, "u2", sub.Job.ID)
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
	_, err = m.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, jobstore.ErrNotFound)

	waitForState(t, store, sub.Job.ID, longrun.StateCompleted)
	jobs, err := m.List(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, sub.Job.ID, jobs[0].ID)
}

func TestManager_EventsStream(t *testing.T) {
	store := setupStore(t)
	gen := newFakeGenerator()
	gen.release = make(chan struct{})
	m := newTestManager(t, store, gen)

	sub, err := m.Submit(context.Background(), SubmitRequest{Video: &video.GenerateRequest{Prompt: "Đà Lạt"}})
	require.NoError(t, err)
	waitForState(t, store, sub.Job.ID, longrun.StatePolling)

	events, unsubscribe := m.Hub().Subscribe(sub.Job.ID)
	defer unsubscribe()
	close(gen.release)

	var last Event
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				break
			}
			last = ev
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}
	assert.Equal(t, EventFinished, last.Type)
	assert.Equal(t, string(longrun.StateCompleted), last.State)
	assert.Equal(t, len("mp4-bytes"), last.Size)
}

// drain 读完订阅通道，返回收到的全部事件
func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("subscriber channel was not closed")
			return got
		}
	}
}

func TestManager_CloseDuringSubmissionCancels(t *testing.T) {
	store := setupStore(t)
	gen := newFakeGenerator()
	gen.stallSubmit = true
	m := NewManager(Config{OutputDir: t.TempDir()}, store, gen, nil, zap.NewNop())

	sub, err := m.Submit(context.Background(), SubmitRequest{Video: &video.GenerateRequest{Prompt: "Sa Pa"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	events, unsubscribe := m.Hub().Subscribe(sub.Job.ID)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	job, err := store.Get(context.Background(), sub.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(longrun.StateCanceled), job.State)
	assert.Empty(t, job.ErrorCode)
	assert.Equal(t, "canceled during submission", job.Error)
	assert.Empty(t, job.Handle)
	assert.NotNil(t, job.CompletedAt)

	got := drain(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, EventFinished, got[0].Type)
	assert.Equal(t, string(longrun.StateCanceled), got[0].State)
}

func TestManager_CloseInterruptsAndResume(t *testing.T) {
	store := setupStore(t)
	gen := newFakeGenerator()
	gen.release = make(chan struct{})
	m := NewManager(Config{OutputDir: t.TempDir()}, store, gen, nil, zap.NewNop())

	sub, err := m.Submit(context.Background(), SubmitRequest{Video: &video.GenerateRequest{Prompt: "Phú Quốc"}})
	require.NoError(t, err)
	waitForState(t, store, sub.Job.ID, longrun.StatePolling)
	events, unsubscribe := m.Hub().Subscribe(sub.Job.ID)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	// 订阅者收到 interrupted 后通道关闭
	got := drain(t, events)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventInterrupted, last.Type)
	assert.Equal(t, string(longrun.StatePolling), last.State)
	assert.True(t, last.Terminal())
	assert.Zero(t, m.Hub().Subscribers(sub.Job.ID))

	// 被关闭打断的任务保留句柄，不进入终态
	job, err := store.Get(context.Background(), sub.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(longrun.StatePolling), job.State)
	assert.Equal(t, "operations/Phú Quốc", job.Handle)

	_, err = m.Submit(context.Background(), SubmitRequest{Video: &video.GenerateRequest{Prompt: "x"}})
	assert.ErrorIs(t, err, ErrClosed)

	// 重启后恢复
	gen2 := newFakeGenerator()
	m2 := newTestManager(t, store, gen2)
	n, err := m2.ResumePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	waitForState(t, store, sub.Job.ID, longrun.StateCompleted)
	assert.Equal(t, int32(1), gen2.resumes.Load())
	assert.Zero(t, gen2.calls.Load())
}

func TestManager_ResumeSkipsOtherBackend(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &jobstore.VideoJob{
		ID: "rw-1", Backend: video.BackendRunway, Handle: "task-1", State: string(longrun.StatePolling),
	}))

	gen := newFakeGenerator()
	m := newTestManager(t, store, gen)
	n, err := m.ResumePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, gen.resumes.Load())
}

func TestManager_CloseIdempotent(t *testing.T) {
	m := NewManager(Config{}, setupStore(t), newFakeGenerator(), nil, nil)
	assert.NoError(t, m.Close(context.Background()))
	assert.NoError(t, m.Close(context.Background()))
}

func TestManager_CloseTimeout(t *testing.T) {
	store := setupStore(t)
	gen := newFakeGenerator()
	gen.release = make(chan struct{})
	m := NewManager(Config{OutputDir: t.TempDir()}, store, gen, nil, nil)
	defer close(gen.release)

	_, err := m.Submit(context.Background(), SubmitRequest{Video: &video.GenerateRequest{Prompt: "x"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Close(ctx)
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled))
	}
}
