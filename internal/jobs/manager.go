package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/internal/cache"
	"github.com/BaSui01/thucchien/internal/jobstore"
	"github.com/BaSui01/thucchien/llm/longrun"
	"github.com/BaSui01/thucchien/llm/video"
	"github.com/BaSui01/thucchien/types"
)

var (
	// ErrClosed 管理器已关闭
	ErrClosed = errors.New("job manager is closed")
	// ErrNotReady 视频尚未生成
	ErrNotReady = errors.New("video is not ready")
)

const storeTimeout = 5 * time.Second

// Generator 视频生成器，*video.Generator 实现了该接口
type Generator interface {
	Backend() video.Backend
	Generate(ctx context.Context, req *video.GenerateRequest) (*video.Result, error)
	Resume(ctx context.Context, handle longrun.Handle) (*video.Result, error)
}

// Config 任务管理配置
type Config struct {
	OutputDir      string
	IdempotencyTTL time.Duration
	MaxConcurrent  int
}

// SubmitRequest 提交参数
type SubmitRequest struct {
	UserID         string
	IdempotencyKey string
	Video          *video.GenerateRequest
}

// Submission 提交结果
type Submission struct {
	Job *jobstore.VideoJob
	// Replayed 为 true 表示命中幂等键，返回的是已有任务
	Replayed bool
}

// Manager 后台视频任务管理器
type Manager struct {
	cfg    Config
	store  *jobstore.Store
	gen    Generator
	idem   cache.IdempotencyStore
	hub    *Hub
	logger *zap.Logger

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewManager 创建任务管理器
func NewManager(cfg Config, store *jobstore.Store, gen Generator, idem cache.IdempotencyStore, logger *zap.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "data/videos"
	}
	if idem == nil {
		idem = cache.NewMemoryIdempotency()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		store:  store,
		gen:    gen,
		idem:   idem,
		hub:    NewHub(),
		logger: logger.With(zap.String("component", "jobs")),
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Hub 返回事件分发器
func (m *Manager) Hub() *Hub { return m.hub }

// Submit 创建任务记录并在后台运行
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if req.Video == nil || strings.TrimSpace(req.Video.Prompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is required")
	}
	if m.isClosed() {
		return nil, ErrClosed
	}

	id := uuid.NewString()
	var idemKey string
	if req.IdempotencyKey != "" {
		idemKey = cache.HashKey(req.UserID, req.IdempotencyKey)
		existing, claimed, err := m.idem.Claim(ctx, idemKey, id, m.cfg.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			job, err := m.store.Get(ctx, existing)
			if errors.Is(err, jobstore.ErrNotFound) {
				return nil, types.NewError(types.ErrJobConflict, "a request with the same idempotency key is in progress").
					WithRetryable(true)
			}
			if err != nil {
				return nil, err
			}
			return &Submission{Job: job, Replayed: true}, nil
		}
	}

	backend := m.gen.Backend()
	job := &jobstore.VideoJob{
		ID:      id,
		UserID:  req.UserID,
		Backend: backend.Name(),
		Model:   backend.Model(req.Video),
		Prompt:  req.Video.Prompt,
		State:   string(longrun.StateSubmitted),
	}
	if err := m.store.Create(ctx, job); err != nil {
		if idemKey != "" {
			_ = m.idem.Release(ctx, idemKey)
		}
		return nil, err
	}

	snapshot := *job
	vreq := *req.Video
	if err := m.start(job, func(ctx context.Context) (*video.Result, error) {
		return m.gen.Generate(ctx, &vreq)
	}); err != nil {
		return nil, err
	}

	m.logger.Info("video job accepted",
		zap.String("job_id", id),
		zap.String("user_id", req.UserID),
		zap.String("backend", job.Backend))
	return &Submission{Job: &snapshot}, nil
}

// ResumePending 继续轮询上次未完成的任务，返回恢复的数量
func (m *Manager) ResumePending(ctx context.Context) (int, error) {
	pending, err := m.store.Pending(ctx)
	if err != nil {
		return 0, err
	}
	name := m.gen.Backend().Name()
	resumed := 0
	for i := range pending {
		job := pending[i]
		if job.Backend != name {
			m.logger.Warn("skipping pending job from another backend",
				zap.String("job_id", job.ID),
				zap.String("job_backend", job.Backend),
				zap.String("backend", name))
			continue
		}
		handle := longrun.Handle(job.Handle)
		if err := m.start(&job, func(ctx context.Context) (*video.Result, error) {
			return m.gen.Resume(ctx, handle)
		}); err != nil {
			return resumed, err
		}
		resumed++
	}
	if resumed > 0 {
		m.logger.Info("resumed pending video jobs", zap.Int("count", resumed))
	}
	return resumed, nil
}

// Get 查询任务，userID 非空时只返回该用户的任务
func (m *Manager) Get(ctx context.Context, userID, id string) (*jobstore.VideoJob, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && job.UserID != "" && job.UserID != userID {
		return nil, jobstore.ErrNotFound
	}
	return job, nil
}

// List 列出用户的任务
func (m *Manager) List(ctx context.Context, userID string, limit int) ([]jobstore.VideoJob, error) {
	return m.store.ListByUser(ctx, userID, limit)
}

// VideoPath 返回已完成任务的视频文件路径
func (m *Manager) VideoPath(ctx context.Context, userID, id string) (*jobstore.VideoJob, string, error) {
	job, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if job.State != string(longrun.StateCompleted) || job.FilePath == "" {
		return job, "", ErrNotReady
	}
	return job, job.FilePath, nil
}

// Close 取消所有任务并等待退出
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for video jobs: %w", ctx.Err())
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) start(job *jobstore.VideoJob, run func(ctx context.Context) (*video.Result, error)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		select {
		case m.sem <- struct{}{}:
		case <-m.ctx.Done():
			m.abandon(job)
			return
		}
		defer func() { <-m.sem }()

		ctx := types.WithJobID(m.ctx, job.ID)
		ctx = longrun.ContextWithObserver(ctx, m.progress(job.ID))
		res, err := run(ctx)
		m.finish(job, res, err)
	}()
	return nil
}

// progress 把轮询进度写入存储并广播
func (m *Manager) progress(id string) longrun.Observer {
	update := func(typ EventType, handle longrun.Handle, state longrun.State, polls int, elapsed time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := m.store.UpdateProgress(ctx, id, handle, state, polls); err != nil {
			m.logger.Warn("failed to record job progress", zap.String("job_id", id), zap.Error(err))
		}
		m.hub.Publish(Event{
			Type:      typ,
			JobID:     id,
			State:     string(state),
			Polls:     polls,
			ElapsedMS: elapsed.Milliseconds(),
			At:        time.Now(),
		})
	}
	return longrun.ObserverFuncs{
		Submitted: func(handle longrun.Handle) {
			update(EventSubmitted, handle, longrun.StateSubmitted, 0, 0)
		},
		Poll: func(handle longrun.Handle, attempt int, elapsed time.Duration) {
			update(EventPoll, handle, longrun.StatePolling, attempt, elapsed)
		},
	}
}

func (m *Manager) finish(job *jobstore.VideoJob, res *video.Result, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var out *longrun.Outcome
	if res != nil {
		out = res.Outcome
	}

	// 关闭引起的取消：已有句柄的保留句柄，下次启动时恢复；提交途中被打断的直接取消
	if m.ctx.Err() != nil {
		switch {
		case out == nil:
			m.cancelJob(job, "canceled during submission")
			return
		case out.State == longrun.StateCanceled:
			if uerr := m.store.UpdateProgress(ctx, job.ID, out.Handle, longrun.StatePolling, out.Polls); uerr != nil {
				m.logger.Warn("failed to record interrupted job", zap.String("job_id", job.ID), zap.Error(uerr))
			}
			m.interrupt(job.ID, out.Handle, out.Polls, out.Elapsed)
			return
		}
	}

	job.ApplyOutcome(out, err)
	if job.State == string(longrun.StateCompleted) {
		path, werr := m.writeVideo(job.ID, out.Artifact)
		if werr != nil {
			job.State = string(longrun.StateFailed)
			job.ErrorCode = string(types.ErrInternalError)
			job.Error = werr.Error()
		} else {
			job.FilePath = path
		}
	}

	if serr := m.store.Save(ctx, job); serr != nil {
		m.logger.Error("failed to save video job", zap.String("job_id", job.ID), zap.Error(serr))
	}
	m.hub.Publish(SnapshotEvent(job))

	if job.State == string(longrun.StateCompleted) {
		m.logger.Info("video job completed",
			zap.String("job_id", job.ID),
			zap.Int("size", job.Size),
			zap.Int("polls", job.Polls))
	} else {
		m.logger.Warn("video job ended",
			zap.String("job_id", job.ID),
			zap.String("state", job.State),
			zap.String("error_code", job.ErrorCode),
			zap.String("error", job.Error))
	}
}

// abandon 关闭时仍在排队的任务：恢复中的任务保留句柄，未提交过的直接取消
func (m *Manager) abandon(job *jobstore.VideoJob) {
	if job.Handle != "" {
		m.interrupt(job.ID, longrun.Handle(job.Handle), job.Polls, time.Duration(job.ElapsedMS)*time.Millisecond)
		return
	}
	m.cancelJob(job, "canceled before submission")
}

func (m *Manager) cancelJob(job *jobstore.VideoJob, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	now := time.Now()
	job.State = string(longrun.StateCanceled)
	job.ErrorCode = ""
	job.Error = reason
	job.CompletedAt = &now
	if err := m.store.Save(ctx, job); err != nil {
		m.logger.Error("failed to save canceled job", zap.String("job_id", job.ID), zap.Error(err))
	}
	m.hub.Publish(SnapshotEvent(job))
	m.logger.Info("video job canceled by shutdown", zap.String("job_id", job.ID), zap.String("reason", reason))
}

// interrupt 通知订阅者本次服务不再推送该任务的进度
func (m *Manager) interrupt(id string, handle longrun.Handle, polls int, elapsed time.Duration) {
	m.hub.Publish(Event{
		Type:      EventInterrupted,
		JobID:     id,
		State:     string(longrun.StatePolling),
		Polls:     polls,
		ElapsedMS: elapsed.Milliseconds(),
		At:        time.Now(),
	})
	m.logger.Info("video job interrupted by shutdown",
		zap.String("job_id", id),
		zap.String("handle", string(handle)))
}

func (m *Manager) writeVideo(id string, data []byte) (string, error) {
	if err := os.MkdirAll(m.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(m.cfg.OutputDir, id+".mp4")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write video: %w", err)
	}
	return path, nil
}
