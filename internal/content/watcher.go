package content

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher 轮询文件修改时间并触发回调
type Watcher struct {
	path     string
	interval time.Duration
	debounce time.Duration
	onChange func()
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	lastMod time.Time
	exists  bool
}

// WatcherOption 监听器选项
type WatcherOption func(*Watcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounce 设置防抖时间，编辑器保存时常常连续写入
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger 设置日志
func WithWatcherLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher 创建监听器
func NewWatcher(path string, onChange func(), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		debounce: 100 * time.Millisecond,
		onChange: onChange,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "content_watcher"))
	return w
}

// Watch 为 Store 创建监听器，文件变化时 Reload
func (s *Store) Watch(ctx context.Context, opts ...WatcherOption) (*Watcher, error) {
	opts = append([]WatcherOption{WithWatcherLogger(s.logger)}, opts...)
	w := NewWatcher(s.path, func() { _ = s.Reload() }, opts...)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Start 启动轮询
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod, w.exists = info.ModTime(), true
	}

	go w.loop(ctx, w.stop, w.done)

	w.logger.Info("content watcher started",
		zap.String("path", w.path),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop 停止轮询并等待退出
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()
	<-done
}

func (w *Watcher) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if w.changed() {
				pending = time.After(w.debounce)
			}
		case <-pending:
			pending = nil
			w.logger.Debug("content file changed", zap.String("path", w.path))
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}

// changed 比较修改时间；删除也算变化
func (w *Watcher) changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		if w.exists {
			w.exists = false
			return true
		}
		return false
	}
	if !w.exists || !info.ModTime().Equal(w.lastMod) {
		w.lastMod, w.exists = info.ModTime(), true
		return true
	}
	return false
}
