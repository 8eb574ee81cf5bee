package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Hook 在 http.Server 停止接收请求后执行的清理步骤
type Hook func(ctx context.Context) error

// Config 单个监听端口的配置
type Config struct {
	Addr         string        `yaml:"addr" json:"addr" env:"ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" env:"IDLE_TIMEOUT"`

	MaxHeaderBytes int `yaml:"max_header_bytes" json:"max_header_bytes" env:"MAX_HEADER_BYTES"`

	// ShutdownTimeout 连接排空与钩子共享的时间上限
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DefaultConfig 返回默认服务器配置
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// =============================================================================
// 🌐 Manager
// =============================================================================

// Manager 管理一个 http.Server 的监听、排空与关闭钩子
type Manager struct {
	srv    *http.Server
	cfg    Config
	logger *zap.Logger
	failed chan error

	mu    sync.Mutex
	state state
	ln    net.Listener
	hooks []Hook
}

// NewManager 创建管理器，Start 之前不会监听
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		cfg:    cfg,
		logger: logger.With(zap.String("component", "http_server"), zap.String("addr", cfg.Addr)),
		failed: make(chan error, 1),
	}
}

// OnShutdown 注册关闭钩子，按注册顺序执行；单个钩子失败不影响后续钩子
func (m *Manager) OnShutdown(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Start 监听并在后台开始服务
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateRunning:
		return errors.New("server already started")
	case stateStopped:
		return errors.New("server is closed")
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	m.ln = ln
	m.state = stateRunning

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("HTTP server failed", zap.Error(err))
		select {
		case m.failed <- err:
		default:
		}
	}()

	m.logger.Info("listening", zap.String("bound", ln.Addr().String()))
	return nil
}

// Shutdown 排空连接后执行钩子，返回全部错误的合并；重复调用返回 nil
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.state == stateStopped {
		m.mu.Unlock()
		return nil
	}
	m.state = stateStopped
	hooks := append([]Hook(nil), m.hooks...)
	m.mu.Unlock()

	if m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}

	var result *multierror.Error
	if err := m.srv.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("drain connections: %w", err))
	}
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	err := result.ErrorOrNil()
	if err != nil {
		m.logger.Error("shutdown finished with errors", zap.Error(err))
	} else {
		m.logger.Info("HTTP server stopped")
	}
	return err
}

// Wait 阻塞到 ctx 结束、收到 SIGINT/SIGTERM 或 Serve 异常退出，然后执行 Shutdown
func (m *Manager) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-sigCtx.Done():
		m.logger.Info("shutdown requested")
	case serveErr = <-m.failed:
	}

	// 关闭不继承已取消的 ctx
	err := m.Shutdown(context.WithoutCancel(ctx))
	if serveErr != nil {
		return multierror.Append(serveErr, err).ErrorOrNil()
	}
	return err
}

// Addr 返回实际监听地址；未启动时返回配置地址
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln != nil {
		return m.ln.Addr().String()
	}
	return m.cfg.Addr
}

// Running 是否处于服务中
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateRunning
}
