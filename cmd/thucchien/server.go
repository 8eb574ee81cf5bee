package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/api/handlers"
	"github.com/BaSui01/thucchien/config"
	"github.com/BaSui01/thucchien/internal/cache"
	"github.com/BaSui01/thucchien/internal/content"
	"github.com/BaSui01/thucchien/internal/database"
	"github.com/BaSui01/thucchien/internal/jobs"
	"github.com/BaSui01/thucchien/internal/jobstore"
	"github.com/BaSui01/thucchien/internal/metrics"
	"github.com/BaSui01/thucchien/internal/server"
	"github.com/BaSui01/thucchien/internal/session"
	"github.com/BaSui01/thucchien/internal/telemetry"
	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/llm/longrun"
	"github.com/BaSui01/thucchien/llm/video"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 thucchien 的主服务器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	namespace string

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	telemetry *telemetry.Providers
	collector *metrics.Collector
	gateway   *gateway.Client
	db        *database.PoolManager
	cache     *cache.Manager
	jobs      *jobs.Manager
	content   *content.Store
	watcher   *content.Watcher
	sessions  *session.Manager
	cron      *cron.Cron

	healthHandler *handlers.HealthHandler

	// 后台 goroutine（限流清理）生命周期
	cancel      context.CancelFunc
	releaseOnce sync.Once
	releaseErr  error

	gatewayOpts []gateway.ClientOption
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		namespace: "thucchien",
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 初始化依赖并启动 HTTP 与 Metrics 服务（非阻塞）
// 失败时已初始化的资源会被释放
func (s *Server) Start(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			_ = s.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	// 1. OpenTelemetry
	s.telemetry, err = telemetry.Init(s.cfg.Telemetry, Version, s.logger,
		attribute.String("video.backend", s.cfg.Video.Backend))
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		s.telemetry = nil
	}

	// 2. 指标收集器
	s.collector = metrics.NewCollector(s.namespace, s.logger)

	// 3. 存储与缓存
	if err = s.initStorage(ctx); err != nil {
		return err
	}

	// 4. 网关与视频任务
	if err = s.initJobs(ctx); err != nil {
		return err
	}

	// 5. 内容
	s.initContent(ctx)

	// 6. 定时额度报告
	if err = s.initCron(); err != nil {
		return err
	}

	// 7. HTTP 服务器
	if err = s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 8. Metrics 服务器
	if s.cfg.Server.MetricsPort > 0 {
		if err = s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("video_backend", s.cfg.Video.Backend),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initStorage(ctx context.Context) error {
	db, err := database.Open(s.cfg.Database, s.logger,
		database.WithStatsHook(func(open, idle int) {
			s.collector.RecordDBConnections(s.cfg.Database.Driver, open, idle)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if s.cfg.Redis.Addr != "" {
		s.cache, err = cache.NewManager(s.cfg.Redis, s.logger)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
	} else {
		s.logger.Info("redis not configured, idempotency keys kept in memory")
	}
	return nil
}

func (s *Server) initJobs(ctx context.Context) error {
	opts := append([]gateway.ClientOption{gateway.WithRequestHook(s.collector.RecordGatewayRequest)}, s.gatewayOpts...)
	client, err := gateway.NewClient(s.cfg.Gateway, s.logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}
	s.gateway = client

	backend, err := video.NewBackend(client, s.cfg.Video)
	if err != nil {
		return err
	}
	poller := longrun.NewPoller(s.cfg.Video.Poll, s.logger,
		longrun.WithObserver(longrun.Observers(
			longrun.NewLogObserver(s.logger),
			s.collector.NewJobObserver(backend.Name()),
		)),
		longrun.WithTracer(otel.Tracer("thucchien/longrun")),
	)

	store := jobstore.New(s.db.DB())
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate job store: %w", err)
	}

	var idem cache.IdempotencyStore
	if s.cache != nil {
		idem = cache.NewRedisIdempotency(s.cache, "thucchien:idem:")
	}

	s.jobs = jobs.NewManager(jobs.Config{
		OutputDir:      s.cfg.Video.OutputDir,
		IdempotencyTTL: s.cfg.Jobs.IdempotencyTTL,
		MaxConcurrent:  s.cfg.Jobs.MaxConcurrent,
	}, store, video.NewGenerator(backend, poller, s.logger), idem, s.logger)

	if s.cfg.Jobs.ResumePending {
		if _, err := s.jobs.ResumePending(ctx); err != nil {
			s.logger.Error("failed to resume pending video jobs", zap.Error(err))
		}
	}
	return nil
}

func (s *Server) initContent(ctx context.Context) {
	s.content = content.NewStore(s.cfg.Content.Path, s.logger)
	if !s.cfg.Content.Watch {
		return
	}
	w, err := s.content.Watch(ctx, content.WithPollInterval(s.cfg.Content.WatchInterval))
	if err != nil {
		s.logger.Warn("content watcher not started", zap.Error(err))
		return
	}
	s.watcher = w
}

func (s *Server) initCron() error {
	spec := s.cfg.Jobs.SpendReportSchedule
	if spec == "" {
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, s.reportSpend); err != nil {
		return fmt.Errorf("invalid jobs.spend_report_schedule %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

// reportSpend 记录网关当前消费
func (s *Server) reportSpend() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	info, err := s.gateway.CheckSpending(ctx)
	if err != nil {
		s.logger.Warn("spend report failed", zap.Error(err))
		return
	}
	if spend, ok := info.Spend(); ok {
		s.logger.Info("gateway spend", zap.Float64("spend", spend))
		return
	}
	s.logger.Info("gateway key info", zap.ByteString("raw", info.Raw))
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 构建路由与中间件链
func (s *Server) routes(ctx context.Context) (http.Handler, error) {
	sessions, err := session.NewManager(s.cfg.Session, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}
	s.sessions = sessions

	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	s.healthHandler = handlers.NewHealthHandler(Version, s.logger)
	s.healthHandler.RegisterCheck(handlers.NewDatabaseHealthCheck(s.db.Ping))
	if s.cache != nil {
		// Redis 只承载幂等键，不可用时降级
		s.healthHandler.RegisterOptionalCheck(handlers.NewRedisHealthCheck(s.cache.Ping))
	}
	s.healthHandler.RegisterInfo("database", func() any { return s.db.Stats() })
	s.healthHandler.RegisterInfo("content", func() any {
		return map[string]any{"path": s.content.Path(), "loaded_at": s.content.LoadedAt()}
	})
	s.healthHandler.RegisterInfo("video", func() any {
		return map[string]any{"backend": s.cfg.Video.Backend, "max_wait": s.cfg.Video.Poll.MaxWait.String()}
	})
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 未单独启动 Metrics 端口时挂在主端口
	if s.cfg.Server.MetricsPort == 0 {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// ========================================
	// API 路由
	// ========================================
	handlers.NewContentHandler(s.content, s.logger).Register(mux)

	limit := RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger)
	handlers.NewVideoHandler(s.jobs, s.logger).Register(mux, limit)

	// ========================================
	// 构建中间件链
	// ========================================
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		s.sessions.Middleware,
	), nil
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	handler, err := s.routes(bgCtx)
	if err != nil {
		return err
	}

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	s.httpManager.OnShutdown(s.release)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.Addr()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.metricsManager.Addr()))
	return nil
}

// Addr 返回 HTTP 实际监听地址
func (s *Server) Addr() string {
	if s.httpManager == nil {
		return ""
	}
	return s.httpManager.Addr()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞直到收到关闭信号或 ctx 结束，然后优雅关闭
func (s *Server) Wait(ctx context.Context) error {
	return s.httpManager.Wait(ctx)
}

// Shutdown 主动关闭所有服务
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpManager == nil {
		return s.release(ctx)
	}
	return s.httpManager.Shutdown(ctx)
}

// release 在 HTTP 服务停止后按依赖逆序释放资源，只执行一次；错误合并返回
func (s *Server) release(ctx context.Context) error {
	s.releaseOnce.Do(func() { s.releaseErr = s.releaseAll(ctx) })
	return s.releaseErr
}

func (s *Server) releaseAll(ctx context.Context) error {
	var result *multierror.Error
	s.logger.Info("Starting graceful shutdown...")

	// 0. 停止后台 goroutine
	if s.cancel != nil {
		s.cancel()
	}

	// 1. 停止定时任务
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	// 2. 停止内容监听
	if s.watcher != nil {
		s.watcher.Stop()
	}

	// 3. 停止视频任务，未完成的任务保留句柄以便下次恢复
	if s.jobs != nil {
		if err := s.jobs.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
			result = multierror.Append(result, fmt.Errorf("video jobs: %w", err))
		}
	}

	// 4. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics server: %w", err))
		}
	}

	// 5. 关闭缓存与数据库
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("database: %w", err))
		}
	}

	// 6. 刷新遥测数据
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("telemetry: %w", err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
	return result.ErrorOrNil()
}
