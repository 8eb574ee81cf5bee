package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 健康状态
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// checkTimeout 单个依赖检查的超时
const checkTimeout = 3 * time.Second

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthCheck 依赖检查
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Info      map[string]any         `json:"info,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status   string `json:"status"` // "pass", "fail"
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// HealthHandler 健康检查处理器
// 关键依赖失败返回 503；非关键依赖失败返回 200 并标记 degraded
type HealthHandler struct {
	version string
	started time.Time
	logger  *zap.Logger

	mu     sync.RWMutex
	checks []registeredCheck
	info   map[string]func() any
}

type registeredCheck struct {
	check    HealthCheck
	critical bool
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		version: version,
		started: time.Now(),
		logger:  logger.With(zap.String("component", "health")),
		info:    make(map[string]func() any),
	}
}

// RegisterCheck 注册关键依赖检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.register(check, true)
}

// RegisterOptionalCheck 注册非关键依赖检查
func (h *HealthHandler) RegisterOptionalCheck(check HealthCheck) {
	h.register(check, false)
}

func (h *HealthHandler) register(check HealthCheck, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, registeredCheck{check: check, critical: critical})
}

// RegisterInfo 在 /ready 中附带只读运行信息，例如内容加载时间
func (h *HealthHandler) RegisterInfo(name string, fn func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.info[name] = fn
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求
// @Summary 健康检查
// @Description 进程存活即返回 healthy，不检查依赖
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 活跃度探针）
// @Summary Kubernetes 活跃度探针
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: StatusHealthy, Timestamp: time.Now()})
}

// HandleReady 处理 /ready 或 /readyz 请求
// @Summary 就绪检查
// @Description 并发检查数据库、Redis 等依赖
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "就绪（可能为 degraded）"
// @Failure 503 {object} HealthStatus "关键依赖不可用"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := append([]registeredCheck(nil), h.checks...)
	info := make(map[string]func() any, len(h.info))
	for k, fn := range h.info {
		info[k] = fn
	}
	h.mu.RUnlock()

	status := h.runChecks(r.Context(), checks)
	if len(info) > 0 {
		status.Info = make(map[string]any, len(info))
		for k, fn := range info {
			status.Info[k] = fn()
		}
	}

	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

// runChecks 并发执行全部检查
func (h *HealthHandler) runChecks(ctx context.Context, checks []registeredCheck) HealthStatus {
	results := make([]CheckResult, len(checks))

	// 检查失败体现在结果里，errgroup 只用于等待
	var eg errgroup.Group
	for i, rc := range checks {
		eg.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := rc.check.Check(cctx)
			latency := time.Since(start)

			res := CheckResult{Status: "pass", Critical: rc.critical, Latency: latency.String()}
			if err != nil {
				res.Status = "fail"
				res.Message = err.Error()
				h.logger.Warn("health check failed",
					zap.String("check", rc.check.Name()),
					zap.Bool("critical", rc.critical),
					zap.Duration("latency", latency),
					zap.Error(err))
			}
			results[i] = res
			return nil
		})
	}
	_ = eg.Wait()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, rc := range checks {
		res := results[i]
		status.Checks[rc.check.Name()] = res
		if res.Status == "pass" {
			continue
		}
		if res.Critical {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}
	return status
}

// CheckNames 返回已注册检查的名称，按字母排序
func (h *HealthHandler) CheckNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for _, rc := range h.checks {
		names = append(names, rc.check.Name())
	}
	sort.Strings(names)
	return names
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} Response "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, info)
	}
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// PingCheck 以 ping 函数实现的健康检查
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck 创建健康检查
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

// NewDatabaseHealthCheck 任务库检查
func NewDatabaseHealthCheck(ping func(ctx context.Context) error) *PingCheck {
	return NewPingCheck("database", ping)
}

// NewRedisHealthCheck 幂等键存储检查
func NewRedisHealthCheck(ping func(ctx context.Context) error) *PingCheck {
	return NewPingCheck("redis", ping)
}

func (c *PingCheck) Name() string { return c.name }

func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }
