// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// 视频任务耗时分桶，上限对应默认 600s 等待预算
var jobDurationBuckets = []float64{10, 30, 60, 120, 180, 300, 450, 600}

// 网关调用耗时分桶，文本请求以秒计，图片与 TTS 可达分钟级
var gatewayDurationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpBytes    *prometheus.HistogramVec

	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec

	jobsSubmitted *prometheus.CounterVec
	jobPolls      *prometheus.CounterVec
	jobOutcomes   *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsActive    *prometheus.GaugeVec

	dbConnections *prometheus.GaugeVec

	logger *zap.Logger
}

// Option 配置 Collector
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer 指定注册表，默认 prometheus.DefaultRegisterer
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// NewCollector 创建指标收集器；同一注册表上 namespace 不可重复
func NewCollector(namespace string, logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	f := promauto.With(o.registerer)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return f.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	c := &Collector{
		httpRequests: counter("http_requests_total", "HTTP requests by route and status class",
			"method", "path", "status"),
		httpDuration: histogram("http_request_duration_seconds", "HTTP request latency",
			prometheus.DefBuckets, "method", "path"),
		httpBytes: histogram("http_response_size_bytes", "HTTP response body size; video downloads dominate the top buckets",
			prometheus.ExponentialBuckets(256, 8, 8), "method", "path"),

		gatewayRequests: counter("gateway_requests_total", "Upstream gateway calls by endpoint and result code",
			"endpoint", "status"),
		gatewayDuration: histogram("gateway_request_duration_seconds", "Upstream gateway call latency",
			gatewayDurationBuckets, "endpoint"),

		jobsSubmitted: counter("jobs_submitted_total", "Video jobs accepted by the backend", "backend"),
		jobPolls:      counter("job_polls_total", "Status polls issued for video jobs", "backend"),
		jobOutcomes:   counter("job_outcomes_total", "Video jobs by terminal state", "backend", "state"),
		jobDuration: histogram("job_duration_seconds", "Time from submission to terminal state",
			jobDurationBuckets, "backend", "state"),
		jobsActive: gauge("jobs_active", "Video jobs currently being polled", "backend"),

		dbConnections: gauge("db_connections", "Job store connections by state", "driver", "state"),

		logger: logger.With(zap.String("component", "metrics")),
	}

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 记录
// =============================================================================

// RecordHTTPRequest 记录一次 HTTP 请求；path 需已归一化
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpBytes.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordGatewayRequest 记录一次上游网关调用，status 为 ok 或错误码
func (c *Collector) RecordGatewayRequest(endpoint, status string, duration time.Duration) {
	c.gatewayRequests.WithLabelValues(endpoint, status).Inc()
	c.gatewayDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordJobSubmitted 提交成功，任务进入轮询
func (c *Collector) RecordJobSubmitted(backend string) {
	c.jobsSubmitted.WithLabelValues(backend).Inc()
	c.jobsActive.WithLabelValues(backend).Inc()
}

func (c *Collector) RecordJobPoll(backend string) {
	c.jobPolls.WithLabelValues(backend).Inc()
}

// RecordJobOutcome 任务到达终态
func (c *Collector) RecordJobOutcome(backend, state string, duration time.Duration) {
	c.jobOutcomes.WithLabelValues(backend, state).Inc()
	c.jobDuration.WithLabelValues(backend, state).Observe(duration.Seconds())
	c.jobsActive.WithLabelValues(backend).Dec()
}

// RecordDBConnections 由连接池健康检查定期上报
func (c *Collector) RecordDBConnections(driver string, open, idle int) {
	c.dbConnections.WithLabelValues(driver, "open").Set(float64(open))
	c.dbConnections.WithLabelValues(driver, "idle").Set(float64(idle))
}

// statusClass 200 -> "2xx"；范围外返回 "unknown"
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
