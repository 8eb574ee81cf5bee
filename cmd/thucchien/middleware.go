package main

import (
	"context"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/BaSui01/thucchien/api/handlers"
	"github.com/BaSui01/thucchien/internal/metrics"
	"github.com/BaSui01/thucchien/types"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// =============================================================================
// 🛡️ 基础
// =============================================================================

// Recovery 捕获 panic，记录堆栈并返回 500 JSON
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				requestID, _ := types.RequestID(r.Context())
				logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("route", routeLabel(r.URL.Path)),
					zap.String("request_id", requestID),
					zap.ByteString("stack", debug.Stack()))
				handlers.WriteErrorMessage(w, r, http.StatusInternalServerError, types.ErrInternalError, "internal server error", nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID 沿用客户端的 X-Request-ID，否则生成 "req-<uuid>"
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 128 {
				id = "req-" + uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
		})
	}
}

// securityHeaders 内容接口只返回 JSON 与视频字节，不需要放开任何来源
var securityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
}

// SecurityHeaders sets fixed hardening headers on every response.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// 📝 日志、指标与追踪
// =============================================================================

// probePaths 探针请求只在 debug 级别记录
var probePaths = map[string]bool{
	"/health": true, "/healthz": true, "/ready": true, "/readyz": true, "/metrics": true,
}

// RequestLogger 按状态码选择日志级别：5xx error，4xx warn，其余 info
func RequestLogger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			level := zapcore.InfoLevel
			switch {
			case rw.StatusCode >= 500:
				level = zapcore.ErrorLevel
			case rw.StatusCode >= 400:
				level = zapcore.WarnLevel
			case probePaths[r.URL.Path]:
				level = zapcore.DebugLevel
			}
			ce := logger.Check(level, "http request")
			if ce == nil {
				return
			}
			requestID, _ := types.RequestID(r.Context())
			ce.Write(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.StatusCode),
				zap.Int64("bytes", rw.Bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_ip", clientIP(r)),
				zap.String("request_id", requestID),
			)
		})
	}
}

// MetricsMiddleware 以路由模板作为 path 标签记录请求
func MetricsMiddleware(collector *metrics.Collector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)
			collector.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), rw.StatusCode, time.Since(start), rw.Bytes)
		})
	}
}

// OTelTracing 为每个请求开启 server span，并继承上游 traceparent
func OTelTracing() Middleware {
	tracer := otel.Tracer("thucchien/http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			route := routeLabel(r.URL.Path)

			ctx, span := tracer.Start(ctx, r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(route),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.response.status_code", rw.StatusCode))
			if rw.StatusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rw.StatusCode))
			}
		})
	}
}

// routeLabel 把视频任务 ID 折叠为 ":id"，控制 Prometheus 标签基数。
//
//	/api/v1/videos/9b2c.../events -> /api/v1/videos/:id/events
//	/api/attractions              -> /api/attractions
//
// 不属于已知路由的路径统一记为 "other"。
func routeLabel(path string) string {
	switch path {
	case "/health", "/healthz", "/ready", "/readyz", "/version", "/metrics",
		"/api/content", "/api/about", "/api/attractions", "/api/gallery",
		"/api/v1/videos":
		return path
	}

	rest, ok := strings.CutPrefix(path, "/api/v1/videos/")
	if !ok || rest == "" {
		return "other"
	}
	id, suffix, _ := strings.Cut(rest, "/")
	if id == "" {
		return "other"
	}
	switch suffix {
	case "":
		return "/api/v1/videos/:id"
	case "content", "events":
		return "/api/v1/videos/:id/" + suffix
	}
	return "other"
}

// =============================================================================
// 🚦 限流
// =============================================================================

// visitorTTL 超过该时长未出现的 IP 会被清理
const visitorTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter 每个客户端 IP 一个令牌桶
type ipLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{rps: rate.Limit(rps), burst: burst, visitors: make(map[string]*visitor)}
}

// take 消耗一个令牌；不足时返回需要等待的时间
func (l *ipLimiter) take(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	res := v.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *ipLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, ip)
		}
	}
}

// RateLimiter 按客户端 IP 限流，rps <= 0 时不限流；ctx 结束后停止清理
func RateLimiter(ctx context.Context, rps float64, burst int, logger *zap.Logger) Middleware {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newIPLimiter(rps, burst)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, wait := l.take(ip, time.Now())
			if !ok {
				logger.Debug("rate limited", zap.String("ip", ip), zap.Duration("retry_after", wait))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				handlers.WriteErrorMessage(w, r, http.StatusTooManyRequests, types.ErrRateLimited, "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP 取 RemoteAddr 的主机部分；不信任转发头
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
