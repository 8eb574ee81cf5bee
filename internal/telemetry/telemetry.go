package telemetry

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

const defaultServiceName = "thucchien"

// Config 遥测配置；traces 与 metrics 共用一个 OTLP gRPC 端点
type Config struct {
	Enabled      bool    `yaml:"enabled" json:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	Insecure     bool    `yaml:"insecure" json:"insecure" env:"INSECURE"`
	ServiceName  string  `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig 默认关闭，开启后按 10% 采样根 span
func DefaultConfig() Config {
	return Config{
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		ServiceName:  defaultServiceName,
		SampleRate:   0.1,
	}
}

// Validate 关闭时不检查其余字段
func (c Config) Validate() error {
	switch {
	case !c.Enabled:
		return nil
	case c.OTLPEndpoint == "":
		return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is enabled")
	case c.SampleRate < 0 || c.SampleRate > 1:
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", c.SampleRate)
	}
	return nil
}

// Providers 持有 SDK provider；遥测关闭时两者为 nil，全局 provider 保持 noop
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Enabled 是否安装了 SDK provider
func (p *Providers) Enabled() bool { return p != nil && p.tp != nil }

// Init 安装全局 TracerProvider 与 MeterProvider。
// attrs 追加到 resource 上，例如 video.backend；version 为空时取构建信息。
func Init(cfg Config, version string, logger *zap.Logger, attrs ...attribute.KeyValue) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "telemetry"))
	if !cfg.Enabled {
		logger.Debug("telemetry disabled")
		return &Providers{}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if version == "" {
		version = buildVersion()
	}

	ctx := context.Background()
	res, err := newResource(ctx, cfg.ServiceName, version, attrs)
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.String("version", version),
		zap.Float64("sample_rate", cfg.SampleRate))
	return &Providers{tp: tp, mp: mp}, nil
}

func newResource(ctx context.Context, service, version string, extra []attribute.KeyValue) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(service),
		semconv.ServiceVersionKey.String(version),
	}, extra...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	// 采样按根 span 决定，一次任务的 submit/poll/fetch 要么全收要么全丢
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	), nil
}

// Shutdown 刷出未导出的数据；nil 或关闭状态下直接返回
func (p *Providers) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	var result *multierror.Error
	if err := p.tp.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutdown meter provider: %w", err))
	}
	return result.ErrorOrNil()
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
