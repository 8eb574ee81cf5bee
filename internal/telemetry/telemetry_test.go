package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestInit_DisabledLeavesGlobalsAlone(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTracerProvider()

	p, err := Init(DefaultConfig(), "", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_EnabledInstallsSDK(t *testing.T) {
	restoreGlobals(t)

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = ""
	cfg.SampleRate = 1

	p, err := Init(cfg, "1.2.3", zaptest.NewLogger(t), attribute.String("video.backend", "veo"))
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, sdkTrace := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, sdkMetric := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, sdkTrace)
	assert.True(t, sdkMetric)

	// 没有 collector 时导出可能失败，只要求在期限内返回
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NotPanics(t, func() { _ = p.Shutdown(ctx) })
}

func TestNewResource_ExtraAttributes(t *testing.T) {
	res, err := newResource(context.Background(), "thucchien", "0.1.0",
		[]attribute.KeyValue{attribute.String("video.backend", "runway")})
	require.NoError(t, err)

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "thucchien", got["service.name"])
	assert.Equal(t, "0.1.0", got["service.version"])
	assert.Equal(t, "runway", got["video.backend"])
}

func TestProviders_NilShutdown(t *testing.T) {
	var p *Providers
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "disabled ignores fields", mutate: func(c *Config) { c.OTLPEndpoint = ""; c.SampleRate = 9 }},
		{name: "enabled default", mutate: func(c *Config) { c.Enabled = true }},
		{name: "sample rate above one", mutate: func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, wantErr: true},
		{name: "missing endpoint", mutate: func(c *Config) { c.Enabled = true; c.OTLPEndpoint = "" }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if tc.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestBuildVersion(t *testing.T) {
	assert.Equal(t, "dev", buildVersion())
}
