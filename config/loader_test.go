// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/thucchien/internal/database"
	"github.com/BaSui01/thucchien/llm/video"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "https://api.thucchien.ai", cfg.Gateway.BaseURL)
	assert.Equal(t, 600*time.Second, cfg.Video.Poll.MaxWait)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

gateway:
  base_url: "https://gateway.example.com"
  api_key: "sk-yaml"

video:
  backend: runway
  runway:
    api_key: "rw-key"
  poll:
    max_wait: 5m
    backoff:
      initial_delay: 5s
      max_delay: 20s
      multiplier: 1.5

content:
  path: "static/content.json"
  watch: false

database:
  driver: postgres
  dsn: "host=localhost user=thucchien"

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	// 未设置的字段保留默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)

	assert.Equal(t, "https://gateway.example.com", cfg.Gateway.BaseURL)
	assert.Equal(t, "sk-yaml", cfg.Gateway.APIKey)

	assert.Equal(t, video.BackendRunway, cfg.Video.Backend)
	assert.Equal(t, "rw-key", cfg.Video.Runway.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.Video.Poll.MaxWait)
	assert.Equal(t, 5*time.Second, cfg.Video.Poll.Backoff.InitialDelay)
	assert.Equal(t, 1.5, cfg.Video.Poll.Backoff.Multiplier)

	assert.Equal(t, "static/content.json", cfg.Content.Path)
	assert.False(t, cfg.Content.Watch)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("THUCCHIEN_SERVER_HTTP_PORT", "7777")
	t.Setenv("THUCCHIEN_GATEWAY_API_KEY", "sk-env")
	t.Setenv("THUCCHIEN_VIDEO_POLL_MAX_WAIT", "90s")
	t.Setenv("THUCCHIEN_VIDEO_POLL_BACKOFF_MULTIPLIER", "1.3")
	t.Setenv("THUCCHIEN_VIDEO_VEO_MODEL", "veo-3.0-fast-generate-001")
	t.Setenv("THUCCHIEN_DATABASE_POOL_MAX_OPEN_CONNS", "7")
	t.Setenv("THUCCHIEN_REDIS_ADDR", "localhost:6380")
	t.Setenv("THUCCHIEN_CONTENT_WATCH", "false")
	t.Setenv("THUCCHIEN_LOG_OUTPUT_PATHS", "stdout, /tmp/thucchien.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "sk-env", cfg.Gateway.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Video.Poll.MaxWait)
	assert.Equal(t, 1.3, cfg.Video.Poll.Backoff.Multiplier)
	assert.Equal(t, "veo-3.0-fast-generate-001", cfg.Video.Veo.Model)
	assert.Equal(t, 7, cfg.Database.Pool.MaxOpenConns)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
	assert.False(t, cfg.Content.Watch)
	assert.Equal(t, []string{"stdout", "/tmp/thucchien.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8888\n"), 0o644))
	t.Setenv("THUCCHIEN_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func TestLoader_CustomPrefix(t *testing.T) {
	t.Setenv("TC_SERVER_HTTP_PORT", "6000")

	cfg, err := NewLoader().WithEnvPrefix("TC").Load()
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.HTTPPort)
}

func TestLoader_DotEnv(t *testing.T) {
	const key = "THUCCHIEN_SPEECH_VOICE"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(key+"=Puck\n"), 0o644))

	cfg, err := NewLoader().WithDotEnv(envPath, filepath.Join(t.TempDir(), "missing.env")).Load()
	require.NoError(t, err)
	assert.Equal(t, "Puck", cfg.Speech.Voice)
}

func TestLoader_DotEnvDoesNotOverrideEnv(t *testing.T) {
	t.Setenv("THUCCHIEN_SPEECH_MODEL", "from-env")
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("THUCCHIEN_SPEECH_MODEL=from-file\n"), 0o644))

	cfg, err := NewLoader().WithDotEnv(envPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Speech.Model)
}

func TestLoader_FileNotFound(t *testing.T) {
	// 文件不存在时使用默认值
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [invalid"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("THUCCHIEN_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "THUCCHIEN_SERVER_HTTP_PORT")
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().WithValidator(RequireAPIKey).Load()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv("THUCCHIEN_GATEWAY_API_KEY", "sk-1")
	cfg, err := NewLoader().WithValidator(RequireAPIKey).Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-1", cfg.Gateway.APIKey)
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad http port", mutate: func(c *Config) { c.Server.HTTPPort = 0 }, wantErr: "server.http_port"},
		{name: "port clash", mutate: func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, wantErr: "must differ"},
		{name: "zero budget", mutate: func(c *Config) { c.Video.Poll.MaxWait = 0 }, wantErr: "max_wait"},
		{name: "shrinking backoff", mutate: func(c *Config) { c.Video.Poll.Backoff.Multiplier = 0.9 }, wantErr: "multiplier"},
		{name: "zero interval", mutate: func(c *Config) { c.Video.Poll.Backoff.InitialDelay = 0 }, wantErr: "initial_delay"},
		{name: "max below initial", mutate: func(c *Config) { c.Video.Poll.Backoff.MaxDelay = time.Second }, wantErr: "max_delay"},
		{name: "bad jitter", mutate: func(c *Config) { c.Video.Poll.Backoff.Jitter = 1 }, wantErr: "jitter"},
		{name: "unknown backend", mutate: func(c *Config) { c.Video.Backend = "sora" }, wantErr: "video.backend"},
		{name: "runway without key", mutate: func(c *Config) { c.Video.Backend = video.BackendRunway }, wantErr: "runway.api_key"},
		{name: "no content path", mutate: func(c *Config) { c.Content.Path = "" }, wantErr: "content.path"},
		{name: "bad driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: "database"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
		{name: "telemetry without endpoint", mutate: func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.OTLPEndpoint = ""
		}, wantErr: "otlp_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = -1
	cfg.Video.Poll.MaxWait = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 errors occurred")
}

func TestEnvKeys(t *testing.T) {
	keys := EnvKeys("TC")

	assert.Contains(t, keys, "TC_SERVER_HTTP_PORT")
	assert.Contains(t, keys, "TC_VIDEO_POLL_BACKOFF_MULTIPLIER")
	assert.Contains(t, keys, "TC_DATABASE_POOL_MAX_OPEN_CONNS")
	assert.NotContains(t, keys, "TC_SERVER")
	assert.Equal(t, "TC_SERVER_HTTP_PORT", keys[0])
}

func TestLoader_EnvSliceDropsBlanks(t *testing.T) {
	t.Setenv("THUCCHIEN_LOG_OUTPUT_PATHS", "stdout,, ,stderr")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
}
