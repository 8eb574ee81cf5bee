package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/BaSui01/thucchien/llm/video"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate 校验整份配置，一次性返回全部问题
func (c *Config) Validate() error {
	var errs *multierror.Error
	failf := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	validPort := func(p int) bool { return p > 0 && p <= 65535 }
	srv := c.Server
	if !validPort(srv.HTTPPort) {
		failf("server.http_port must be within 1-65535, got %d", srv.HTTPPort)
	}
	switch {
	case srv.MetricsPort == 0:
	case !validPort(srv.MetricsPort):
		failf("server.metrics_port must be within 0-65535, got %d", srv.MetricsPort)
	case srv.MetricsPort == srv.HTTPPort:
		failf("server.metrics_port must differ from server.http_port")
	}
	if srv.RateLimitRPS < 0 {
		failf("server.rate_limit_rps must not be negative")
	}

	if c.Gateway.BaseURL == "" {
		failf("gateway.base_url is required")
	}
	if c.Gateway.Timeout <= 0 {
		failf("gateway.timeout must be positive")
	}

	c.validateVideo(failf)

	if c.Jobs.MaxConcurrent <= 0 {
		failf("jobs.max_concurrent must be positive")
	}
	if c.Content.Path == "" {
		failf("content.path is required")
	}

	if err := c.Database.Validate(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("database: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		failf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return errs.ErrorOrNil()
}

func (c *Config) validateVideo(failf func(string, ...any)) {
	poll := c.Video.Poll
	b := poll.Backoff
	if poll.MaxWait <= 0 {
		failf("video.poll.max_wait must be positive, got %s", poll.MaxWait)
	}
	if b.InitialDelay <= 0 {
		failf("video.poll.backoff.initial_delay must be positive")
	}
	if b.MaxDelay < b.InitialDelay {
		failf("video.poll.backoff.max_delay must be >= initial_delay")
	}
	if b.Multiplier < 1 {
		failf("video.poll.backoff.multiplier must be >= 1, got %v", b.Multiplier)
	}
	if b.Jitter < 0 || b.Jitter >= 1 {
		failf("video.poll.backoff.jitter must be within [0, 1)")
	}

	switch c.Video.Backend {
	case video.BackendVeo:
	case video.BackendRunway:
		if c.Video.Runway.APIKey == "" {
			failf("video.runway.api_key is required for the runway backend")
		}
	default:
		failf("video.backend must be %q or %q, got %q", video.BackendVeo, video.BackendRunway, c.Video.Backend)
	}
}
