// Package cache provides internal cache management.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 Redis 管理器
// =============================================================================

var (
	// ErrCacheMiss 键不存在
	ErrCacheMiss = errors.New("cache miss")
	// ErrClosed 管理器已关闭
	ErrClosed = errors.New("cache manager is closed")
)

// Config Redis 连接配置；Addr 为空时服务端使用进程内幂等存储
type Config struct {
	Addr     string `yaml:"addr" json:"addr" env:"ADDR"`
	Password string `yaml:"password" json:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"DB"`

	// DefaultTTL 幂等键的默认保留时长
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl" env:"DEFAULT_TTL"`

	MaxRetries   int `yaml:"max_retries" json:"max_retries" env:"MAX_RETRIES"`
	PoolSize     int `yaml:"pool_size" json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns" env:"MIN_IDLE_CONNS"`

	// HealthCheckInterval 后台 ping 间隔，0 关闭
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// DefaultConfig 返回默认配置（不启用 Redis）
func DefaultConfig() Config {
	return Config{
		DefaultTTL:          24 * time.Hour,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// claimScript 键不存在时写入并返回 nil，存在时返回当前值
var claimScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  return cur
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return false
`)

// Manager 持有 go-redis 客户端，Close 之后所有操作返回 ErrClosed
type Manager struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewManager 连接 Redis，连不上直接返回错误
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	m := &Manager{
		client: client,
		ttl:    cfg.DefaultTTL,
		logger: logger.With(zap.String("component", "cache")),
		done:   make(chan struct{}),
	}
	if cfg.HealthCheckInterval > 0 {
		m.wg.Add(1)
		go m.watch(cfg.HealthCheckInterval)
	}

	m.logger.Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return m, nil
}

// Client 返回底层客户端
func (m *Manager) Client() *redis.Client { return m.client }

// do 在读锁内执行 fn，保证 Close 不会与进行中的命令交错
func (m *Manager) do(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return fn()
}

func (m *Manager) ttlOr(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return m.ttl
	}
	return ttl
}

// Claim 原子地为 key 写入 value
// 写入成功返回 ("", true)；key 已存在返回当前值与 false
func (m *Manager) Claim(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	var (
		existing string
		claimed  bool
	)
	err := m.do(func() error {
		ms := m.ttlOr(ttl).Milliseconds()
		cur, err := claimScript.Run(ctx, m.client, []string{key}, value, ms).Text()
		switch {
		case errors.Is(err, redis.Nil):
			claimed = true
			return nil
		case err != nil:
			return fmt.Errorf("claim %s: %w", key, err)
		}
		existing = cur
		return nil
	})
	return existing, claimed, err
}

// Get 读取字符串值，不存在返回 ErrCacheMiss
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := m.do(func() error {
		v, err := m.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		val = v
		return nil
	})
	return val, err
}

// Delete 删除键，不存在的键忽略
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return m.do(func() error {
		if err := m.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete %v: %w", keys, err)
		}
		return nil
	})
}

// Ping 供 /ready 检查使用
func (m *Manager) Ping(ctx context.Context) error {
	return m.do(func() error { return m.client.Ping(ctx).Err() })
}

// Close 停止后台检查并关闭连接，可重复调用
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	return m.client.Close()
}

// watch 周期性 ping，失败只记日志；连接池状态以 debug 输出
func (m *Manager) watch(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := m.Ping(ctx)
		cancel()

		switch {
		case errors.Is(err, ErrClosed):
			return
		case err != nil:
			m.logger.Warn("redis ping failed", zap.Error(err))
		default:
			st := m.client.PoolStats()
			m.logger.Debug("redis pool",
				zap.Uint32("total", st.TotalConns),
				zap.Uint32("idle", st.IdleConns),
				zap.Uint32("timeouts", st.Timeouts))
		}
	}
}

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
