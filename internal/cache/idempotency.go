package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// IdempotencyStore 提交幂等存储
type IdempotencyStore interface {
	// Claim 尝试为 key 占位 jobID
	// 占位成功返回 ("", true)；key 已被占用返回已有的 jobID 与 false
	Claim(ctx context.Context, key, jobID string, ttl time.Duration) (string, bool, error)
	// Release 释放占位（提交失败时调用，允许客户端重试）
	Release(ctx context.Context, key string) error
}

// HashKey 对客户端提供的幂等键做 SHA256，避免原样写入存储
func HashKey(scope, key string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Redis 实现
// =============================================================================

// RedisIdempotency 基于 Redis 脚本原子占位的幂等存储
type RedisIdempotency struct {
	m      *Manager
	prefix string
}

// NewRedisIdempotency 创建 Redis 幂等存储
func NewRedisIdempotency(m *Manager, prefix string) *RedisIdempotency {
	if prefix == "" {
		prefix = "idempotency:"
	}
	return &RedisIdempotency{m: m, prefix: prefix}
}

func (r *RedisIdempotency) Claim(ctx context.Context, key, jobID string, ttl time.Duration) (string, bool, error) {
	return r.m.Claim(ctx, r.prefix+key, jobID, ttl)
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return r.m.Delete(ctx, r.prefix+key)
}

// =============================================================================
// 进程内实现
// =============================================================================

type memoryEntry struct {
	jobID     string
	expiresAt time.Time
}

// MemoryIdempotency 进程内幂等存储，仅适用于单实例部署
type MemoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryIdempotency 创建进程内幂等存储
func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryIdempotency) Claim(_ context.Context, key, jobID string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return e.jobID, false, nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s.entries[key] = memoryEntry{jobID: jobID, expiresAt: now.Add(ttl)}

	// 顺带清理过期项
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	return "", true, nil
}

func (s *MemoryIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
