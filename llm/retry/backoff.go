package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy 定义轮询/重试间隔的退避策略
// 间隔序列: initial * multiplier^k，封顶 MaxDelay
type BackoffPolicy struct {
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay" env:"INITIAL_DELAY"` // 初始间隔
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay" env:"MAX_DELAY"`             // 最大间隔
	Multiplier   float64       `json:"multiplier" yaml:"multiplier" env:"MULTIPLIER"`          // 倍增因子
	Jitter       float64       `json:"jitter" yaml:"jitter" env:"JITTER"`                      // 抖动比例，0 表示不抖动（例如 0.25 表示 ±25%）
}

// DefaultPollPolicy 返回长任务轮询的默认退避策略
// 10s 起步，每次 ×1.2，封顶 30s，无抖动
func DefaultPollPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialDelay: 10 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   1.2,
	}
}

// Normalize 修正非法参数，返回可直接使用的策略副本
func (p BackoffPolicy) Normalize() BackoffPolicy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = 10 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 1.2
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Delay 返回第 k 次（从 0 开始）失败后的基础间隔，不含抖动
// Delay(k) = min(InitialDelay * Multiplier^k, MaxDelay)
func (p BackoffPolicy) Delay(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(k))
	if delay > float64(p.MaxDelay) || math.IsInf(delay, 1) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Backoff 有状态的退避序列，非并发安全，每个轮询循环持有一个
type Backoff struct {
	policy  BackoffPolicy
	current float64
	rnd     func() float64
}

// NewBackoff 根据策略创建退避序列
func NewBackoff(policy BackoffPolicy) *Backoff {
	policy = policy.Normalize()
	return &Backoff{
		policy:  policy,
		current: float64(policy.InitialDelay),
		rnd:     rand.Float64,
	}
}

// Current 返回当前间隔（含抖动）
func (b *Backoff) Current() time.Duration {
	delay := b.current
	if b.policy.Jitter > 0 {
		jitter := delay * b.policy.Jitter
		delay = delay + (b.rnd()*2-1)*jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Advance 推进到下一个间隔：current = min(current*multiplier, max)
func (b *Backoff) Advance() {
	b.current *= b.policy.Multiplier
	if b.current > float64(b.policy.MaxDelay) {
		b.current = float64(b.policy.MaxDelay)
	}
}

// Reset 回到初始间隔
func (b *Backoff) Reset() {
	b.current = float64(b.policy.InitialDelay)
}

// Policy 返回修正后的策略
func (b *Backoff) Policy() BackoffPolicy {
	return b.policy
}
