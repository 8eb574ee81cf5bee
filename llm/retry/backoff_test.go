package retry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDefaultPollPolicy(t *testing.T) {
	p := DefaultPollPolicy()
	assert.Equal(t, 10*time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 1.2, p.Multiplier)
	assert.Zero(t, p.Jitter)
}

func TestBackoffPolicy_DelaySequence(t *testing.T) {
	p := DefaultPollPolicy()

	expected := []float64{10, 12, 14.4, 17.28, 20.736, 24.8832, 29.85984, 30, 30}
	for k, want := range expected {
		got := p.Delay(k).Seconds()
		assert.InDelta(t, want, got, 1e-6, "k=%d", k)
	}
}

func TestBackoff_AdvanceMatchesDelay(t *testing.T) {
	b := NewBackoff(DefaultPollPolicy())
	for k := 0; k < 12; k++ {
		assert.InDelta(t, b.Policy().Delay(k).Seconds(), b.Current().Seconds(), 1e-6, "k=%d", k)
		b.Advance()
	}
	b.Reset()
	assert.Equal(t, 10*time.Second, b.Current())
}

func TestBackoffPolicy_Normalize(t *testing.T) {
	p := BackoffPolicy{InitialDelay: -1, MaxDelay: 0, Multiplier: 0.5, Jitter: 3}.Normalize()
	assert.Equal(t, 10*time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 1.2, p.Multiplier)
	assert.Equal(t, 1.0, p.Jitter)

	// Max 小于 Initial 时抬高到 Initial
	p = BackoffPolicy{InitialDelay: time.Minute, MaxDelay: time.Second, Multiplier: 2}.Normalize()
	assert.Equal(t, time.Minute, p.MaxDelay)
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := NewBackoff(BackoffPolicy{InitialDelay: 10 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 1.2, Jitter: 0.25})

	b.rnd = func() float64 { return 0 }
	assert.Equal(t, 7500*time.Millisecond, b.Current())
	b.rnd = func() float64 { return 1 }
	assert.Equal(t, 12500*time.Millisecond, b.Current())
}

// 任意合法策略下：Delay(k) == min(I0*m^k, max)，单调不减，且不超过上限
func TestProperty_BackoffDelayFormula(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		initial := time.Duration(rapid.Int64Range(1, 60_000).Draw(rt, "initial_ms")) * time.Millisecond
		maxDelay := initial + time.Duration(rapid.Int64Range(0, 600_000).Draw(rt, "extra_ms"))*time.Millisecond
		mult := rapid.Float64Range(1.0, 3.0).Draw(rt, "multiplier")
		k := rapid.IntRange(0, 60).Draw(rt, "k")

		p := BackoffPolicy{InitialDelay: initial, MaxDelay: maxDelay, Multiplier: mult}.Normalize()

		want := math.Min(float64(initial)*math.Pow(mult, float64(k)), float64(maxDelay))
		got := float64(p.Delay(k))
		if math.Abs(want-got) > 1 {
			rt.Fatalf("Delay(%d) = %v, want %v", k, got, want)
		}
		if p.Delay(k+1) < p.Delay(k) {
			rt.Fatalf("sequence decreased at k=%d", k)
		}
		if p.Delay(k) > maxDelay {
			rt.Fatalf("Delay(%d) exceeds cap", k)
		}
	})
}
