package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, ok := UserID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user")
	ctx = WithJobID(ctx, "job-9")

	got, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", got)

	got, ok = UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user", got)

	got, ok = JobID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "job-9", got)

	// 空字符串视为不存在
	_, ok = UserID(WithUserID(context.Background(), ""))
	assert.False(t, ok)
}
