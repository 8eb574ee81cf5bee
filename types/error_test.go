package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("thucchien")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
	assert.Equal(t, "thucchien", err.Provider)
}

func TestAsError_Wrapped(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrQuotaExceeded, "quota exhausted").WithHTTPStatus(400)
	wrapped := fmt.Errorf("submit video: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrQuotaExceeded, got.Code)
	assert.Equal(t, ErrQuotaExceeded, GetErrorCode(wrapped))
	assert.False(t, IsRetryable(wrapped))

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestError_IsMatchesCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("poll: %w", NewError(ErrJobTimeout, "budget exhausted"))

	assert.ErrorIs(t, err, NewError(ErrJobTimeout, ""))
	assert.NotErrorIs(t, err, NewError(ErrJobFailed, ""))
	assert.NotErrorIs(t, err, &Error{})
}

func TestError_MessageFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[NOT_FOUND] job missing", NewError(ErrNotFound, "job missing").Error())
	assert.Equal(t, "[JOB_FETCH] download: eof",
		NewError(ErrJobFetch, "download").WithCause(errors.New("eof")).Error())
}
