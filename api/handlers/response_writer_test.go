package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseWriter_FirstHeaderWins(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.False(t, rw.Written)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusAccepted, rw.StatusCode)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestResponseWriter_CountsBytes(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	_, err := rw.Write([]byte("ftyp"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("isom"))
	require.NoError(t, err)

	assert.True(t, rw.Written)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.Equal(t, int64(8), rw.Bytes)
	assert.Equal(t, "ftypisom", w.Body.String())
	assert.Same(t, w, rw.Unwrap())
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	_, _, err := rw.Hijack()
	assert.Error(t, err)
	assert.False(t, rw.Written)
}

func TestResponseWriter_Flush(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponseWriter(w).Flush()
	assert.True(t, w.Flushed)
}
