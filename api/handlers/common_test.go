package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/types"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON_Headers(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, []int{1, 2, 3})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, jsonContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `[1,2,3]`, w.Body.String())
}

func TestWriteRawJSON_Verbatim(t *testing.T) {
	w := httptest.NewRecorder()
	WriteRawJSON(w, http.StatusOK, json.RawMessage(`{"b":1,"a":"Hà Nội"}`))
	assert.Equal(t, `{"b":1,"a":"Hà Nội"}`, w.Body.String())
	assert.Equal(t, jsonContentType, w.Header().Get("Content-Type"))
}

func TestWriteEnvelope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-1"))

	w := httptest.NewRecorder()
	WriteSuccess(w, r, map[string]string{"key": "value"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())

	w = httptest.NewRecorder()
	WriteEnvelope(w, nil, http.StatusAccepted, map[string]string{"id": "job-1"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	resp = decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.RequestID)
}

func TestWriteError_StatusFromCode(t *testing.T) {
	cases := map[types.ErrorCode]int{
		types.ErrInvalidRequest:     http.StatusBadRequest,
		types.ErrUnauthorized:       http.StatusUnauthorized,
		types.ErrNotFound:           http.StatusNotFound,
		types.ErrRateLimited:        http.StatusTooManyRequests,
		types.ErrQuotaExceeded:      http.StatusPaymentRequired,
		types.ErrJobConflict:        http.StatusConflict,
		types.ErrJobNotReady:        http.StatusConflict,
		types.ErrJobTimeout:         http.StatusGatewayTimeout,
		types.ErrJobFailed:          http.StatusBadGateway,
		types.ErrJobSubmission:      http.StatusBadGateway,
		types.ErrServiceUnavailable: http.StatusServiceUnavailable,
		types.ErrInternalError:      http.StatusInternalServerError,
		"UNKNOWN_CODE":              http.StatusInternalServerError,
	}

	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, want, StatusForCode(code))

			w := httptest.NewRecorder()
			WriteError(w, nil, types.NewError(code, "boom"), zap.NewNop())
			assert.Equal(t, want, w.Code)

			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(code), resp.Error.Code)
			assert.Equal(t, "boom", resp.Error.Message)
		})
	}
}

func TestWriteError_ExplicitStatusWins(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorMessage(w, nil, http.StatusUnsupportedMediaType, types.ErrInvalidRequest, "bad type", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, string(types.ErrInvalidRequest), decodeResponse(t, w).Error.Code)
}

func TestWriteErr(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErr(w, nil, errors.New("sqlite: disk I/O error"), zap.NewNop())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
	assert.Equal(t, "internal error", resp.Error.Message)

	w = httptest.NewRecorder()
	wrapped := fmt.Errorf("submit: %w", types.NewError(types.ErrJobConflict, "in progress"))
	WriteErr(w, nil, wrapped, zap.NewNop())
	assert.Equal(t, http.StatusConflict, w.Code)
}

type videoBody struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

func TestDecodeJSONBody(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "valid", body: `{"prompt":"sunrise over Hạ Long","model":"veo-3.0"}`},
		{name: "syntax error", body: `{"prompt":"x",}`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"prompt":"x","seed":1}`, status: http.StatusBadRequest},
		{name: "empty", body: "", status: http.StatusBadRequest},
		{
			name:   "too large",
			body:   `{"prompt":"` + strings.Repeat("x", maxRequestBody+1) + `"}`,
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/videos", strings.NewReader(tc.body))
			if tc.body == "" {
				r.Body = http.NoBody
			}
			w := httptest.NewRecorder()

			var dst videoBody
			err := DecodeJSONBody(w, r, &dst, zap.NewNop())
			if tc.status == 0 {
				require.NoError(t, err)
				assert.Equal(t, "sunrise over Hạ Long", dst.Prompt)
				assert.Equal(t, "veo-3.0", dst.Model)
				return
			}
			var apiErr *types.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, types.ErrInvalidRequest, apiErr.Code)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestValidateContentType(t *testing.T) {
	cases := map[string]bool{
		"application/json":                true,
		"application/json; charset=utf-8": true,
		"application/json; charset=UTF-8": true,
		"text/plain":                      false,
		"multipart/form-data":             false,
		"":                                false,
	}

	for ct, want := range cases {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/videos", nil)
		r.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()

		assert.Equal(t, want, ValidateContentType(w, r, nil), ct)
		if !want {
			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, ct)
		}
	}
}
