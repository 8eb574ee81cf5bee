package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/gateway"
	"github.com/BaSui01/thucchien/types"
)

func newTestSynthesizer(t *testing.T, handler http.HandlerFunc) *Synthesizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := gateway.NewClient(gateway.Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop(),
		gateway.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewSynthesizer(client, Config{}, zap.NewNop())
}

func TestSynthesizer_Synthesize(t *testing.T) {
	s := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, DefaultVoice, req.Voice)
		assert.Equal(t, "Xin chào Đà Lạt", req.Input)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	})

	resp, err := s.Synthesize(context.Background(), TTSRequest{Text: "Xin chào Đà Lạt"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), resp.Audio)
	assert.Equal(t, utf8.RuneCountInString("Xin chào Đà Lạt"), resp.CharCount)
}

func TestSynthesizer_SynthesizeError(t *testing.T) {
	s := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := s.Synthesize(context.Background(), TTSRequest{Text: "x"})
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))

	_, err = s.Synthesize(context.Background(), TTSRequest{})
	assert.Error(t, err)
}

func geminiAudioHandler(t *testing.T, check func(speechCfg map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gen := req["generationConfig"].(map[string]any)
		assert.Equal(t, []any{"AUDIO"}, gen["responseModalities"])
		check(gen["speechConfig"].(map[string]any))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"` +
			base64.StdEncoding.EncodeToString([]byte("pcm")) + `"}}]}}]}`))
	}
}

func TestSynthesizer_GeminiSingleSpeakerDefaultsToKore(t *testing.T) {
	s := newTestSynthesizer(t, geminiAudioHandler(t, func(cfg map[string]any) {
		voice := cfg["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"]
		assert.Equal(t, "Kore", voice)
		assert.NotContains(t, cfg, "multiSpeakerVoiceConfig")
	}))

	resp, err := s.SynthesizeGemini(context.Background(), GeminiTTSRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte("pcm"), resp.Audio)
	assert.Equal(t, "audio/L16;rate=24000", resp.MimeType)
}

func TestSynthesizer_GeminiMultiSpeaker(t *testing.T) {
	s := newTestSynthesizer(t, geminiAudioHandler(t, func(cfg map[string]any) {
		multi := cfg["multiSpeakerVoiceConfig"].(map[string]any)["speakerVoiceConfigs"].([]any)
		require.Len(t, multi, 2)
		first := multi[0].(map[string]any)
		assert.Equal(t, "John", first["speaker"])
		assert.Equal(t, "Puck",
			first["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"])
	}))

	_, err := s.SynthesizeGemini(context.Background(), GeminiTTSRequest{
		Text:         "John: hi\nJane: hello",
		MultiSpeaker: true,
		Speakers:     []Speaker{{Speaker: "John", Voice: "Puck"}, {Speaker: "Jane", Voice: "Kore"}},
	})
	require.NoError(t, err)
}

func TestSpeechConfig_SingleUsesFirstSpeakerVoice(t *testing.T) {
	cfg := speechConfig(GeminiTTSRequest{Speakers: []Speaker{{Voice: "Charon"}}})
	assert.Equal(t, "Charon", cfg["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"])
}
