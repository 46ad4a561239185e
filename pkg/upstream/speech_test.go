package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpeechClient(t *testing.T, handler http.HandlerFunc) *SpeechClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewSpeechClient(SpeechConfig{
		BaseURL: srv.URL + "/v1/",
		Model:   "gpt-4o-mini-tts",
		Voice:   "alloy",
		Timeout: time.Second,
	}, "key", nil, nil)
}

func TestSynthesize(t *testing.T) {
	var got map[string]any
	client := newSpeechClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "ID3-audio")
	})

	audio, err := client.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(audio))
	assert.Equal(t, "gpt-4o-mini-tts", got["model"])
	assert.Equal(t, "hello there", got["input"])
	assert.Equal(t, "alloy", got["voice"])
	assert.Equal(t, "mp3", got["response_format"])
}

func TestSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    Kind
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			want: KindHTTP,
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			want:    KindEmptyResponse,
		},
		{
			name: "json instead of audio",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"error":{"message":"voice not supported"}}`)
			},
			want: KindInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSpeechClient(t, tt.handler).Synthesize(context.Background(), "x")
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestNewLimiter(t *testing.T) {
	assert.True(t, NewLimiter(0).Allow())
	limiter := NewLimiter(60)
	assert.True(t, limiter.Allow())
}
