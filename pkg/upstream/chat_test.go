package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	salvaged int
}

func (o *recordingObserver) ObserveUpstream(endpoint, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, endpoint+":"+outcome)
}

func (o *recordingObserver) ObserveSalvaged(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.salvaged += n
}

func newChatClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*ChatClient, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	obs := &recordingObserver{}
	client := NewChatClient(ChatConfig{
		URL:         srv.URL,
		Model:       "gpt-4.1",
		MaxTokens:   1000,
		Temperature: 0.8,
		Timeout:     timeout,
	}, "secret", nil, obs)
	return client, obs
}

var turns = []domain.Turn{
	{Role: domain.RoleSystem, Content: "be nice"},
	{Role: domain.RoleUser, Content: "Ann: hi"},
}

func TestChatCompleteStream(t *testing.T) {
	var got map[string]any
	client, obs := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}, time.Second)

	answer, err := client.Complete(context.Background(), turns)
	require.NoError(t, err)
	assert.Equal(t, "Hello", answer)

	assert.Equal(t, "gpt-4.1", got["model"])
	assert.Equal(t, true, got["stream"])
	assert.EqualValues(t, 1000, got["max_tokens"])
	assert.InDelta(t, 0.8, got["temperature"], 0.001)
	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "user", "content": "Ann: hi"}, messages[1])
	assert.Equal(t, []string{"chat:ok"}, obs.outcomes)
}

func TestChatCompleteMissingContentTypeUsesStream(t *testing.T) {
	client, _ := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n")
	}, time.Second)

	answer, err := client.Complete(context.Background(), turns)
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
}

func TestChatCompleteJSON(t *testing.T) {
	client, _ := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":" direct "}}]}`)
	}, time.Second)

	answer, err := client.Complete(context.Background(), turns)
	require.NoError(t, err)
	assert.Equal(t, "direct", answer)
}

func TestChatCompleteJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{"no choices", `{"choices":[]}`, KindInvalidResponse},
		{"no message", `{"choices":[{"index":0}]}`, KindInvalidResponse},
		{"not json", `{"choices":`, KindInvalidResponse},
		{"empty content", `{"choices":[{"message":{"content":"  "}}]}`, KindEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tt.body)
			}, time.Second)

			_, err := client.Complete(context.Background(), turns)
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestChatCompleteUnexpectedContentType(t *testing.T) {
	client, _ := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "   ")
	}, time.Second)

	_, err := client.Complete(context.Background(), turns)
	kind, _ := KindOf(err)
	assert.Equal(t, KindUnexpectedContentType, kind)
}

func TestChatCompleteUnexpectedContentTypeStillParsed(t *testing.T) {
	client, _ := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"fine\"}}]}\n")
	}, time.Second)

	answer, err := client.Complete(context.Background(), turns)
	require.NoError(t, err)
	assert.Equal(t, "fine", answer)
}

func TestChatCompleteEmptyStream(t *testing.T) {
	client, _ := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": nothing\n\ndata: [DONE]\n")
	}, time.Second)

	_, err := client.Complete(context.Background(), turns)
	kind, _ := KindOf(err)
	assert.Equal(t, KindStream, kind)
}

func TestChatCompleteHTTPError(t *testing.T) {
	client, obs := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}, time.Second)

	_, err := client.Complete(context.Background(), turns)
	kind, _ := KindOf(err)
	assert.Equal(t, KindHTTP, kind)
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(err))
	assert.Contains(t, err.Error(), "slow down")
	assert.Equal(t, []string{"chat:http_status"}, obs.outcomes)
}

func TestChatCompleteTimeout(t *testing.T) {
	client, _ := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	_, err := client.Complete(context.Background(), turns)
	kind, _ := KindOf(err)
	assert.Equal(t, KindTimeout, kind)
}

func TestChatCompleteConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewChatClient(ChatConfig{URL: url, Timeout: time.Second}, "", nil, nil)

	_, err := client.Complete(context.Background(), turns)
	kind, _ := KindOf(err)
	assert.Equal(t, KindConnection, kind)
}

func TestChatCompleteCountsSalvagedPieces(t *testing.T) {
	client, obs := newChatClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}{\"cho\n")
	}, time.Second)

	answer, err := client.Complete(context.Background(), turns)
	require.NoError(t, err)
	assert.Equal(t, `a{"cho`, answer)
	assert.Equal(t, 1, obs.salvaged)
}
