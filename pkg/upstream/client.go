package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const maxErrorDetail = 300

// Observer receives per-call outcomes. The metrics recorder implements it.
type Observer interface {
	ObserveUpstream(endpoint, outcome string, elapsed time.Duration)
	ObserveSalvaged(n int)
}

type noopObserver struct{}

func (noopObserver) ObserveUpstream(string, string, time.Duration) {}
func (noopObserver) ObserveSalvaged(int)                           {}

// NewLimiter spreads at most perMinute calls evenly over a minute. Zero or less disables limiting.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), max(1, perMinute/10))
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// transport holds what every endpoint client shares: auth, throttling and observation.
type transport struct {
	hc       *http.Client
	apiKey   string
	limiter  *rate.Limiter
	observer Observer
}

func newTransport(timeout time.Duration, apiKey string, limiter *rate.Limiter, observer Observer) transport {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return transport{
		hc:       newHTTPClient(timeout),
		apiKey:   apiKey,
		limiter:  limiter,
		observer: observer,
	}
}

// postJSON sends payload and returns the response of a 2xx reply. The caller closes the body.
func (t transport) postJSON(ctx context.Context, op, url string, payload any) (*http.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, transportError(op, fmt.Errorf("waiting for rate limiter: %w", err))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.hc.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: KindHTTP, Op: op, StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	return resp, nil
}

// errorDetail prefers the message of an OpenAI-style error envelope over the raw body.
func errorDetail(raw []byte) string {
	var envelope openai.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return truncate(envelope.Error.Message, maxErrorDetail)
	}
	return truncate(strings.TrimSpace(string(raw)), maxErrorDetail)
}

// readLimited reads the whole body and rejects one larger than limit instead of cutting it.
func readLimited(op string, r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, transportError(op, err)
	}
	if int64(len(body)) > limit {
		return nil, &Error{Kind: KindInvalidResponse, Op: op, Detail: fmt.Sprintf("response larger than %d bytes", limit)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := KindOf(err); ok {
		return string(kind)
	}
	return "error"
}
