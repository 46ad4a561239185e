package upstream

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/stream"
)

type ChatConfig struct {
	URL         string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint that may answer
// with an event stream or a plain JSON document.
type ChatClient struct {
	transport
	cfg ChatConfig
}

func NewChatClient(cfg ChatConfig, apiKey string, limiter *rate.Limiter, observer Observer) *ChatClient {
	return &ChatClient{
		transport: newTransport(cfg.Timeout, apiKey, limiter, observer),
		cfg:       cfg,
	}
}

func (c *ChatClient) Model() string { return c.cfg.Model }

// Complete sends the turns in order and returns the trimmed answer text.
func (c *ChatClient) Complete(ctx context.Context, turns []domain.Turn) (answer string, err error) {
	start := time.Now()
	defer func() {
		c.observer.ObserveUpstream("chat", outcome(err), time.Since(start))
	}()

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: lo.Map(turns, func(t domain.Turn, _ int) openai.ChatCompletionMessage {
			return openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content}
		}),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      true,
	}

	resp, err := c.postJSON(ctx, "chat", c.cfg.URL, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	slog.DebugContext(ctx, "chat response received", "contentType", contentType)

	switch {
	case contentType == "" || strings.Contains(contentType, "text/event-stream"):
		return c.fromStream(resp.Body, KindStream)
	case strings.Contains(contentType, "application/json"):
		return fromDocument(resp.Body)
	default:
		return c.fromStream(resp.Body, KindUnexpectedContentType)
	}
}

func (c *ChatClient) fromStream(body io.Reader, emptyKind Kind) (string, error) {
	res, err := stream.Assemble(body)
	c.observer.ObserveSalvaged(res.Salvaged)
	if err != nil {
		return "", transportError("chat", err)
	}
	if res.Text == "" {
		return "", &Error{Kind: emptyKind, Op: "chat"}
	}
	return res.Text, nil
}

// fromDocument reads choices[0].message.content of a non-streamed completion.
func fromDocument(body io.Reader) (string, error) {
	var doc struct {
		Choices []struct {
			Message *struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", transportError("chat", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", &Error{Kind: KindInvalidResponse, Op: "chat", Err: err}
	}

	if len(doc.Choices) == 0 || doc.Choices[0].Message == nil || doc.Choices[0].Message.Content == nil {
		return "", &Error{Kind: KindInvalidResponse, Op: "chat", Detail: "no choices[0].message.content"}
	}

	content := strings.TrimSpace(*doc.Choices[0].Message.Content)
	if content == "" {
		return "", &Error{Kind: KindEmptyResponse, Op: "chat"}
	}
	return content, nil
}
