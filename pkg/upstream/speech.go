package upstream

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const maxAudioBytes = 25 << 20

type SpeechConfig struct {
	BaseURL string
	Model   string
	Voice   string
	Timeout time.Duration
}

// SpeechClient turns text into MP3 audio through an OpenAI-compatible speech endpoint.
type SpeechClient struct {
	transport
	cfg SpeechConfig
}

func NewSpeechClient(cfg SpeechConfig, apiKey string, limiter *rate.Limiter, observer Observer) *SpeechClient {
	return &SpeechClient{
		transport: newTransport(cfg.Timeout, apiKey, limiter, observer),
		cfg:       cfg,
	}
}

func (c *SpeechClient) Model() string { return c.cfg.Model }

func (c *SpeechClient) Synthesize(ctx context.Context, text string) (audio []byte, err error) {
	start := time.Now()
	defer func() {
		c.observer.ObserveUpstream("speech", outcome(err), time.Since(start))
	}()

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(c.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/audio/speech"
	resp, err := c.postJSON(ctx, "speech", url, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err = readLimited("speech", resp.Body, maxAudioBytes)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, &Error{Kind: KindEmptyResponse, Op: "speech"}
	}
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "application/json") {
		return nil, &Error{Kind: KindInvalidResponse, Op: "speech", Detail: errorDetail(audio)}
	}
	return audio, nil
}
