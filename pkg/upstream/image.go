package upstream

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	maxImageBytes = 20 << 20
	// minRawImageSize is the smallest non-JSON body taken as image bytes when the content type says nothing.
	minRawImageSize = 1000
)

type ImageConfig struct {
	URL             string
	GenerateModel   string
	EditModel       string
	Size            string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	DownloadRetries int
}

// ImageClient generates and edits images. The endpoint either returns the image itself
// or a JSON document pointing at a URL that is downloaded afterwards.
type ImageClient struct {
	transport
	cfg      ImageConfig
	download *retryablehttp.Client
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
	Size           string `json:"size"`
	Image          string `json:"image,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func NewImageClient(cfg ImageConfig, apiKey string, limiter *rate.Limiter, observer Observer) *ImageClient {
	download := retryablehttp.NewClient()
	download.RetryMax = cfg.DownloadRetries
	download.RetryWaitMin = 500 * time.Millisecond
	download.RetryWaitMax = 3 * time.Second
	download.HTTPClient = newHTTPClient(cfg.DownloadTimeout)
	download.Logger = downloadLogger{log: slog.Default()}
	download.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &ImageClient{
		transport: newTransport(cfg.Timeout, apiKey, limiter, observer),
		cfg:       cfg,
		download:  download,
	}
}

func (c *ImageClient) Models() (generate, edit string) { return c.cfg.GenerateModel, c.cfg.EditModel }

// Generate creates an image from a text prompt.
func (c *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return c.request(ctx, "image_generate", imageRequest{
		Model:          c.cfg.GenerateModel,
		Prompt:         prompt,
		ResponseFormat: "url",
		Size:           c.cfg.Size,
	})
}

// Edit applies an instruction to a JPEG image.
func (c *ImageClient) Edit(ctx context.Context, image []byte, instruction string) ([]byte, error) {
	return c.request(ctx, "image_edit", imageRequest{
		Model:          c.cfg.EditModel,
		Prompt:         instruction,
		ResponseFormat: "url",
		Size:           c.cfg.Size,
		Image:          "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
	})
}

func (c *ImageClient) request(ctx context.Context, op string, payload imageRequest) (data []byte, err error) {
	start := time.Now()
	defer func() {
		c.observer.ObserveUpstream(op, outcome(err), time.Since(start))
	}()

	resp, err := c.postJSON(ctx, op, c.cfg.URL, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readLimited(op, resp.Body, maxImageBytes)
	if err != nil {
		return nil, err
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))

	if json.Valid(body) {
		return c.fromDocument(ctx, op, body)
	}

	if strings.HasPrefix(contentType, "image/") || len(body) > minRawImageSize {
		return body, nil
	}

	return nil, &Error{Kind: KindInvalidResponse, Op: op, Detail: truncate(string(body), maxErrorDetail)}
}

func (c *ImageClient) fromDocument(ctx context.Context, op string, body []byte) ([]byte, error) {
	var doc imageResponse
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Data) == 0 {
		return nil, &Error{Kind: KindInvalidResponse, Op: op, Detail: "no data[0] in response"}
	}

	item := doc.Data[0]
	switch {
	case item.URL != "":
		return c.fetch(ctx, op, item.URL)
	case item.B64JSON != "":
		img, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, &Error{Kind: KindInvalidResponse, Op: op, Err: err}
		}
		return img, nil
	default:
		return nil, &Error{Kind: KindInvalidResponse, Op: op, Detail: "no url in data[0]"}
	}
}

// Download fetches an image by URL with the same retrying client used for generated results.
func (c *ImageClient) Download(ctx context.Context, url string) ([]byte, error) {
	return c.fetch(ctx, "download", url)
}

// fetch downloads the generated image, retrying transient failures.
// Telegram file links carry the bot token, so the URL never reaches errors or logs.
func (c *ImageClient) fetch(ctx context.Context, op, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating download request: %w", op, withoutURL(err))
	}

	resp, err := c.download.Do(req)
	if err != nil {
		e := transportError(op, err)
		e.Err = withoutURL(err)
		return nil, e
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindHTTP, Op: op, StatusCode: resp.StatusCode, Detail: "downloading result"}
	}

	img, err := readLimited(op, resp.Body, maxImageBytes)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, &Error{Kind: KindEmptyResponse, Op: op}
	}
	return img, nil
}

// withoutURL drops the request URL that net/http puts into transport errors.
func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// downloadLogger adapts slog to retryablehttp without the url attribute.
type downloadLogger struct {
	log *slog.Logger
}

func (l downloadLogger) Error(msg string, kv ...any) { l.log.Error(msg, scrub(kv)...) }
func (l downloadLogger) Warn(msg string, kv ...any)  { l.log.Warn(msg, scrub(kv)...) }
func (l downloadLogger) Info(msg string, kv ...any)  { l.log.Info(msg, scrub(kv)...) }
func (l downloadLogger) Debug(msg string, kv ...any) { l.log.Debug(msg, scrub(kv)...) }

func scrub(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		if key, _ := kv[i].(string); key == "url" {
			continue
		}
		v := kv[i+1]
		if err, ok := v.(error); ok {
			v = withoutURL(err)
		}
		out = append(out, kv[i], v)
	}
	return out
}
