package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type contextKey string

const requestIDKey contextKey = "request_id"

var (
	levelTags = map[slog.Level]string{
		slog.LevelDebug: color.New(color.BgCyan, color.FgHiWhite).Sprint("DEBUG"),
		slog.LevelInfo:  color.New(color.BgGreen, color.FgHiWhite).Sprint("INFO "),
		slog.LevelWarn:  color.New(color.BgYellow, color.FgHiWhite).Sprint("WARN "),
		slog.LevelError: color.New(color.BgRed, color.FgHiWhite).Sprint("ERROR"),
	}

	faint   = color.New(color.Faint)
	magenta = color.New(color.FgMagenta)
	cyan    = color.New(color.FgCyan)
	red     = color.New(color.FgRed)
)

// Handler is a slog.Handler that writes one colored line per record.
type Handler struct {
	groups []string
	attrs  []slog.Attr

	opts Options

	mu  *sync.Mutex
	out io.Writer
}

// NewHandler creates a new Handler with the specified options. If opts is nil, uses [DefaultOptions].
func NewHandler(out io.Writer, opts *Options) *Handler {
	h := &Handler{out: out, mu: &sync.Mutex{}}
	if opts == nil {
		h.opts = *DefaultOptions
	} else {
		h.opts = *opts
	}
	if h.opts.MsgColor == nil {
		h.opts.MsgColor = color.New()
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

func (h *Handler) clone() *Handler {
	return &Handler{
		groups: h.groups,
		attrs:  h.attrs,
		opts:   h.opts,
		mu:     h.mu,
		out:    h.out,
	}
}

// Enabled implements slog.Handler.Enabled .
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.Handle .
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	bf := bufPool.Get().(*bytes.Buffer)
	bf.Reset()
	defer bufPool.Put(bf)

	if !r.Time.IsZero() {
		bf.WriteString(faint.Sprint(r.Time.Format(h.opts.TimeFormat)))
		bf.WriteByte(' ')
	}

	if requestID, ok := RequestIDFromContext(ctx); ok {
		bf.WriteString(magenta.Sprintf("%d ", requestID))
	}

	if tag, ok := levelTags[r.Level]; ok {
		bf.WriteString(tag)
	} else {
		bf.WriteString(r.Level.String())
	}
	bf.WriteByte(' ')

	h.writeSource(bf, r.PC)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	bf.WriteString(h.opts.MsgPrefix)
	bf.WriteString(h.opts.MsgColor.Sprint(h.formatMessage(r.Message, len(attrs) > 0)))

	h.writeAttrs(bf, attrs)
	bf.WriteByte('\n')

	if h.opts.NoColor {
		stripANSI(bf)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.Copy(h.out, bf)
	return err
}

func (h *Handler) writeSource(bf *bytes.Buffer, pc uintptr) {
	if h.opts.SrcFileMode == Nop || pc == 0 {
		return
	}

	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()

	filename := f.File
	if h.opts.SrcFileMode == ShortFile {
		filename = filepath.Base(f.File)
	}

	line := ":" + strconv.Itoa(f.Line)
	if h.opts.SrcFileLength <= 0 {
		bf.WriteString(filename + line + " ")
		return
	}

	if maxLen := h.opts.SrcFileLength - len(line) - 1; maxLen > 0 && len(filename) > maxLen {
		filename = filename[:maxLen]
	}
	fmt.Fprintf(bf, "%-*s", h.opts.SrcFileLength, filename+line)
}

// formatMessage pads or truncates the message so attributes line up, but only when attributes follow.
func (h *Handler) formatMessage(msg string, hasAttrs bool) string {
	if h.opts.MsgLength <= 0 || !hasAttrs {
		return msg
	}
	if len(msg) > h.opts.MsgLength {
		return msg[:h.opts.MsgLength-1] + "…"
	}
	return fmt.Sprintf("%-*s", h.opts.MsgLength, msg)
}

func (h *Handler) writeAttrs(bf *bytes.Buffer, attrs []slog.Attr) {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	for _, a := range attrs {
		bf.WriteByte(' ')
		if prefix != "" {
			bf.WriteString(cyan.Sprint(prefix))
		}

		keyColor := cyan
		if strings.Contains(a.Key, "err") {
			keyColor = red
		}
		bf.WriteString(keyColor.Sprintf("%s=", a.Key))
		bf.WriteString(a.Value.String())
	}
}

// WithGroup implements slog.Handler.WithGroup .
func (h *Handler) WithGroup(name string) slog.Handler {
	h2 := h.clone()
	h2.groups = append(append([]string(nil), h.groups...), name)
	return h2
}

// WithAttrs implements slog.Handler.WithAttrs .
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	h2.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return h2
}

var bufPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

type SourceFileMode int

const (
	// Nop does nothing.
	Nop SourceFileMode = iota

	// ShortFile produces only the filename (for example main.go:69).
	ShortFile

	// LongFile produces the full file path (for example /home/bot/src/brahmos/main.go:69).
	LongFile
)

// re is the regular expression used for removing ANSI colors.
var re = regexp.MustCompile("[\u001B\u009B][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?\u0007)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))")

// stripANSI removes ANSI escape sequences from the provided bytes.Buffer.
func stripANSI(bf *bytes.Buffer) {
	cleaned := re.ReplaceAll(bf.Bytes(), nil)
	bf.Reset()
	bf.Write(cleaned)
}

var DefaultOptions = &Options{
	Level:       slog.LevelDebug,
	TimeFormat:  time.DateTime,
	SrcFileMode: ShortFile,
	MsgPrefix:   color.HiWhiteString("| "),
	MsgColor:    color.New(),
}

type Options struct {
	// Level reports the minimum level to log.
	// If nil, the Handler uses [slog.LevelInfo].
	Level slog.Leveler

	// TimeFormat is the time format.
	TimeFormat string

	// SrcFileMode is the source file mode.
	SrcFileMode SourceFileMode

	// SrcFileLength to show fixed length filename to line up the log output, default 0 shows complete filename.
	SrcFileLength int

	// MsgPrefix to show prefix before message, default: white colored "| ".
	MsgPrefix string

	// MsgColor is the color of the message, default to empty.
	MsgColor *color.Color

	// MsgLength to show fixed length message to line up the log output, default 0 shows complete message.
	MsgLength int

	// NoColor disables color, default: false.
	NoColor bool
}

// New builds the process logger from the configured level name.
func New(out io.Writer, level string, noColor bool) *slog.Logger {
	opts := *DefaultOptions
	opts.Level = ParseLevel(level)
	opts.NoColor = noColor
	return slog.New(NewHandler(out, &opts))
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Err wraps an error into an attribute the handler highlights.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "<nil>")
	}
	return slog.String("err", err.Error())
}

func ContextWithRequestID(ctx context.Context, requestID int64) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) (int64, bool) {
	requestID, ok := ctx.Value(requestIDKey).(int64)
	return requestID, ok
}
