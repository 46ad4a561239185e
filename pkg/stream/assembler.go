package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

const maxLineSize = 1 << 20

// Result is the assembled answer of one streamed completion.
type Result struct {
	Text string
	// Chunks counts the JSON values that parsed.
	Chunks int
	// Salvaged counts pieces that did not parse and were kept as raw text.
	Salvaged int
}

type chunk struct {
	Choices json.RawMessage `json:"choices"`
}

// Assemble reads a server-sent event body and concatenates the content of every choice
// in arrival order. Malformed chunks are kept as raw text instead of failing the whole answer.
// An error is returned only when reading the body fails; an empty Text means nothing was found.
func Assemble(r io.Reader) (Result, error) {
	var (
		res Result
		sb  strings.Builder
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		payload, ok := dataPayload(scanner.Text())
		if !ok {
			continue
		}

		for _, piece := range SplitValues(payload) {
			texts, parsed := contentOf(piece)
			if !parsed {
				res.Salvaged++
				sb.WriteString(piece)
				continue
			}
			res.Chunks++
			for _, t := range texts {
				sb.WriteString(t)
			}
		}
	}

	res.Text = strings.TrimSpace(sb.String())

	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("reading event stream: %w", err)
	}

	return res, nil
}

// dataPayload returns the payload of a data line. Blank lines, comments, other fields
// and the [DONE] terminator are skipped.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
		return "", false
	}

	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}

	payload = strings.TrimLeft(payload, " \t")
	if payload == "" || strings.TrimSpace(payload) == "[DONE]" {
		return "", false
	}

	return payload, true
}

// contentOf extracts the content strings of one JSON value. An object contributes its
// choices; an array is taken as a list of choices. parsed is false when the piece is not JSON.
func contentOf(piece string) (texts []string, parsed bool) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(piece), &raw); err != nil {
		return nil, false
	}

	choicesRaw := raw
	if trimmed := strings.TrimSpace(piece); strings.HasPrefix(trimmed, "{") {
		var c chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, true
		}
		choicesRaw = c.Choices
	}

	var choices []json.RawMessage
	if len(choicesRaw) == 0 || json.Unmarshal(choicesRaw, &choices) != nil {
		return nil, true
	}

	for _, rc := range choices {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rc, &fields); err != nil {
			continue
		}
		for _, key := range []string{"delta", "message"} {
			if s, ok := stringContent(fields[key]); ok {
				texts = append(texts, s)
			}
		}
	}

	return texts, true
}

// stringContent returns the content field of a delta or message object when it is a string.
func stringContent(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var m struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &m); err != nil || len(m.Content) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", false
	}
	return s, true
}
