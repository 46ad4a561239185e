package stream

import "strings"

// SplitValues cuts a payload holding several concatenated JSON values into pieces.
// Boundaries are found by counting brace and bracket depth outside string literals, so
// "}{" inside a string never splits. Text between values is returned as its own piece,
// and an unterminated value is returned together with the text before it so the caller
// can salvage the original spacing.
func SplitValues(payload string) []string {
	var (
		pieces   []string
		depth    int
		inString bool
		escaped  bool
		start    = -1
		looseAt  = -1
		leadAt   = -1
	)

	appendTrimmed := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			pieces = append(pieces, s)
		}
	}

	for i := 0; i < len(payload); i++ {
		c := payload[i]

		if depth == 0 {
			if c == '{' || c == '[' {
				// Loose text is held back until the value turns out complete.
				leadAt, looseAt = looseAt, -1
				start = i
				depth = 1
				continue
			}
			if looseAt < 0 && !isSpace(c) {
				looseAt = i
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				if leadAt >= 0 {
					appendTrimmed(payload[leadAt:start])
					leadAt = -1
				}
				pieces = append(pieces, payload[start:i+1])
				start = -1
			}
		}
	}

	switch {
	case depth > 0 && leadAt >= 0:
		appendTrimmed(payload[leadAt:])
	case depth > 0:
		appendTrimmed(payload[start:])
	case looseAt >= 0:
		appendTrimmed(payload[looseAt:])
	}

	return pieces
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
