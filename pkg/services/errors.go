package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dskvich/brahmos-bot/pkg/upstream"
)

var (
	ErrQuotaExceeded = errors.New("daily quota exceeded")
	ErrEmptyInput    = errors.New("empty input")
	ErrTextTooLong   = errors.New("text too long")
)

// FailureText turns a failed operation into the short message shown to the user.
// Raw error details stay in the logs.
func FailureText(err error) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return "✏️ Please provide some text."
	case errors.Is(err, ErrTextTooLong):
		return fmt.Sprintf("✂️ The text is too long. Please keep it under %d characters.", MaxSpeechChars)
	case errors.Is(err, ErrQuotaExceeded):
		return "🚫 You have reached today's free limit. It resets at midnight, or ask an owner about premium."
	}

	kind, ok := upstream.KindOf(err)
	if !ok {
		return "❌ Something went wrong. Please try again."
	}

	switch kind {
	case upstream.KindTimeout:
		return "⏱ The AI service took too long to respond. Please try again."
	case upstream.KindConnection:
		return "🔌 Could not reach the AI service. Please try again later."
	case upstream.KindHTTP:
		status := upstream.StatusOf(err)
		if status == http.StatusTooManyRequests {
			return "🐢 The AI service is busy right now. Please try again in a minute."
		}
		return fmt.Sprintf("⚠️ The AI service returned an error (HTTP %d). Please try again later.", status)
	case upstream.KindInvalidResponse:
		return "⚠️ The AI service sent a response I could not understand."
	case upstream.KindEmptyResponse:
		return "⚠️ The AI service returned an empty response."
	case upstream.KindStream:
		return "⚠️ I could not read the streamed answer. Please try again."
	case upstream.KindUnexpectedContentType:
		return "⚠️ The AI service answered with an unexpected content type."
	default:
		return "❌ Something went wrong. Please try again."
	}
}
