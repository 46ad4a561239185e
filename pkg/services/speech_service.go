package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

// MaxSpeechChars is the longest text sent for synthesis.
const MaxSpeechChars = 4096

type speechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type SpeechResult struct {
	Audio     []byte
	Premium   bool
	Remaining int
	Limit     int
}

type speechService struct {
	synthesizer speechSynthesizer
	gate        gate
}

func NewSpeechService(synthesizer speechSynthesizer, tracker quotaTracker, recorder recorder) *speechService {
	return &speechService{
		synthesizer: synthesizer,
		gate:        gate{tracker: tracker, recorder: recorder},
	}
}

func (s *speechService) Synthesize(ctx context.Context, userID int64, text string) (SpeechResult, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return SpeechResult{}, ErrEmptyInput
	case utf8.RuneCountInString(text) > MaxSpeechChars:
		return SpeechResult{}, ErrTextTooLong
	}

	slog.InfoContext(ctx, "Starting speech synthesis", "userID", userID, "chars", utf8.RuneCountInString(text))

	var audio []byte
	decision, err := s.gate.run(ctx, userID, domain.ActionSpeech, func() (err error) {
		audio, err = s.synthesizer.Synthesize(ctx, text)
		return err
	})
	if err != nil {
		return SpeechResult{}, fmt.Errorf("synthesizing speech: %w", err)
	}

	return SpeechResult{Audio: audio, Premium: decision.Premium, Remaining: decision.Remaining, Limit: decision.Limit}, nil
}
