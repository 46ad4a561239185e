package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

type imageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
	Edit(ctx context.Context, image []byte, instruction string) ([]byte, error)
}

// ImageResult is a produced image plus what is left of the user's quota.
type ImageResult struct {
	Image     []byte
	Premium   bool
	Remaining int
	Limit     int
}

type imageService struct {
	generator imageGenerator
	gate      gate
}

func NewImageService(generator imageGenerator, tracker quotaTracker, recorder recorder) *imageService {
	return &imageService{
		generator: generator,
		gate:      gate{tracker: tracker, recorder: recorder},
	}
}

func (s *imageService) Generate(ctx context.Context, userID int64, prompt string) (ImageResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ImageResult{}, ErrEmptyInput
	}

	slog.InfoContext(ctx, "Starting image generation", "userID", userID, "prompt", prompt)

	var img []byte
	decision, err := s.gate.run(ctx, userID, domain.ActionImage, func() (err error) {
		img, err = s.generator.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("generating image: %w", err)
	}

	slog.InfoContext(ctx, "Image generated", "size", len(img), "remaining", decision.Remaining)

	return ImageResult{Image: img, Premium: decision.Premium, Remaining: decision.Remaining, Limit: decision.Limit}, nil
}

func (s *imageService) Edit(ctx context.Context, userID int64, image []byte, instruction string) (ImageResult, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" || len(image) == 0 {
		return ImageResult{}, ErrEmptyInput
	}

	slog.InfoContext(ctx, "Starting image edit", "userID", userID, "instruction", instruction, "size", len(image))

	var img []byte
	decision, err := s.gate.run(ctx, userID, domain.ActionImage, func() (err error) {
		img, err = s.generator.Edit(ctx, image, instruction)
		return err
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("editing image: %w", err)
	}

	return ImageResult{Image: img, Premium: decision.Premium, Remaining: decision.Remaining, Limit: decision.Limit}, nil
}
