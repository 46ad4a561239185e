package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dskvich/brahmos-bot/pkg/logger"
)

const defaultSweepInterval = time.Hour

type usageCompactor interface {
	Compact(ctx context.Context) (int, error)
}

// usageSweeper drops usage records of previous days so the stored table stays small.
type usageSweeper struct {
	compactor usageCompactor
	interval  time.Duration
}

// NewUsageSweeper falls back to an hourly sweep when interval is not positive.
func NewUsageSweeper(compactor usageCompactor, interval time.Duration) *usageSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &usageSweeper{
		compactor: compactor,
		interval:  interval,
	}
}

func (s *usageSweeper) Name() string { return "usage_sweeper" }

func (s *usageSweeper) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", s.Name(), "interval", s.interval)
	defer slog.Info("Worker stopped", "name", s.Name())

	runEvery(ctx, s.interval, s.sweep)
	return nil
}

// runEvery calls fn on every tick until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *usageSweeper) sweep(ctx context.Context) {
	dropped, err := s.compactor.Compact(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Compacting usage data", logger.Err(err))
		return
	}
	if dropped > 0 {
		slog.InfoContext(ctx, "Dropped stale usage records", "count", dropped)
	}
}
