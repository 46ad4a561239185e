package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dskvich/brahmos-bot/pkg/logger"
)

const defaultRefreshInterval = time.Minute

type premiumRefresher interface {
	Refresh(ctx context.Context) error
}

// premiumReloader re-reads the premium set so grants made with the admin CLI reach the running bot.
type premiumReloader struct {
	store    premiumRefresher
	interval time.Duration
}

func NewPremiumReloader(store premiumRefresher, interval time.Duration) *premiumReloader {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &premiumReloader{
		store:    store,
		interval: interval,
	}
}

func (r *premiumReloader) Name() string { return "premium_reloader" }

func (r *premiumReloader) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", r.Name(), "interval", r.interval)

	runEvery(ctx, r.interval, func(ctx context.Context) {
		if err := r.store.Refresh(ctx); err != nil {
			slog.WarnContext(ctx, "Refreshing premium users", logger.Err(err))
		}
	})
	return nil
}
