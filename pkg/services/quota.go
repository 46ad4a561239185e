package services

import (
	"context"
	"log/slog"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/logger"
	"github.com/dskvich/brahmos-bot/pkg/usage"
)

type quotaTracker interface {
	TryConsume(ctx context.Context, userID int64, action domain.Action) (usage.Decision, error)
	Refund(ctx context.Context, userID int64, action domain.Action) error
}

type recorder interface {
	IncQuotaDecision(action, outcome string)
	IncPersistenceFailure(store string)
}

// gate reserves one action before calling work and gives it back when work fails.
type gate struct {
	tracker  quotaTracker
	recorder recorder
}

func (g gate) run(ctx context.Context, userID int64, action domain.Action, work func() error) (usage.Decision, error) {
	decision, err := g.tracker.TryConsume(ctx, userID, action)
	if err != nil {
		g.recorder.IncPersistenceFailure("usage")
		slog.WarnContext(ctx, "Usage not persisted", "userID", userID, logger.Err(err))
	}

	switch {
	case !decision.Allowed:
		g.recorder.IncQuotaDecision(string(action), "denied")
		slog.InfoContext(ctx, "Quota exceeded", "userID", userID, "action", action)
		return decision, ErrQuotaExceeded
	case decision.Premium:
		g.recorder.IncQuotaDecision(string(action), "premium")
	default:
		g.recorder.IncQuotaDecision(string(action), "allowed")
	}

	if err := work(); err != nil {
		if refundErr := g.tracker.Refund(ctx, userID, action); refundErr != nil {
			g.recorder.IncPersistenceFailure("usage")
			slog.WarnContext(ctx, "Refund not persisted", "userID", userID, logger.Err(refundErr))
		}
		return decision, err
	}

	return decision, nil
}
