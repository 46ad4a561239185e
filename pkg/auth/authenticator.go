package auth

import (
	"log/slog"
	"slices"
)

// Owners is the static allow-list of bot owners. It is the only authorization the bot has.
type Owners struct {
	ids []int64
}

func NewOwners(ids []int64) *Owners {
	slog.Info("bot owners configured", "user_ids", ids)

	return &Owners{ids: slices.Clone(ids)}
}

func (o *Owners) IsOwner(userID int64) bool {
	return slices.Contains(o.ids, userID)
}

func (o *Owners) IDs() []int64 {
	return slices.Clone(o.ids)
}
