package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

type premiumStore interface {
	IsPremium(userID int64) bool
	Add(ctx context.Context, userID int64) (bool, error)
	Remove(ctx context.Context, userID int64) (bool, error)
	Count() int
}

type quotaReader interface {
	Remaining(ctx context.Context, userID int64, action domain.Action) int
	Limit(action domain.Action) int
}

// User is someone who talked to the bot since it started.
type User struct {
	ID        int64
	FirstName string
	Username  string
	FirstSeen time.Time
}

// Status is what a user may still do today.
type Status struct {
	Premium         bool
	ImagesRemaining int
	TTSRemaining    int
	ImageLimit      int
	TTSLimit        int
}

type Stats struct {
	Users        int
	PremiumUsers int
}

type accountService struct {
	premium  premiumStore
	quota    quotaReader
	recorder recorder
	now      func() time.Time

	mu    sync.RWMutex
	users map[int64]User
}

func NewAccountService(premium premiumStore, quota quotaReader, recorder recorder) *accountService {
	return &accountService{
		premium:  premium,
		quota:    quota,
		recorder: recorder,
		now:      time.Now,
		users:    make(map[int64]User),
	}
}

// Touch records the user as seen, keeping the first-seen time and refreshing names.
func (s *accountService) Touch(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if known, ok := s.users[user.ID]; ok {
		user.FirstSeen = known.FirstSeen
	} else {
		user.FirstSeen = s.now()
	}
	s.users[user.ID] = user
}

func (s *accountService) Status(ctx context.Context, userID int64) Status {
	return Status{
		Premium:         s.premium.IsPremium(userID),
		ImagesRemaining: s.quota.Remaining(ctx, userID, domain.ActionImage),
		TTSRemaining:    s.quota.Remaining(ctx, userID, domain.ActionSpeech),
		ImageLimit:      s.quota.Limit(domain.ActionImage),
		TTSLimit:        s.quota.Limit(domain.ActionSpeech),
	}
}

// Grant gives premium to a user. changed is false when the user already had it.
func (s *accountService) Grant(ctx context.Context, userID int64) (bool, error) {
	changed, err := s.premium.Add(ctx, userID)
	if err != nil {
		s.recorder.IncPersistenceFailure("premium")
		return changed, fmt.Errorf("granting premium to %d: %w", userID, err)
	}

	slog.InfoContext(ctx, "Premium granted", "userID", userID, "changed", changed)
	return changed, nil
}

func (s *accountService) Revoke(ctx context.Context, userID int64) (bool, error) {
	changed, err := s.premium.Remove(ctx, userID)
	if err != nil {
		s.recorder.IncPersistenceFailure("premium")
		return changed, fmt.Errorf("revoking premium from %d: %w", userID, err)
	}

	slog.InfoContext(ctx, "Premium revoked", "userID", userID, "changed", changed)
	return changed, nil
}

// Users returns everyone seen since start, oldest first.
func (s *accountService) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := lo.Values(s.users)
	slices.SortFunc(users, func(a, b User) int {
		return cmp.Or(a.FirstSeen.Compare(b.FirstSeen), cmp.Compare(a.ID, b.ID))
	})
	return users
}

func (s *accountService) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Users:        len(s.users),
		PremiumUsers: s.premium.Count(),
	}
}
