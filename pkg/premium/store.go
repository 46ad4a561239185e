package premium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/logger"
)

type document interface {
	Load(ctx context.Context, v any) error
	Save(ctx context.Context, v any) error
}

// Store is the set of premium users. Membership is the only premium criterion.
// It performs no authorization of its own.
type Store struct {
	mu    sync.RWMutex
	users map[int64]struct{}
	doc   document
	// dirty is set while the last save failed; memory is then ahead of the document.
	dirty bool
}

func NewStore(doc document) *Store {
	return &Store{
		users: make(map[int64]struct{}),
		doc:   doc,
	}
}

// Load replaces the in-memory set with the persisted one. A missing document means an empty set;
// on any other failure the set is left as it was and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readLocked(ctx); err != nil {
		return err
	}

	slog.Info("premium users loaded", "count", len(s.users))
	return nil
}

// Refresh picks up changes another process wrote to the document.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		return nil
	}

	before := len(s.users)
	if err := s.readLocked(ctx); err != nil {
		return err
	}
	if len(s.users) != before {
		slog.InfoContext(ctx, "premium users refreshed", "count", len(s.users))
	}
	return nil
}

func (s *Store) readLocked(ctx context.Context) error {
	var ids []int64
	err := s.doc.Load(ctx, &ids)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("loading premium users: %w", err)
	}

	s.users = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.users[id] = struct{}{}
	}
	return nil
}

// reloadLocked re-reads the document before a mutation so that a write made by another
// process is merged instead of overwritten.
func (s *Store) reloadLocked(ctx context.Context) {
	if s.dirty {
		return
	}
	if err := s.readLocked(ctx); err != nil {
		slog.WarnContext(ctx, "reloading premium users before update", logger.Err(err))
	}
}

func (s *Store) IsPremium(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[userID]
	return ok
}

// Add grants premium. changed is false when the user already had it; the set is persisted either way.
func (s *Store) Add(ctx context.Context, userID int64) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadLocked(ctx)
	_, exists := s.users[userID]
	s.users[userID] = struct{}{}

	return !exists, s.saveLocked(ctx)
}

// Remove revokes premium. changed is false when the user did not have it.
func (s *Store) Remove(ctx context.Context, userID int64) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadLocked(ctx)
	_, exists := s.users[userID]
	delete(s.users, userID)

	return exists, s.saveLocked(ctx)
}

// List returns the premium user ids in ascending order.
func (s *Store) List() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedLocked()
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

func (s *Store) sortedLocked() []int64 {
	ids := lo.Keys(s.users)
	slices.Sort(ids)
	return ids
}

// saveLocked writes the whole set. The in-memory change is kept when the write fails.
func (s *Store) saveLocked(ctx context.Context) error {
	if err := s.doc.Save(ctx, s.sortedLocked()); err != nil {
		s.dirty = true
		slog.ErrorContext(ctx, "saving premium users", logger.Err(err))
		return fmt.Errorf("saving premium users: %w", err)
	}
	s.dirty = false
	return nil
}
