package repository

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/coocood/freecache"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

const minCacheSize = 512 * 1024

// stateRepository tracks chat mode per user and the input a user was last asked for.
// Pending inputs expire after ttl so an abandoned prompt does not capture later messages.
// The cache holds only the kind; instructions live in payloads because the cache
// refuses entries above 1/1024 of its size.
type stateRepository struct {
	mu       sync.RWMutex
	chatMode map[int64]struct{}

	pendingMu sync.Mutex
	pending   *freecache.Cache
	payloads  map[int64]pendingPayload
	ttl       time.Duration
	now       func() time.Time
}

type pendingPayload struct {
	text    string
	expires time.Time
}

func (p pendingPayload) expired(now time.Time) bool {
	return !p.expires.IsZero() && now.After(p.expires)
}

func NewStateRepository(cacheSizeBytes int, ttl time.Duration) *stateRepository {
	return &stateRepository{
		chatMode: make(map[int64]struct{}),
		pending:  freecache.NewCache(max(cacheSizeBytes, minCacheSize)),
		payloads: make(map[int64]pendingPayload),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *stateRepository) key(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}

func (s *stateRepository) EnableChat(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chatMode[userID] = struct{}{}
}

func (s *stateRepository) ChatEnabled(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.chatMode[userID]
	return ok
}

func (s *stateRepository) ChatUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.chatMode)
}

// SetPending replaces whatever input the user was previously asked for.
func (s *stateRepository) SetPending(userID int64, p domain.Pending) error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if err := s.pending.Set(s.key(userID), []byte(p.Kind), int(s.ttl.Seconds())); err != nil {
		return fmt.Errorf("storing pending state: %w", err)
	}

	now := s.now()
	for id, payload := range s.payloads {
		if payload.expired(now) {
			delete(s.payloads, id)
		}
	}

	if p.Payload == "" {
		delete(s.payloads, userID)
		return nil
	}

	payload := pendingPayload{text: p.Payload}
	if s.ttl > 0 {
		payload.expires = now.Add(s.ttl)
	}
	s.payloads[userID] = payload
	return nil
}

// Pending returns the outstanding request without consuming it.
func (s *stateRepository) Pending(userID int64) (domain.Pending, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	return s.pendingLocked(userID)
}

func (s *stateRepository) pendingLocked(userID int64) (domain.Pending, bool) {
	kind, err := s.pending.Get(s.key(userID))
	if err != nil {
		return domain.Pending{}, false
	}

	p := domain.Pending{Kind: domain.PendingKind(kind)}
	if payload, ok := s.payloads[userID]; ok && !payload.expired(s.now()) {
		p.Payload = payload.text
	}
	return p, true
}

// TakePending returns the outstanding request of the given kind and clears it.
// Two concurrent messages can never both take the same request.
func (s *stateRepository) TakePending(userID int64, kind domain.PendingKind) (domain.Pending, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	p, ok := s.pendingLocked(userID)
	if !ok || p.Kind != kind {
		return domain.Pending{}, false
	}

	s.clearLocked(userID)
	return p, true
}

func (s *stateRepository) ClearPending(userID int64) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.clearLocked(userID)
}

func (s *stateRepository) clearLocked(userID int64) {
	s.pending.Del(s.key(userID))
	delete(s.payloads, userID)
}
