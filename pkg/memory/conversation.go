package memory

import (
	"slices"
	"sync"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

const (
	// MaxTurns is how many turns a conversation keeps; older ones are evicted first.
	MaxTurns = 10
	// ContextTurns is how many of the most recent turns are sent with a new request.
	ContextTurns = 6
)

// Store keeps a short rolling window of turns per chat in process memory.
type Store struct {
	mu      sync.RWMutex
	windows map[int64][]domain.Turn
	locks   map[int64]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		windows: make(map[int64][]domain.Turn),
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Lock serializes exchanges of one chat. Hold it from reading the context until the answer is appended.
func (s *Store) Lock(chatID int64) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Append adds turns in order and evicts the oldest beyond MaxTurns.
func (s *Store) Append(chatID int64, turns ...domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[chatID], turns...)
	if over := len(window) - MaxTurns; over > 0 {
		window = slices.Clone(window[over:])
	}
	s.windows[chatID] = window
}

// Context returns a copy of up to the last ContextTurns turns.
func (s *Store) Context(chatID int64) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.windows[chatID]
	return slices.Clone(window[max(0, len(window)-ContextTurns):])
}

func (s *Store) Len(chatID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.windows[chatID])
}

func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, chatID)
}

// Chats returns the number of conversations with remembered turns.
func (s *Store) Chats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.windows)
}
