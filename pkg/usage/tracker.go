package usage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/logger"
)

type document interface {
	Load(ctx context.Context, v any) error
	Save(ctx context.Context, v any) error
}

type premiumChecker interface {
	IsPremium(userID int64) bool
}

// Limits are the daily free quotas per action.
type Limits struct {
	Images int
	TTS    int
}

// Decision is the outcome of a TryConsume call.
type Decision struct {
	Allowed   bool
	Premium   bool
	Remaining int
	Limit     int
}

// Tracker counts free-tier usage per user and calendar day.
// Every read-modify-persist cycle runs under a single mutex and rewrites the whole table.
type Tracker struct {
	mu      sync.Mutex
	records map[int64]domain.UsageRecord

	doc     document
	premium premiumChecker
	limits  Limits
	now     func() time.Time
	loc     *time.Location
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

func WithLimits(limits Limits) Option {
	return func(t *Tracker) { t.limits = limits }
}

func NewTracker(doc document, premium premiumChecker, opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[int64]domain.UsageRecord),
		doc:     doc,
		premium: premium,
		limits: Limits{
			Images: domain.DefaultFreeImageLimit,
			TTS:    domain.DefaultFreeTTSLimit,
		},
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load reads the persisted table and keeps only today's records.
// On failure the tracker starts empty and the error is returned.
func (t *Tracker) Load(ctx context.Context) error {
	var stored map[string]domain.UsageRecord
	err := t.doc.Load(ctx, &stored)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("loading usage data: %w", err)
	}

	today := t.today()
	records := make(map[int64]domain.UsageRecord, len(stored))
	for key, rec := range stored {
		userID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			slog.WarnContext(ctx, "skipping usage record with invalid user id", "key", key)
			continue
		}
		if rec.Date != today {
			continue
		}
		rec.UserID = userID
		records[userID] = rec
	}

	t.mu.Lock()
	t.records = records
	t.mu.Unlock()

	slog.InfoContext(ctx, "usage data loaded", "today", today, "records", len(records), "discarded", len(stored)-len(records))
	return nil
}

func (t *Tracker) Limit(action domain.Action) int {
	if action == domain.ActionImage {
		return t.limits.Images
	}
	return t.limits.TTS
}

// UserData returns today's record for the user, starting a fresh one when the stored record is stale.
func (t *Tracker) UserData(ctx context.Context, userID int64) domain.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.currentLocked(ctx, userID)
}

// CanUse reports whether the user may perform the action once more today. Premium users always can.
func (t *Tracker) CanUse(ctx context.Context, userID int64, action domain.Action) bool {
	if t.premium.IsPremium(userID) {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.currentLocked(ctx, userID).Used(action) < t.Limit(action)
}

func (t *Tracker) CanUseImage(ctx context.Context, userID int64) bool {
	return t.CanUse(ctx, userID, domain.ActionImage)
}

func (t *Tracker) CanUseTTS(ctx context.Context, userID int64) bool {
	return t.CanUse(ctx, userID, domain.ActionSpeech)
}

// Use counts one action and persists immediately. It does not check the limit:
// callers pair it with CanUse, or use TryConsume instead.
func (t *Tracker) Use(ctx context.Context, userID int64, action domain.Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.currentLocked(ctx, userID)
	t.records[userID] = increment(rec, action, 1)

	return t.saveLocked(ctx)
}

func (t *Tracker) UseImage(ctx context.Context, userID int64) error {
	return t.Use(ctx, userID, domain.ActionImage)
}

func (t *Tracker) UseTTS(ctx context.Context, userID int64) error {
	return t.Use(ctx, userID, domain.ActionSpeech)
}

// TryConsume checks the quota and counts the action in one critical section.
// Premium users are allowed without being counted. A denied call leaves the state untouched.
// The returned error only reports a failed write; the decision stands regardless.
func (t *Tracker) TryConsume(ctx context.Context, userID int64, action domain.Action) (Decision, error) {
	if t.premium.IsPremium(userID) {
		return Decision{Allowed: true, Premium: true, Remaining: domain.Unlimited, Limit: domain.Unlimited}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.currentLocked(ctx, userID)
	limit := t.Limit(action)
	if rec.Used(action) >= limit {
		return Decision{Allowed: false, Remaining: 0, Limit: limit}, nil
	}

	rec = increment(rec, action, 1)
	t.records[userID] = rec

	return Decision{Allowed: true, Remaining: max(0, limit-rec.Used(action)), Limit: limit}, t.saveLocked(ctx)
}

// Refund gives back one action taken with TryConsume when the work behind it failed.
// Nothing happens for premium users, for a counter already at zero, or once the day has rolled over.
func (t *Tracker) Refund(ctx context.Context, userID int64, action domain.Action) error {
	if t.premium.IsPremium(userID) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok || rec.Date != t.today() || rec.Used(action) == 0 {
		return nil
	}
	t.records[userID] = increment(rec, action, -1)

	return t.saveLocked(ctx)
}

// Remaining returns how many actions are left today, or domain.Unlimited for premium users.
func (t *Tracker) Remaining(ctx context.Context, userID int64, action domain.Action) int {
	if t.premium.IsPremium(userID) {
		return domain.Unlimited
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return max(0, t.Limit(action)-t.currentLocked(ctx, userID).Used(action))
}

func (t *Tracker) RemainingImages(ctx context.Context, userID int64) int {
	return t.Remaining(ctx, userID, domain.ActionImage)
}

func (t *Tracker) RemainingTTS(ctx context.Context, userID int64) int {
	return t.Remaining(ctx, userID, domain.ActionSpeech)
}

// Compact drops records from previous days and persists the table if anything was dropped.
func (t *Tracker) Compact(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.today()
	stale := lo.PickBy(t.records, func(_ int64, rec domain.UsageRecord) bool {
		return rec.Date != today
	})
	if len(stale) == 0 {
		return 0, nil
	}

	for userID := range stale {
		delete(t.records, userID)
	}

	return len(stale), t.saveLocked(ctx)
}

// Peek returns today's record of the user without creating or persisting one.
func (t *Tracker) Peek(userID int64) domain.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.today()
	if rec, ok := t.records[userID]; ok && rec.Date == today {
		return rec
	}
	return domain.UsageRecord{UserID: userID, Date: today}
}

// Snapshot returns today's records ordered by user id.
func (t *Tracker) Snapshot() []domain.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.today()
	records := lo.Filter(lo.Values(t.records), func(rec domain.UsageRecord, _ int) bool {
		return rec.Date == today
	})
	slices.SortFunc(records, func(a, b domain.UsageRecord) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return records
}

func (t *Tracker) today() string {
	return t.now().In(t.loc).Format(time.DateOnly)
}

// currentLocked returns today's record, replacing a missing or stale one with zeroed counters.
// A replacement is persisted; a failed write is logged and the in-memory record kept.
func (t *Tracker) currentLocked(ctx context.Context, userID int64) domain.UsageRecord {
	today := t.today()
	rec, ok := t.records[userID]
	if ok && rec.Date == today {
		return rec
	}

	rec = domain.UsageRecord{UserID: userID, Date: today}
	t.records[userID] = rec
	_ = t.saveLocked(ctx)

	return rec
}

func (t *Tracker) saveLocked(ctx context.Context) error {
	table := make(map[string]domain.UsageRecord, len(t.records))
	for userID, rec := range t.records {
		table[strconv.FormatInt(userID, 10)] = rec
	}

	if err := t.doc.Save(ctx, table); err != nil {
		slog.ErrorContext(ctx, "saving usage data", logger.Err(err))
		return fmt.Errorf("saving usage data: %w", err)
	}
	return nil
}

func increment(rec domain.UsageRecord, action domain.Action, delta int) domain.UsageRecord {
	if action == domain.ActionImage {
		rec.ImagesUsed += delta
	} else {
		rec.TTSUsed += delta
	}
	return rec
}
