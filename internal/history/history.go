// Package history maintains a per-user, bounded, deduplicated log of received
// notifications with read-state tracking, independent of the platform's own
// notification center. The persisted list is the only shared mutable state in
// the notification core and is owned exclusively by Store; other components
// mutate it through Store operations only.
package history

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/metrics"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

// Record is one history entry. Records move one way from unread to read and
// are only ever removed by eviction at the retention cap or a bulk clear.
type Record struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Category   notify.Category `json:"category"`
	Data       map[string]any  `json:"data,omitempty"`
	ReceivedAt int64           `json:"received_at"`
	Read       bool            `json:"read"`
}

// Incoming is a notification as handed to the store by the delivery callback.
type Incoming struct {
	ID    string
	Title string
	Body  string
	Data  map[string]any
}

// Storage persists per-user record lists. A missing list loads as (nil, nil).
type Storage interface {
	Load(ctx context.Context, userID string) ([]Record, error)
	Save(ctx context.Context, userID string, records []Record) error
	Clear(ctx context.Context, userID string) error
}

// Options tunes retention. Both values are product-tunable.
type Options struct {
	Limit       int           // maximum records kept per user
	DedupWindow time.Duration // window for collapsing chat messages per conversation
}

// DefaultOptions returns the retention settings used in production.
func DefaultOptions() Options {
	return Options{Limit: 100, DedupWindow: 60 * time.Second}
}

// Store serializes all history mutations per user and keeps a write-through
// in-memory copy of each user's list. When the backing storage fails, the
// in-memory copy carries the user's view until a later write succeeds; store
// operations never surface persistence errors to callers.
type Store struct {
	storage Storage
	opts    Options
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string][]Record
	dirty map[string]bool // cache is ahead of storage after a failed write
}

// NewStore creates a history store over the given storage backend.
func NewStore(storage Storage, opts Options, logger *zap.Logger) *Store {
	if opts.Limit <= 0 {
		opts.Limit = DefaultOptions().Limit
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultOptions().DedupWindow
	}
	return &Store{
		storage: storage,
		opts:    opts,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
		cache:   make(map[string][]Record),
		dirty:   make(map[string]bool),
	}
}

// Load returns the user's history, most recent first. A user with no stored
// history gets an empty list. Storage read failures fall back to the last
// in-memory view.
func (s *Store) Load(ctx context.Context, userID string) []Record {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.load(ctx, userID)
}

// Add records an inbound notification. Chat notifications that arrive within
// the dedup window of an existing record for the same conversation update
// that record's body and timestamp in place instead of appending, so a rapid
// exchange in one conversation occupies a single history slot. All other
// notifications are prepended, with the oldest records evicted beyond the
// retention cap. The resulting record is returned.
func (s *Store) Add(ctx context.Context, userID string, in Incoming) Record {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UnixMilli()
	rec := Record{
		ID:         in.ID,
		Title:      in.Title,
		Body:       in.Body,
		Category:   notify.ParseCategory(notify.StringField(in.Data, "category")),
		Data:       in.Data,
		ReceivedAt: now,
	}

	records := s.load(ctx, userID)

	if rec.Category == notify.CategoryChat {
		if i := s.dedupIndex(records, in.Data, now); i >= 0 {
			records[i].Body = in.Body
			records[i].ReceivedAt = now
			s.persist(ctx, userID, records)
			metrics.RecordHistoryDeduped()
			s.logger.Debug("chat notification collapsed into existing record",
				zap.String("user_id", userID),
				zap.String("record_id", records[i].ID))
			return records[i]
		}
	}

	records = append([]Record{rec}, records...)
	sortRecords(records)
	if len(records) > s.opts.Limit {
		evicted := len(records) - s.opts.Limit
		records = records[:s.opts.Limit]
		metrics.RecordHistoryEvicted(evicted)
		s.logger.Debug("history at retention cap, oldest records evicted",
			zap.String("user_id", userID),
			zap.Int("evicted", evicted))
	}
	s.persist(ctx, userID, records)
	return rec
}

// MarkRead marks the record read. It reports whether the record exists and is
// a no-op when the record is already read or unknown.
func (s *Store) MarkRead(ctx context.Context, userID, recordID string) bool {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	records := s.load(ctx, userID)
	for i := range records {
		if records[i].ID != recordID {
			continue
		}
		if !records[i].Read {
			records[i].Read = true
			s.persist(ctx, userID, records)
		}
		return true
	}
	return false
}

// ClearAll deletes the user's entire history.
func (s *Store) ClearAll(ctx context.Context, userID string) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	delete(s.cache, userID)
	delete(s.dirty, userID)
	s.mu.Unlock()

	if err := s.storage.Clear(ctx, userID); err != nil {
		s.logger.Error("clearing notification history failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// dedupIndex finds an existing chat record for the same conversation received
// within the dedup window, or -1.
func (s *Store) dedupIndex(records []Record, data map[string]any, now int64) int {
	conversationID := notify.StringField(data, "conversationId")
	if conversationID == "" {
		return -1
	}
	window := s.opts.DedupWindow.Milliseconds()
	for i := range records {
		if records[i].Category != notify.CategoryChat {
			continue
		}
		if notify.StringField(records[i].Data, "conversationId") != conversationID {
			continue
		}
		if now-records[i].ReceivedAt >= window {
			continue
		}
		return i
	}
	return -1
}

// load reads the user's list under the user lock. When the cache is ahead of
// storage (an earlier write failed) the cache wins; otherwise storage is read
// and mirrored into the cache.
func (s *Store) load(ctx context.Context, userID string) []Record {
	s.mu.Lock()
	if s.dirty[userID] {
		cached := slices.Clone(s.cache[userID])
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	records, err := s.storage.Load(ctx, userID)
	if err != nil {
		s.logger.Warn("loading notification history failed, serving cached view",
			zap.String("user_id", userID),
			zap.Error(err))
		s.mu.Lock()
		cached := slices.Clone(s.cache[userID])
		s.mu.Unlock()
		return cached
	}

	sortRecords(records)
	s.mu.Lock()
	s.cache[userID] = slices.Clone(records)
	s.mu.Unlock()
	return records
}

// persist writes through the cache first so the in-memory view survives a
// storage failure; a later successful write catches storage back up because
// every write carries the full list.
func (s *Store) persist(ctx context.Context, userID string, records []Record) {
	s.mu.Lock()
	s.cache[userID] = slices.Clone(records)
	s.mu.Unlock()

	if err := s.storage.Save(ctx, userID, records); err != nil {
		s.logger.Error("persisting notification history failed, keeping in-memory view",
			zap.String("user_id", userID),
			zap.Int("records", len(records)),
			zap.Error(err))
		s.mu.Lock()
		s.dirty[userID] = true
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.dirty, userID)
	s.mu.Unlock()
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ReceivedAt > records[j].ReceivedAt
	})
}
