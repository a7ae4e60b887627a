package inventory

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/freshmate/internal/grocery"
	"github.com/dukerupert/freshmate/internal/model"
)

// Backend persists the whole item collection. Save replaces everything that
// was stored before; implementations must not leave a half-written collection.
type Backend interface {
	Load(ctx context.Context) ([]model.Item, error)
	Save(ctx context.Context, items []model.Item) error
}

// Store is the in-memory ordered item collection of one process, loaded from
// and rewritten to a Backend. It is not safe for concurrent use; Service
// serializes access.
type Store struct {
	backend Backend
	items   []model.Item
	dirty   bool

	retries   uint64
	retryBase time.Duration
	logger    *slog.Logger
}

type StoreOption func(*Store)

// WithSaveRetry sets how many times a failed save is retried and the base
// delay of the exponential backoff between attempts.
func WithSaveRetry(retries uint64, base time.Duration) StoreOption {
	return func(s *Store) {
		s.retries = retries
		s.retryBase = base
	}
}

func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend:   backend,
		items:     []model.Item{},
		retries:   3,
		retryBase: 50 * time.Millisecond,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load refreshes the collection from the backend. When an earlier save
// failed, the unsaved in-memory state wins: Load retries the save and keeps
// the in-memory items whether or not that succeeds, so flag updates are never
// lost to a reload.
func (s *Store) Load(ctx context.Context) ([]model.Item, error) {
	if s.dirty {
		if err := s.Save(ctx); err != nil {
			s.logger.Warn("using unsaved inventory from memory", "error", err)
		}
		return s.Items(), nil
	}

	items, err := s.backend.Load(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	if items == nil {
		items = []model.Item{}
	}
	s.items = items
	return s.Items(), nil
}

// Save writes the collection to the backend, retrying with backoff. On
// failure the collection stays in memory and is marked unsaved.
func (s *Store) Save(ctx context.Context) error {
	b := retry.WithMaxRetries(s.retries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.backend.Save(ctx, s.items); err != nil {
			s.logger.Debug("save attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.dirty = true
		return &PersistenceError{Op: "save", Err: err}
	}
	s.dirty = false
	return nil
}

// Dirty reports whether the in-memory collection has changes that are not
// yet persisted.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Add validates and appends an item. Notification flags always start false.
func (s *Store) Add(item model.Item) error {
	item.Owner = strings.TrimSpace(item.Owner)
	item.Name = strings.TrimSpace(item.Name)

	if item.Owner == "" {
		return &ValidationError{Field: "owner", Reason: "is required"}
	}
	if item.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if math.IsNaN(item.Quantity) || math.IsInf(item.Quantity, 0) || item.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be a positive number"}
	}
	unit, err := model.ParseUnit(string(item.Unit))
	if err != nil {
		return &ValidationError{Field: "unit", Reason: err.Error()}
	}
	if item.Expiry.IsZero() {
		return &ValidationError{Field: "expiry", Reason: "is required"}
	}

	item.Unit = unit
	item.Expiry = model.Day(item.Expiry)
	if item.Category == "" {
		item.Category = grocery.Categorize(item.Name)
	}
	item.ReminderSent = false
	item.ExpiredSent = false

	s.items = append(s.items, item)
	s.dirty = true
	return nil
}

// Remove deletes every item matching owner and name exactly and returns how
// many were removed.
func (s *Store) Remove(owner, name string) int {
	kept := s.items[:0]
	removed := 0
	for _, it := range s.items {
		if it.Owner == owner && it.Name == name {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	if removed > 0 {
		s.dirty = true
	}
	return removed
}

// ItemsFor returns the owner's items in collection order.
func (s *Store) ItemsFor(owner string) []model.Item {
	out := []model.Item{}
	for _, it := range s.items {
		if it.Owner == owner {
			out = append(out, it)
		}
	}
	return out
}

// Items returns a copy of the whole collection.
func (s *Store) Items() []model.Item {
	out := make([]model.Item, len(s.items))
	copy(out, s.items)
	return out
}
