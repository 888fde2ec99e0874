package prefsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
)

// Hub opens one Store per user on first use and shares subscribers across them.
type Hub struct {
	durable preferences.DurableStore
	opts    []Option
	logger  *zap.Logger

	mu     sync.Mutex
	stores map[string]*Store
	subs   []hubSubscriber
	closed bool
}

type hubSubscriber struct {
	name     string
	callback Callback
}

// NewHub creates a hub; opts are applied to every store it opens.
func NewHub(durable preferences.DurableStore, logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		durable: durable,
		opts:    append([]Option{WithLogger(logger)}, opts...),
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// For returns the store for userID, opening it if needed.
func (h *Hub) For(ctx context.Context, userID int64) (*Store, error) {
	return h.ForKey(ctx, UserKey(userID))
}

// ForKey returns the store for a durable key, opening it if needed.
func (h *Hub) ForKey(ctx context.Context, key string) (*Store, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.New("preference hub is closed")
	}
	if s, ok := h.stores[key]; ok {
		h.mu.Unlock()
		return s, nil
	}
	h.mu.Unlock()

	opened, err := Open(ctx, key, h.durable, h.opts...)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.stores[key]; ok {
		// lost the race; the fresh store never committed anything
		return s, nil
	}
	for _, sub := range h.subs {
		opened.Subscribe(sub.name, sub.callback)
	}
	h.stores[key] = opened
	h.logger.Debug("Preference store opened",
		zap.String("key", key),
		zap.Uint64("version", opened.Current().Version()))
	return opened, nil
}

// Subscribe registers callback on every open store and every store opened later.
func (h *Hub) Subscribe(name string, callback Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs = append(h.subs, hubSubscriber{name: name, callback: callback})
	for _, s := range h.stores {
		s.Subscribe(name, callback)
	}
}

// Keys returns the keys of all open stores, sorted.
func (h *Hub) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.stores))
	for k := range h.stores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush persists pending changes of every store now.
func (h *Hub) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range h.snapshotStores() {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every store. The hub refuses new stores afterwards.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	var errs []error
	for _, s := range h.snapshotStores() {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Key(), err))
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) snapshotStores() []*Store {
	h.mu.Lock()
	defer h.mu.Unlock()

	stores := make([]*Store, 0, len(h.stores))
	for _, s := range h.stores {
		stores = append(stores, s)
	}
	return stores
}
