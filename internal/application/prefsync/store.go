package prefsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/infrastructure/cache"
)

// UserKey is the durable key of a user's preference record.
func UserKey(userID int64) string {
	return "preferences/" + strconv.FormatInt(userID, 10)
}

// ParseUserKey returns the user id encoded in a key built by UserKey.
func ParseUserKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, "preferences/")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Store holds the canonical snapshot of one user's preferences.
type Store struct {
	key        string
	durable    preferences.DurableStore
	cache      *cache.Snapshots
	coalescer  *Coalescer
	dispatcher *Dispatcher
	opts       *storeOptions
	logger     *zap.Logger

	// writeMu serializes top-level writes, including their broadcast.
	writeMu sync.Mutex
	// reloadMu keeps concurrent stale reads down to one durable fetch.
	reloadMu sync.Mutex

	stateMu sync.RWMutex
	current preferences.Snapshot
}

// pass is one broadcast cycle started by a top-level write. Writes made by
// subscribers during the pass commit right away and queue their broadcast.
type pass struct {
	store *Store

	mu    sync.Mutex
	open  bool
	queue []Update
	depth int
}

// passKey is per store so a subscriber of one user's store can write to
// another user's store without being mistaken for a nested write.
type passKey struct{ store *Store }

func withPass(ctx context.Context, p *pass) context.Context {
	return context.WithValue(ctx, passKey{store: p.store}, p)
}

func passFrom(ctx context.Context, s *Store) *pass {
	p, _ := ctx.Value(passKey{store: s}).(*pass)
	return p
}

// Open loads the user's record from the durable store (defaults when absent)
// and primes the cache.
func Open(ctx context.Context, key string, durable preferences.DurableStore, opts ...Option) (*Store, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = cache.NewSnapshots(cache.WithClock(o.now))
	}

	loaded := preferences.Defaults()
	data, ok, err := durable.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences for %s: %w", key, err)
	}
	if ok {
		_, loaded, err = preferences.DecodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load preferences for %s: %w", key, err)
		}
	}

	// a cached copy newer than the durable record is stale from an earlier run
	if entry, ok := o.cache.Peek(key); ok && entry.Value.Version() > loaded.Version() {
		o.logger.Info("Discarding cached preferences newer than durable record",
			zap.String("key", key),
			zap.Uint64("cached_version", entry.Value.Version()),
			zap.Uint64("loaded_version", loaded.Version()))
		o.cache.Invalidate(key)
	}
	o.cache.Put(key, loaded)

	logger := o.logger.With(zap.String("key", key))
	s := &Store{
		key:     key,
		durable: durable,
		cache:   o.cache,
		opts:    o,
		logger:  logger,
		current: loaded,
		dispatcher: NewDispatcher(
			WithDispatcherLogger(logger),
			WithDispatcherReporter(o.reporter),
		),
	}
	s.coalescer = newCoalescer(key, durable, o)
	return s, nil
}

// Key returns the durable key of this store.
func (s *Store) Key() string { return s.key }

// Current returns the in-memory canonical snapshot without touching the cache.
func (s *Store) Current() preferences.Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current
}

// Coalescer exposes the persistence coalescer, mainly for inspection.
func (s *Store) Coalescer() *Coalescer { return s.coalescer }

// Dispatcher exposes the broadcast dispatcher.
func (s *Store) Dispatcher() *Dispatcher { return s.dispatcher }

// Subscribe registers a subscriber bound to this store.
func (s *Store) Subscribe(name string, callback Callback) *Subscription {
	sub := s.dispatcher.Register(name, callback)
	sub.store = s
	return sub
}

// Read returns the freshest known snapshot. When the cache entry is stale the
// durable record is fetched first; a record at least as new as the in-memory
// snapshot is adopted, an older one is discarded. On reload failure the
// in-memory snapshot is returned together with the error.
func (s *Store) Read(ctx context.Context) (preferences.Snapshot, error) {
	if _, ok := s.cache.Get(s.key); ok {
		return s.Current(), nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	// another reader may have refreshed while we waited
	if _, ok := s.cache.Get(s.key); ok {
		return s.Current(), nil
	}

	data, ok, err := s.durable.Get(ctx, s.key)
	if err == nil && ok {
		var loaded preferences.Snapshot
		_, loaded, err = preferences.DecodeRecord(data)
		if err == nil {
			s.adopt(loaded)
		}
	}
	if err != nil {
		s.logger.Warn("Failed to reload preferences", zap.Error(err))
		s.opts.reporter.Report(preferences.ErrorKindReloadFailure, map[string]any{
			"key":   s.key,
			"error": err.Error(),
		})
		return s.Current(), fmt.Errorf("failed to reload preferences: %w", err)
	}

	current := s.Current()
	s.cache.Put(s.key, current)
	return current, nil
}

func (s *Store) adopt(loaded preferences.Snapshot) {
	s.stateMu.Lock()
	if loaded.Version() < s.current.Version() {
		s.logger.Debug("Discarding durable record older than memory",
			zap.Uint64("loaded_version", loaded.Version()),
			zap.Uint64("current_version", s.current.Version()))
		s.stateMu.Unlock()
		return
	}
	s.current = loaded
	s.stateMu.Unlock()

	// older pending writes must not overwrite the adopted record
	s.coalescer.Supersede(loaded.Version())
}

// Write merges partial into the canonical snapshot.
//
// Automatic adjustments lose every protected field; if nothing is left the
// write is rejected with AllFieldsProtected. A stale baseVersion is not an
// error: the partial is merged onto the current snapshot, last write wins per
// field. A write that changes no field value returns the current snapshot
// untouched: the version is not bumped and nothing is broadcast or persisted,
// so callers must not expect version+1 from every successful Write.
// Otherwise the new snapshot is cached, scheduled for persistence (except for
// ExternalSync) and delivered to every subscriber before Write returns.
//
// Writes issued from a subscriber whose guard is active are rejected with
// ReentrantWriteSuppressed. A subscriber writing back from its callback must
// pass the callback's ctx (or use Subscription.Write); a fresh ctx would wait
// on the write lock its own broadcast holds.
func (s *Store) Write(
	ctx context.Context,
	origin preferences.Origin,
	partial preferences.Partial,
	baseVersion uint64,
) (preferences.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !origin.Valid() {
		return preferences.Snapshot{}, preferences.ErrInvalidOrigin
	}
	if err := preferences.Validate(partial); err != nil {
		return preferences.Snapshot{}, err
	}

	if guardFrom(ctx).Active() {
		return preferences.Snapshot{}, s.suppress(origin, partial, "guard active")
	}

	if origin == preferences.AutomaticAdjustment {
		allowed, stripped := preferences.StripProtected(s.opts.protection, partial)
		if len(allowed) == 0 {
			s.opts.metrics.WriteRejected(preferences.AllFieldsProtected)
			s.logger.Debug("Automatic adjustment rejected",
				zap.Strings("fields", stripped))
			return preferences.Snapshot{}, preferences.Rejected(preferences.AllFieldsProtected, stripped...)
		}
		if len(stripped) > 0 {
			s.logger.Info("Protected fields stripped from automatic adjustment",
				zap.Strings("stripped", stripped),
				zap.Strings("kept", allowed.Names()))
		}
		partial = allowed
	}

	if p := passFrom(ctx, s); p != nil {
		if snapshot, handled, err := s.writeNested(p, origin, partial, baseVersion); handled {
			return snapshot, err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snapshot, update, changed := s.commit(origin, partial, baseVersion)
	if !changed {
		return snapshot, nil
	}

	p := &pass{store: s, open: true, queue: []Update{update}}
	s.drain(ctx, p)
	return snapshot, nil
}

// writeNested commits a write made from inside a broadcast pass. handled is
// false when the pass already closed and the caller must take the top-level path.
func (s *Store) writeNested(
	p *pass,
	origin preferences.Origin,
	partial preferences.Partial,
	baseVersion uint64,
) (preferences.Snapshot, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return preferences.Snapshot{}, false, nil
	}
	if p.depth >= s.opts.maxCascade {
		return preferences.Snapshot{}, true, s.suppress(origin, partial, "cascade limit")
	}

	snapshot, update, changed := s.commit(origin, partial, baseVersion)
	if changed {
		p.depth++
		p.queue = append(p.queue, update)
	}
	return snapshot, true, nil
}

// drain delivers queued updates in commit order until the pass is empty.
func (s *Store) drain(ctx context.Context, p *pass) {
	dctx := withPass(ctx, p)
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.open = false
			p.mu.Unlock()
			return
		}
		update := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		s.dispatcher.Notify(dctx, update)
	}
}

// commit applies partial to the canonical snapshot. Callers serialize commits
// through writeMu or an open pass.
func (s *Store) commit(
	origin preferences.Origin,
	partial preferences.Partial,
	baseVersion uint64,
) (preferences.Snapshot, Update, bool) {
	s.stateMu.Lock()
	current := s.current
	if baseVersion != current.Version() {
		s.logger.Debug("Merging write onto newer snapshot",
			zap.Uint64("base_version", baseVersion),
			zap.Uint64("current_version", current.Version()),
			zap.Stringer("origin", origin))
	}

	changes := current.Changes(partial)
	if len(changes) == 0 {
		s.stateMu.Unlock()
		return current, Update{}, false
	}

	next := current.Merge(changes, s.opts.now())
	s.current = next
	s.stateMu.Unlock()

	s.cache.Put(s.key, next)
	if origin.Persisted() {
		s.coalescer.Schedule(next, changes)
	}
	s.opts.metrics.WriteCommitted(origin)

	s.logger.Debug("Preferences committed",
		zap.Uint64("version", next.Version()),
		zap.Stringer("origin", origin),
		zap.Strings("fields", changes.Names()))

	return next, Update{
		UserKey:  s.key,
		Snapshot: next,
		Origin:   origin,
		Quiet:    origin.Quiet(),
	}, true
}

func (s *Store) suppress(origin preferences.Origin, partial preferences.Partial, why string) error {
	s.opts.metrics.WriteRejected(preferences.ReentrantWriteSuppressed)
	s.logger.Debug("Reentrant preference write suppressed",
		zap.String("reason", why),
		zap.Stringer("origin", origin),
		zap.Strings("fields", partial.Names()))
	s.opts.reporter.Report(preferences.ErrorKindReentrantWrite, map[string]any{
		"key":    s.key,
		"origin": origin.String(),
		"fields": partial.Names(),
		"reason": why,
	})
	return preferences.Rejected(preferences.ReentrantWriteSuppressed, partial.Names()...)
}

// Flush persists pending changes immediately.
func (s *Store) Flush(ctx context.Context) error {
	return s.coalescer.Flush(ctx)
}

// Close flushes pending changes and stops background timers.
func (s *Store) Close(ctx context.Context) error {
	return s.coalescer.Close(ctx)
}
