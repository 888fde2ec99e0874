package prefsync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
)

// Update is what subscribers receive after a committed write.
type Update struct {
	UserKey  string
	Snapshot preferences.Snapshot
	Origin   preferences.Origin
	// Quiet asks subscribers to apply the update without re-emitting it.
	Quiet bool
}

// Callback applies one update. Errors and panics are isolated per subscriber.
// A callback that writes back through Store.Write must pass the ctx it was
// given; Subscription.Write works with any ctx.
type Callback func(ctx context.Context, update Update) error

// Subscription is a registered subscriber.
type Subscription struct {
	id         string
	name       string
	callback   Callback
	guard      *Guard
	removed    atomic.Bool
	dispatcher *Dispatcher
	store      *Store
	// pass is the broadcast pass currently delivering to this subscriber.
	active atomic.Pointer[pass]
}

// Getters
func (s *Subscription) ID() string    { return s.id }
func (s *Subscription) Name() string  { return s.name }
func (s *Subscription) Guard() *Guard { return s.guard }

// Unsubscribe removes the subscriber. Safe to call from inside its own callback.
func (s *Subscription) Unsubscribe() {
	if s.dispatcher != nil {
		s.dispatcher.Unregister(s.id)
	}
}

// Write issues a write on behalf of this subscriber. While the subscriber's
// guard is active the write is suppressed. Called during a delivery, the
// write joins the running broadcast pass even when ctx is not the callback's.
func (s *Subscription) Write(
	ctx context.Context,
	origin preferences.Origin,
	partial preferences.Partial,
	baseVersion uint64,
) (preferences.Snapshot, error) {
	if s.store == nil {
		return preferences.Snapshot{}, fmt.Errorf("subscription %s is not bound to a store", s.name)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = withGuard(ctx, s.guard)
	if p := s.active.Load(); p != nil && passFrom(ctx, s.store) == nil {
		ctx = withPass(ctx, p)
	}
	return s.store.Write(ctx, origin, partial, baseVersion)
}

// DispatchStats counts deliveries since the dispatcher was created.
type DispatchStats struct {
	Delivered uint64
	Failed    uint64
	Panicked  uint64
	Skipped   uint64
}

// Dispatcher fans updates out to subscribers synchronously, in registration order.
type Dispatcher struct {
	mu   sync.RWMutex
	subs []*Subscription

	logger        *zap.Logger
	reporter      preferences.ErrorReporter
	slowThreshold time.Duration

	delivered atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	skipped   atomic.Uint64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDispatcherReporter sets where subscriber failures are reported.
func WithDispatcherReporter(reporter preferences.ErrorReporter) DispatcherOption {
	return func(d *Dispatcher) {
		if reporter != nil {
			d.reporter = reporter
		}
	}
}

// WithSlowThreshold logs callbacks that take longer than threshold.
func WithSlowThreshold(threshold time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.slowThreshold = threshold
	}
}

// NewDispatcher creates a dispatcher with no subscribers.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger:        zap.NewNop(),
		reporter:      preferences.NopReporter,
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register appends a subscriber. Delivery order is registration order.
func (d *Dispatcher) Register(name string, callback Callback) *Subscription {
	sub := &Subscription{
		id:         uuid.NewString(),
		name:       name,
		callback:   callback,
		guard:      &Guard{},
		dispatcher: d,
	}

	d.mu.Lock()
	d.subs = append(d.subs, sub)
	d.mu.Unlock()

	d.logger.Debug("Subscriber registered", zap.String("name", name), zap.String("id", sub.id))
	return sub
}

// Unregister removes a subscriber by id. An in-flight Notify skips it.
func (d *Dispatcher) Unregister(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, sub := range d.subs {
		if sub.id == id {
			sub.removed.Store(true)
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered subscribers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Stats returns delivery counters
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Panicked:  d.panicked.Load(),
		Skipped:   d.skipped.Load(),
	}
}

// Notify delivers update to every subscriber registered when the call began,
// skipping those unregistered since. It never returns subscriber errors.
func (d *Dispatcher) Notify(ctx context.Context, update Update) {
	d.mu.RLock()
	subs := make([]*Subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, sub := range subs {
		if sub.removed.Load() {
			d.skipped.Add(1)
			continue
		}
		d.deliver(ctx, sub, update)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, update Update) {
	if update.Origin.Guarded() {
		release := sub.guard.Enter()
		defer release()
	}
	if sub.store != nil {
		if p := passFrom(ctx, sub.store); p != nil {
			sub.active.Store(p)
			defer sub.active.Store(nil)
		}
	}

	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); d.slowThreshold > 0 && elapsed > d.slowThreshold {
			d.logger.Warn("Slow preference subscriber",
				zap.String("subscriber", sub.name),
				zap.Duration("elapsed", elapsed),
				zap.Uint64("version", update.Snapshot.Version()))
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("Preference subscriber panicked",
				zap.String("subscriber", sub.name),
				zap.Any("panic", r))
			d.reporter.Report(preferences.ErrorKindSubscriberFailure, map[string]any{
				"subscriber": sub.name,
				"user":       update.UserKey,
				"version":    update.Snapshot.Version(),
				"panic":      fmt.Sprint(r),
			})
		}
	}()

	if err := sub.callback(withGuard(ctx, sub.guard), update); err != nil {
		d.failed.Add(1)
		d.logger.Warn("Preference subscriber failed",
			zap.String("subscriber", sub.name),
			zap.Error(err))
		d.reporter.Report(preferences.ErrorKindSubscriberFailure, map[string]any{
			"subscriber": sub.name,
			"user":       update.UserKey,
			"version":    update.Snapshot.Version(),
			"error":      err.Error(),
		})
		return
	}
	d.delivered.Add(1)
}
