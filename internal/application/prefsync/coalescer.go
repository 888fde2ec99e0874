package prefsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
)

// Persistence defaults
const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 30 * time.Second
)

// PendingWrite is the accumulated diff waiting for the next flush.
type PendingWrite struct {
	Fields   preferences.Partial
	Snapshot preferences.Snapshot
	Attempts int
}

// Coalescer debounces writes to the durable store. Many schedules inside one
// debounce window become a single Set of the latest snapshot record.
type Coalescer struct {
	key     string
	durable preferences.DurableStore

	logger      *zap.Logger
	reporter    preferences.ErrorReporter
	metrics     Metrics
	debounce time.Duration

	// flushMu serializes calls into the durable store.
	flushMu sync.Mutex

	mu         sync.Mutex
	pending    preferences.Partial
	latest     preferences.Snapshot
	hasPending bool
	generation uint64
	attempts   int
	retry      *backoff.ExponentialBackOff
	timer      *time.Timer
	closed     bool
}

func newCoalescer(key string, durable preferences.DurableStore, o *storeOptions) *Coalescer {
	return &Coalescer{
		key:      key,
		durable:  durable,
		logger:   o.logger,
		reporter: o.reporter,
		metrics:  o.metrics,
		debounce: o.debounce,
		retry:    newRetryBackoff(o.baseBackoff, o.maxBackoff),
		pending:  make(preferences.Partial),
	}
}

// newRetryBackoff doubles from base up to max and never gives up; the pending
// write stays until it lands.
func newRetryBackoff(base, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Schedule merges diff into the pending write and restarts the debounce timer.
func (c *Coalescer) Schedule(snapshot preferences.Snapshot, diff preferences.Partial) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Warn("Preference write scheduled after close", zap.String("key", c.key))
		return
	}

	c.pending.Apply(diff)
	if !c.hasPending || snapshot.Version() >= c.latest.Version() {
		c.latest = snapshot
	}
	c.hasPending = true
	c.generation++
	c.arm(c.debounce)
}

// Pending returns a copy of the accumulated write.
func (c *Coalescer) Pending() PendingWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PendingWrite{
		Fields:   c.pending.Clone(),
		Snapshot: c.latest,
		Attempts: c.attempts,
	}
}

// HasPending reports whether anything is waiting to be written.
func (c *Coalescer) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasPending
}

// Flush writes the pending record now. On failure the pending write is kept
// and a backoff retry is armed.
func (c *Coalescer) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.stopTimer()
	c.mu.Unlock()

	err := c.flush(ctx)
	if err != nil {
		c.mu.Lock()
		c.armRetry()
		c.mu.Unlock()
	}
	return err
}

// Supersede drops a pending write older than version. It is called when a
// newer record was adopted from the durable store, which a retry of the older
// snapshot would otherwise overwrite.
func (c *Coalescer) Supersede(version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasPending || c.latest.Version() >= version {
		return false
	}
	c.logger.Info("Dropping pending preference write superseded by durable record",
		zap.String("key", c.key),
		zap.Uint64("pending_version", c.latest.Version()),
		zap.Uint64("durable_version", version),
		zap.Strings("fields", c.pending.Names()))

	c.stopTimer()
	c.pending = make(preferences.Partial)
	c.latest = preferences.Snapshot{}
	c.hasPending = false
	c.attempts = 0
	c.retry.Reset()
	c.generation++
	return true
}

// Close stops the timers and flushes whatever is pending once more.
func (c *Coalescer) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.stopTimer()
	c.mu.Unlock()

	return c.flush(ctx)
}

// arm restarts the timer; callers hold c.mu.
func (c *Coalescer) arm(delay time.Duration) {
	c.stopTimer()
	c.timer = time.AfterFunc(delay, c.fire)
}

func (c *Coalescer) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// armRetry schedules a retry with bounded exponential backoff; callers hold c.mu.
func (c *Coalescer) armRetry() {
	if c.closed || !c.hasPending || c.attempts == 0 {
		return
	}
	c.arm(c.retry.NextBackOff())
}

func (c *Coalescer) fire() {
	if err := c.flush(context.Background()); err != nil {
		c.mu.Lock()
		c.armRetry()
		c.mu.Unlock()
	}
}

func (c *Coalescer) flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if !c.hasPending {
		c.mu.Unlock()
		return nil
	}
	snapshot := c.latest
	flushed := c.pending.Clone()
	generation := c.generation
	c.mu.Unlock()

	err := c.write(ctx, snapshot)
	c.metrics.Flushed(err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.attempts++
		c.logger.Warn("Failed to persist preferences",
			zap.String("key", c.key),
			zap.Int("attempt", c.attempts),
			zap.Error(err))
		c.reporter.Report(preferences.ErrorKindPersistenceFailure, map[string]any{
			"key":      c.key,
			"version":  snapshot.Version(),
			"fields":   flushed.Names(),
			"attempts": c.attempts,
			"error":    err.Error(),
		})
		return err
	}

	c.attempts = 0
	c.retry.Reset()
	if generation == c.generation {
		c.pending = make(preferences.Partial)
		c.hasPending = false
	} else {
		// schedules arrived while writing; drop only what is now durable
		for f, v := range flushed {
			if current, ok := c.pending[f]; ok && current.Equal(v) {
				delete(c.pending, f)
			}
		}
	}

	c.logger.Debug("Preferences persisted",
		zap.String("key", c.key),
		zap.Uint64("version", snapshot.Version()),
		zap.Strings("fields", flushed.Names()))
	return nil
}

func (c *Coalescer) write(ctx context.Context, snapshot preferences.Snapshot) error {
	data, err := preferences.EncodeRecord(c.key, snapshot)
	if err != nil {
		return err
	}
	if err := c.durable.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("failed to write preference record: %w", err)
	}
	return nil
}
