package prefsync

import (
	"time"

	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/infrastructure/cache"
)

// DefaultMaxCascade bounds how many writes subscribers may chain off one top-level write.
const DefaultMaxCascade = 16

type storeOptions struct {
	logger      *zap.Logger
	reporter    preferences.ErrorReporter
	metrics     Metrics
	cache       *cache.Snapshots
	protection  preferences.ProtectionPolicy
	now         func() time.Time
	debounce    time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxCascade  int
}

func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		logger:      zap.NewNop(),
		reporter:    preferences.NopReporter,
		metrics:     nopMetrics{},
		protection:  preferences.DefaultProtectedFields(),
		now:         time.Now,
		debounce:    DefaultDebounce,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
		maxCascade:  DefaultMaxCascade,
	}
}

// Option configures a Store (and, through a Hub, every store it opens).
type Option func(*storeOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithReporter(reporter preferences.ErrorReporter) Option {
	return func(o *storeOptions) {
		if reporter != nil {
			o.reporter = reporter
		}
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(o *storeOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithCache shares a snapshot cache between stores.
func WithCache(c *cache.Snapshots) Option {
	return func(o *storeOptions) {
		o.cache = c
	}
}

// WithProtection installs the protected-field policy consulted on every automatic write.
func WithProtection(policy preferences.ProtectionPolicy) Option {
	return func(o *storeOptions) {
		if policy != nil {
			o.protection = policy
		}
	}
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDebounce sets the persistence debounce window.
func WithDebounce(d time.Duration) Option {
	return func(o *storeOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithBackoff sets the retry backoff bounds for failed durable writes.
func WithBackoff(base, max time.Duration) Option {
	return func(o *storeOptions) {
		if base > 0 {
			o.baseBackoff = base
		}
		if max >= base && max > 0 {
			o.maxBackoff = max
		}
	}
}

func WithMaxCascade(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxCascade = n
		}
	}
}
