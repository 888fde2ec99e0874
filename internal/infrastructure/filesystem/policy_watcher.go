package filesystem

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"math-learning-bot/internal/config"
	"math-learning-bot/internal/domain/preferences"
)

// ApplyFunc installs a freshly parsed policy. Returning an error keeps the
// previous policy active.
type ApplyFunc func(config.PolicyFile) error

// PolicyWatcherStats tracks watcher activity.
type PolicyWatcherStats struct {
	Events    int
	Reloads   int
	Failures  int
	LastEvent time.Time
}

// PolicyWatcher reloads the policy file when it changes on disk. It watches
// the parent directory so editors that replace the file are picked up too.
type PolicyWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	apply    ApplyFunc
	logger   *zap.Logger
	reporter preferences.ErrorReporter

	debounce     time.Duration
	pending      bool
	pendingSince time.Time

	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
	closeOnce sync.Once
	stats     PolicyWatcherStats
}

// NewPolicyWatcher creates a watcher for path. Nothing is watched until Start.
func NewPolicyWatcher(
	path string,
	apply ApplyFunc,
	logger *zap.Logger,
	reporter preferences.ErrorReporter,
	debounce time.Duration,
) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = preferences.NopReporter
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve policy path: %w", err)
	}

	return &PolicyWatcher{
		watcher:  watcher,
		path:     abs,
		apply:    apply,
		logger:   logger.With(zap.String("policy_file", abs)),
		reporter: reporter,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Reload reads and applies the policy file now.
func (w *PolicyWatcher) Reload() error {
	pf, err := config.LoadPolicy(w.path)
	if err == nil {
		err = w.apply(pf)
	}

	w.mu.Lock()
	if err != nil {
		w.stats.Failures++
	} else {
		w.stats.Reloads++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("Policy reload failed, keeping previous policy", zap.Error(err))
		w.reporter.Report(preferences.ErrorKindReloadFailure, map[string]any{
			"policy_file": w.path,
			"error":       err.Error(),
		})
		return err
	}
	w.logger.Info("Policy reloaded", zap.Int("rules", len(pf.Rules)))
	return nil
}

// Start begins watching. It does not block.
func (w *PolicyWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}
	w.logger.Info("Watching policy file")

	go w.run(ctx)
	return nil
}

// Run starts the watcher and blocks until ctx is done.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Stop stops the watcher and waits for its loop to exit. It also releases
// a watcher that was never started.
func (w *PolicyWatcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Error("Failed to close policy watcher", zap.Error(err))
		}
	})
}

// Stats returns a copy of the watcher counters.
func (w *PolicyWatcher) Stats() PolicyWatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *PolicyWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Policy watcher error", zap.Error(err))

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *PolicyWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Events++
	w.stats.LastEvent = time.Now()
	w.pending = true
	w.pendingSince = time.Now()
}

// processPending reloads once writes have settled for the debounce window.
func (w *PolicyWatcher) processPending() {
	w.mu.Lock()
	ready := w.pending && time.Since(w.pendingSince) >= w.debounce
	if ready {
		w.pending = false
	}
	w.mu.Unlock()

	if ready {
		_ = w.Reload()
	}
}
