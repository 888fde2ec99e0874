package prefsync

import (
	"context"
	"sync/atomic"
)

// Guard is a per-subscriber reentrancy flag. It is active only while the
// subscriber applies one automatic or externally-synced update.
type Guard struct {
	active atomic.Bool
}

// Enter activates the guard and returns the function that clears it.
// Callers defer the release so a panicking callback still clears it.
func (g *Guard) Enter() (release func()) {
	g.active.Store(true)
	return func() { g.active.Store(false) }
}

// Active reports whether writes from the owner must be suppressed.
func (g *Guard) Active() bool {
	return g != nil && g.active.Load()
}

type guardKey struct{}

func withGuard(ctx context.Context, g *Guard) context.Context {
	return context.WithValue(ctx, guardKey{}, g)
}

func guardFrom(ctx context.Context) *Guard {
	g, _ := ctx.Value(guardKey{}).(*Guard)
	return g
}

// GuardActive reports whether ctx belongs to a subscriber that is currently
// applying a guarded update.
func GuardActive(ctx context.Context) bool {
	return guardFrom(ctx).Active()
}
