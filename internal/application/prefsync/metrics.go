package prefsync

import "math-learning-bot/internal/domain/preferences"

// Metrics receives counters from the engine. Implementations must be cheap and non-blocking.
type Metrics interface {
	WriteCommitted(origin preferences.Origin)
	WriteRejected(reason preferences.RejectReason)
	Flushed(err error)
}

type nopMetrics struct{}

func (nopMetrics) WriteCommitted(preferences.Origin)     {}
func (nopMetrics) WriteRejected(preferences.RejectReason) {}
func (nopMetrics) Flushed(error)                          {}
