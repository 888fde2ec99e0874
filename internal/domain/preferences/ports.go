package preferences

import "context"

// DurableStore is an opaque asynchronous key-value store.
type DurableStore interface {
	// Get returns the stored bytes; ok is false when the key is absent.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte) error
}

// ErrorKind classifies reports sent to the error-reporting collaborator.
type ErrorKind string

const (
	ErrorKindPersistenceFailure ErrorKind = "persistence_failure"
	ErrorKindReentrantWrite     ErrorKind = "reentrant_write"
	ErrorKindSubscriberFailure  ErrorKind = "subscriber_failure"
	ErrorKindReloadFailure      ErrorKind = "reload_failure"
)

// ErrorReporter receives one-way (kind, context) reports.
type ErrorReporter interface {
	Report(kind ErrorKind, context map[string]any)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(kind ErrorKind, context map[string]any)

// Report implements ErrorReporter
func (fn ReporterFunc) Report(kind ErrorKind, context map[string]any) {
	if fn != nil {
		fn(kind, context)
	}
}

// NopReporter discards every report.
var NopReporter ErrorReporter = ReporterFunc(nil)
