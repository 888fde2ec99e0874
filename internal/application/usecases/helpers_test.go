package usecases

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/infrastructure/persistence/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHub(t *testing.T, kv *memory.KV, opts ...prefsync.Option) *prefsync.Hub {
	t.Helper()
	hub := prefsync.NewHub(kv, nil, opts...)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })
	return hub
}
