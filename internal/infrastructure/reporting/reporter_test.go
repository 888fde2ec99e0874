package reporting

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"math-learning-bot/internal/domain/preferences"
)

func TestReporter_Report(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := New(zap.New(core), prometheus.NewRegistry())

	r.Report(preferences.ErrorKindPersistenceFailure, map[string]any{
		"key":      "preferences/1",
		"attempts": 2,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("persistence_failure")))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "persistence_failure", entry.ContextMap()["kind"])
	assert.Equal(t, "preferences/1", entry.ContextMap()["key"])
}

func TestReporter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(nil, reg)

	r.WriteCommitted(preferences.UserInitiated)
	r.WriteCommitted(preferences.UserInitiated)
	r.WriteRejected(preferences.AllFieldsProtected)
	r.Flushed(nil)
	r.Flushed(errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.writesTotal.WithLabelValues(preferences.UserInitiated.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejectionsTotal.WithLabelValues("all_fields_protected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushesTotal.WithLabelValues("error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3, "errors counter has no samples yet")
}
