// Package reporting turns engine reports into log lines and prometheus counters.
package reporting

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
)

// Reporter implements preferences.ErrorReporter and prefsync.Metrics.
type Reporter struct {
	logger *zap.Logger

	errorsTotal     *prometheus.CounterVec
	writesTotal     *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	flushesTotal    *prometheus.CounterVec
}

// New registers the preference counters on reg.
func New(logger *zap.Logger, reg prometheus.Registerer) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Reporter{
		logger: logger,
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preferences_errors_total",
			Help: "Reports sent by the preference engine, by kind",
		}, []string{"kind"}),
		writesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preferences_writes_total",
			Help: "Committed preference writes, by origin",
		}, []string{"origin"}),
		rejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preferences_rejections_total",
			Help: "Rejected preference writes, by reason",
		}, []string{"reason"}),
		flushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "preferences_flushes_total",
			Help: "Durable flushes of preference records, by result",
		}, []string{"result"}),
	}
}

// Report logs the report and counts it.
func (r *Reporter) Report(kind preferences.ErrorKind, context map[string]any) {
	r.errorsTotal.WithLabelValues(string(kind)).Inc()

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("kind", string(kind)))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, context[k]))
	}
	r.logger.Warn("Preference engine report", fields...)
}

// WriteCommitted counts a committed write.
func (r *Reporter) WriteCommitted(origin preferences.Origin) {
	r.writesTotal.WithLabelValues(origin.String()).Inc()
}

// WriteRejected counts a rejected write.
func (r *Reporter) WriteRejected(reason preferences.RejectReason) {
	r.rejectionsTotal.WithLabelValues(reason.String()).Inc()
}

// Flushed counts a durable flush attempt.
func (r *Reporter) Flushed(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.flushesTotal.WithLabelValues(result).Inc()
}
