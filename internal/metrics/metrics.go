// =============================================================================
// Separador - Metrics
// =============================================================================
//
// Prometheus counters for filter runs, shared by the upload server and the
// batch command. Each Metrics owns its registry so tests and multiple
// servers in one process do not collide. The server exposes them on
// /metrics; the batch command can write them to a node_exporter textfile.
//
// EXPOSED SERIES:
//   separador_runs_total{source,outcome,decoder}
//   separador_rows_emitted_total{source}
//   separador_rows_dropped_total{source,reason}
//   separador_run_duration_seconds{source}
//
// =============================================================================

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ginjaninja78/separador/internal/converter"
	"github.com/ginjaninja78/separador/internal/decoder"
	"github.com/ginjaninja78/separador/internal/validation"
)

// Run outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeUnsupported = "unsupported"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry    *prometheus.Registry
	runRegistry *prometheus.Registry
	runs        *prometheus.CounterVec
	rowsEmitted *prometheus.CounterVec
	rowsDropped *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		runRegistry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "separador",
			Name:      "runs_total",
			Help:      "Filter runs by outcome and winning decoder.",
		}, []string{"source", "outcome", "decoder"}),
		rowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "separador",
			Name:      "rows_emitted_total",
			Help:      "Rows written to output workbooks.",
		}, []string{"source"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "separador",
			Name:      "rows_dropped_total",
			Help:      "Data rows left out of output workbooks.",
		}, []string{"source", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "separador",
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful filter runs.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"source"}),
	}
	m.registry.MustRegister(
		m.runs, m.rowsEmitted, m.rowsDropped, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	// Run series only: a textfile must not repeat the exporter's own go_*.
	m.runRegistry.MustRegister(m.runs, m.rowsEmitted, m.rowsDropped, m.duration)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile writes the run series to path in the text format, replacing
// the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.runRegistry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// ObserveRun records one run. report may be partial when err is not nil.
func (m *Metrics) ObserveRun(source string, report converter.Report, err error) {
	dec := report.Decoder
	if dec == "" {
		dec = "none"
	}
	m.runs.WithLabelValues(source, Outcome(err), dec).Inc()
	if err != nil {
		return
	}

	m.rowsEmitted.WithLabelValues(source).Add(float64(report.Stats.RowsEmitted))
	m.rowsDropped.WithLabelValues(source, "unparsed_period").Add(float64(report.Stats.DroppedUnparsedPeriod))
	m.rowsDropped.WithLabelValues(source, "out_of_period").Add(float64(report.Stats.DroppedOutOfPeriod))
	m.duration.WithLabelValues(source).Observe(report.Duration.Seconds())
}

// Outcome classifies a run error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case validation.IsValidationError(err):
		return OutcomeInvalid
	case errors.Is(err, decoder.ErrUnsupportedFormat):
		return OutcomeUnsupported
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
