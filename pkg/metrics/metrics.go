// Package metrics exposes gridcored's internal counters and histograms over
// Prometheus, grounded on the pack's operator_metrics.go convention of a
// single struct of pre-registered collectors plus a promhttp listener.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector gridcored reports.
type Metrics struct {
	ResamplePassesTotal   *prometheus.CounterVec
	SourceErrorsTotal     *prometheus.CounterVec
	BufferResizesTotal    *prometheus.CounterVec
	MatryoshkaCalcsTotal  prometheus.Counter
	ResampleDriftSeconds  prometheus.Histogram
	MatryoshkaCalcSeconds prometheus.Histogram

	registry *prometheus.Registry
	server   *http.Server
}

// New creates and registers every collector against a fresh registry, so
// multiple Metrics instances (as in tests) never collide on the default
// global registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ResamplePassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_resample_passes_total",
			Help: "Resampling passes completed, partitioned by outcome.",
		}, []string{"outcome"}),
		SourceErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_source_errors_total",
			Help: "Per-source errors encountered while resampling, by source name.",
		}, []string{"source"}),
		BufferResizesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_buffer_resizes_total",
			Help: "Ring buffer resizes, partitioned by direction.",
		}, []string{"direction"}),
		MatryoshkaCalcsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridcore_matryoshka_calculations_total",
			Help: "Total CalculateTargetPower invocations.",
		}),
		ResampleDriftSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridcore_resample_drift_seconds",
			Help:    "Wall-clock drift between a scheduled resample tick and its actual wakeup.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		MatryoshkaCalcSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridcore_matryoshka_calculation_seconds",
			Help:    "CalculateTargetPower wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.ResamplePassesTotal,
		m.SourceErrorsTotal,
		m.BufferResizesTotal,
		m.MatryoshkaCalcsTotal,
		m.ResampleDriftSeconds,
		m.MatryoshkaCalcSeconds,
	)
	return m
}

// ObserveOperation implements logx.MetricSink, feeding pkg/logx's
// per-operation tracking into the matching Prometheus collector. Unknown
// operation names are dropped rather than given an unbounded label set.
func (m *Metrics) ObserveOperation(name string, duration time.Duration, failed bool) {
	switch name {
	case "matryoshka_calculate_target_power":
		m.MatryoshkaCalcsTotal.Inc()
		m.MatryoshkaCalcSeconds.Observe(duration.Seconds())
	}
}

// Serve starts the Prometheus HTTP listener on port, blocking until ctx is
// canceled or the server fails. Mirrors the pack's promhttp.Handler()-on-
// "/metrics" wiring.
func (m *Metrics) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- m.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
