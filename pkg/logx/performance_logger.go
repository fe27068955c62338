package logx

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// sampleWindow bounds how many recent durations each tracked operation
// keeps for percentile estimation; older samples are evicted round-robin.
const sampleWindow = 128

// MetricSink receives a completed operation's duration and outcome for
// export to an external metrics system. pkg/metrics.Metrics implements
// this to feed its Prometheus histograms/counters.
type MetricSink interface {
	ObserveOperation(name string, duration time.Duration, failed bool)
}

// PerformanceLogger tracks latency, error-rate, and percentile statistics
// for named operations (resampling passes, Matryoshka recalculations),
// optionally mirroring each completed operation to a MetricSink.
type PerformanceLogger struct {
	logger       *Logger
	metrics      map[string]*PerformanceMetric
	metricsMutex sync.RWMutex

	sink               MetricSink
	slowThreshold      time.Duration
	errorRateThreshold float64
}

// PerformanceLoggerOption configures a PerformanceLogger at construction.
type PerformanceLoggerOption func(*PerformanceLogger)

// WithMetricSink mirrors every completed operation to sink in addition to
// local tracking.
func WithMetricSink(sink MetricSink) PerformanceLoggerOption {
	return func(pl *PerformanceLogger) { pl.sink = sink }
}

// WithThresholds overrides the default slow-operation and high-error-rate
// thresholds that RunSweeps, LogSlowOperations, and LogHighErrorRates use.
func WithThresholds(slow time.Duration, errorRatePercent float64) PerformanceLoggerOption {
	return func(pl *PerformanceLogger) {
		pl.slowThreshold = slow
		pl.errorRateThreshold = errorRatePercent
	}
}

// PerformanceMetric tracks performance data for a specific operation.
type PerformanceMetric struct {
	Name          string        `json:"name"`
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	MinDuration   time.Duration `json:"min_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastExecuted  time.Time     `json:"last_executed"`
	ErrorCount    int64         `json:"error_count"`
	SuccessRate   float64       `json:"success_rate"`
	ConcurrentOps int64         `json:"concurrent_ops"`
	MaxConcurrent int64         `json:"max_concurrent"`

	// samples is a ring buffer of the last sampleWindow durations, used to
	// estimate percentiles without keeping the full history.
	samples    [sampleWindow]time.Duration
	sampleHead int
	sampleLen  int
}

// PerformanceContext tracks a single in-flight operation.
type PerformanceContext struct {
	metricName string
	startTime  time.Time
	logger     *PerformanceLogger
	ctx        context.Context
}

// NewPerformanceLogger creates a new performance logger with default
// thresholds (500ms slow, 95% minimum success rate), overridable via opts.
func NewPerformanceLogger(logger *Logger, opts ...PerformanceLoggerOption) *PerformanceLogger {
	pl := &PerformanceLogger{
		logger:             logger,
		metrics:            make(map[string]*PerformanceMetric),
		slowThreshold:      500 * time.Millisecond,
		errorRateThreshold: 95.0,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// StartOperation begins tracking an operation identified by metricName,
// e.g. "resample_pass" or "matryoshka_calculate_target_power".
func (pl *PerformanceLogger) StartOperation(ctx context.Context, metricName string) *PerformanceContext {
	pl.metricsMutex.Lock()
	defer pl.metricsMutex.Unlock()

	metric, exists := pl.metrics[metricName]
	if !exists {
		metric = &PerformanceMetric{
			Name:         metricName,
			MinDuration:  time.Hour,
			LastExecuted: time.Now(),
		}
		pl.metrics[metricName] = metric
	}

	metric.ConcurrentOps++
	if metric.ConcurrentOps > metric.MaxConcurrent {
		metric.MaxConcurrent = metric.ConcurrentOps
	}

	return &PerformanceContext{
		metricName: metricName,
		startTime:  time.Now(),
		logger:     pl,
		ctx:        ctx,
	}
}

// Complete marks an operation as finished, records its outcome, and
// mirrors it to the configured MetricSink, if any.
func (pc *PerformanceContext) Complete(err error) {
	duration := time.Since(pc.startTime)

	pc.logger.metricsMutex.Lock()
	metric := pc.logger.metrics[pc.metricName]
	metric.Count++
	metric.TotalDuration += duration
	metric.LastExecuted = time.Now()
	metric.ConcurrentOps--
	metric.recordSample(duration)

	if duration < metric.MinDuration {
		metric.MinDuration = duration
	}
	if duration > metric.MaxDuration {
		metric.MaxDuration = duration
	}
	metric.AvgDuration = metric.TotalDuration / time.Duration(metric.Count)

	if err != nil {
		metric.ErrorCount++
	}
	metric.SuccessRate = float64(metric.Count-metric.ErrorCount) / float64(metric.Count) * 100
	successRate := metric.SuccessRate
	avgDuration := metric.AvgDuration
	count := metric.Count
	pc.logger.metricsMutex.Unlock()

	if pc.logger.sink != nil {
		pc.logger.sink.ObserveOperation(pc.metricName, duration, err != nil)
	}

	if err != nil {
		pc.logger.logger.Error("performance operation failed",
			"metric", pc.metricName,
			"duration", duration.String(),
			"error", err.Error(),
			"success_rate", fmt.Sprintf("%.2f%%", successRate),
		)
		return
	}

	if duration > 100*time.Millisecond || count%100 == 0 {
		pc.logger.logger.Info("performance operation completed",
			"metric", pc.metricName,
			"duration", duration.String(),
			"avg_duration", avgDuration.String(),
			"success_rate", fmt.Sprintf("%.2f%%", successRate),
			"total_operations", count,
		)
	}
}

// recordSample stores duration in the metric's ring buffer for later
// percentile estimation. Caller must hold metricsMutex.
func (m *PerformanceMetric) recordSample(duration time.Duration) {
	m.samples[m.sampleHead] = duration
	m.sampleHead = (m.sampleHead + 1) % sampleWindow
	if m.sampleLen < sampleWindow {
		m.sampleLen++
	}
}

// percentile returns the p-th percentile (0-100) of the retained samples,
// or zero if no samples have been recorded yet. Caller must hold
// metricsMutex for reading.
func (m *PerformanceMetric) percentile(p float64) time.Duration {
	if m.sampleLen == 0 {
		return 0
	}
	sorted := make([]time.Duration, m.sampleLen)
	copy(sorted, m.samples[:m.sampleLen])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(p / 100 * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Percentile returns the p-th percentile (0-100) duration observed for
// name over its retained sample window, or zero if name is unknown.
func (pl *PerformanceLogger) Percentile(name string, p float64) time.Duration {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	metric, exists := pl.metrics[name]
	if !exists {
		return 0
	}
	return metric.percentile(p)
}

// LogMetrics logs a summary of every tracked operation, including its p95.
func (pl *PerformanceLogger) LogMetrics() {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	for name, metric := range pl.metrics {
		pl.logger.Info("performance metric summary",
			"metric", name,
			"total_operations", metric.Count,
			"avg_duration", metric.AvgDuration.String(),
			"min_duration", metric.MinDuration.String(),
			"max_duration", metric.MaxDuration.String(),
			"p95_duration", metric.percentile(95).String(),
			"success_rate", fmt.Sprintf("%.2f%%", metric.SuccessRate),
			"error_count", metric.ErrorCount,
			"max_concurrent", metric.MaxConcurrent,
			"last_executed", metric.LastExecuted.Format(time.RFC3339),
		)
	}
}

// GetMetric returns a copy of a specific performance metric.
func (pl *PerformanceLogger) GetMetric(name string) *PerformanceMetric {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	metric, exists := pl.metrics[name]
	if !exists {
		return nil
	}
	cp := *metric
	return &cp
}

// GetAllMetrics returns a copy of every tracked performance metric.
func (pl *PerformanceLogger) GetAllMetrics() map[string]*PerformanceMetric {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	result := make(map[string]*PerformanceMetric, len(pl.metrics))
	for name, metric := range pl.metrics {
		cp := *metric
		result[name] = &cp
	}
	return result
}

// ResetMetrics clears all tracked performance metrics.
func (pl *PerformanceLogger) ResetMetrics() {
	pl.metricsMutex.Lock()
	defer pl.metricsMutex.Unlock()

	pl.metrics = make(map[string]*PerformanceMetric)
	pl.logger.Info("performance metrics reset")
}

// RunSweeps periodically calls LogSlowOperations and LogHighErrorRates
// using the logger's configured thresholds, until ctx is canceled.
func (pl *PerformanceLogger) RunSweeps(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pl.LogSlowOperations(pl.slowThreshold)
			pl.LogHighErrorRates(pl.errorRateThreshold)
		}
	}
}

// LogSlowOperations logs any tracked operation whose average duration
// exceeds threshold.
func (pl *PerformanceLogger) LogSlowOperations(threshold time.Duration) {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	for name, metric := range pl.metrics {
		if metric.AvgDuration > threshold {
			pl.logger.Warn("slow operation detected",
				"metric", name,
				"avg_duration", metric.AvgDuration.String(),
				"p95_duration", metric.percentile(95).String(),
				"threshold", threshold.String(),
				"total_operations", metric.Count,
				"max_duration", metric.MaxDuration.String(),
			)
		}
	}
}

// LogHighErrorRates logs any tracked operation whose success rate has
// fallen below threshold, once it has accumulated enough samples.
func (pl *PerformanceLogger) LogHighErrorRates(threshold float64) {
	pl.metricsMutex.RLock()
	defer pl.metricsMutex.RUnlock()

	for name, metric := range pl.metrics {
		if metric.SuccessRate < threshold && metric.Count > 10 {
			pl.logger.Error("high error rate detected",
				"metric", name,
				"success_rate", fmt.Sprintf("%.2f%%", metric.SuccessRate),
				"threshold", fmt.Sprintf("%.2f%%", threshold),
				"error_count", metric.ErrorCount,
				"total_operations", metric.Count,
			)
		}
	}
}
