package timeseries

import (
	"time"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
)

// ResamplerCore turns a SourceTracker's buffered history into a single
// resampled Sample per call, per the window-selection algorithm: infer the
// input period if due, select the relevance window ending at windowEnd, and
// reduce it.
type ResamplerCore struct {
	name    string
	cfg     *ResamplerConfig
	tracker *SourceTracker
	logger  *logx.Logger
}

// NewResamplerCore builds a core bound to a single tracker.
func NewResamplerCore(name string, cfg *ResamplerConfig, tracker *SourceTracker, logger *logx.Logger) *ResamplerCore {
	return &ResamplerCore{name: name, cfg: cfg, tracker: tracker, logger: logger}
}

// Resample computes the output sample for the window ending at windowEnd.
func (c *ResamplerCore) Resample(windowEnd time.Time) Sample {
	if c.tracker.MaybeUpdatePeriod(windowEnd) {
		c.tracker.MaybeResizeBuffer()
	}

	props := c.tracker.Properties()
	period := c.cfg.ResamplingPeriod
	if props.SamplingPeriod != nil && *props.SamplingPeriod > period {
		period = *props.SamplingPeriod
	}

	relevanceSeconds := period.Seconds() * c.cfg.MaxDataAgeInPeriods
	minTS := windowEnd.Add(-time.Duration(relevanceSeconds * float64(time.Second)))

	buf := c.tracker.Buffer()
	minIndex := buf.BisectByTimestamp(minTS)
	maxIndex := buf.BisectByTimestamp(windowEnd)

	relevant := buf.Slice(minIndex, maxIndex)
	if len(relevant) == 0 {
		c.logger.Warn("empty relevance window",
			"source", c.name,
			"window_end", windowEnd.Format(time.RFC3339Nano),
		)
		return EmptySample(windowEnd)
	}

	v := c.cfg.ReductionFn(relevant, c.cfg, props)
	return NewSample(windowEnd, v)
}
