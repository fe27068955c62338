package timeseries

import (
	"github.com/sajari/regression"
	"gonum.org/v1/gonum/stat"
)

// Mean is the default reduction function: the arithmetic mean of the
// base value of every present sample in the relevance window.
func Mean(samples []Sample, _ *ResamplerConfig, _ SourceProperties) float64 {
	var sum float64
	var count int
	for _, s := range samples {
		if v, ok := s.BaseValue(); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// LinearExtrapolation fits a least-squares line over the relevance window
// (elapsed nanoseconds since the first present sample as the regressor) and
// evaluates it at the timestamp of the last present sample, offered as an
// alternative to Mean for sources where the latest trend matters more than
// the flat average. It does not project the line past that sample to the
// window end, which the reduction function is not given.
// Falls back to Mean when fewer than two present samples are available.
func LinearExtrapolation(samples []Sample, cfg *ResamplerConfig, props SourceProperties) float64 {
	xs := make([]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))

	var t0 *float64
	for _, s := range samples {
		v, ok := s.BaseValue()
		if !ok {
			continue
		}
		x := float64(s.Timestamp.UnixNano())
		if t0 == nil {
			t0 = &x
		}
		xs = append(xs, x-*t0)
		ys = append(ys, v)
	}
	if len(xs) < 2 {
		return Mean(samples, cfg, props)
	}

	r := new(regression.Regression)
	r.SetObserved("value")
	r.SetVar(0, "elapsed_ns")
	for i := range xs {
		r.Train(regression.DataPoint(ys[i], []float64{xs[i]}))
	}
	if err := r.Run(); err != nil {
		return stat.Mean(ys, nil)
	}

	targetX := xs[len(xs)-1]
	predicted, err := r.Predict([]float64{targetX})
	if err != nil {
		return stat.Mean(ys, nil)
	}
	return predicted
}
