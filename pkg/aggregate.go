package timeconst

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SeriesAggregate pools the accepted fits of both channels of a series.
// Decay constants are in ns.
type SeriesAggregate struct {
	SeriesID      int
	FastMean      float64
	FastStdErr    float64
	SlowMean      float64
	SlowStdErr    float64
	IntensityFast float64
	IntensitySlow float64
	AcceptedCount int
	Failed        []MeasurementRef
}

// Aggregate pools every converged result of both channels unweighted. The
// standard errors are the sample standard deviation over sqrt(n), zero for
// a single accepted fit. The fast intensity is sum(A_f) / sum(A_f + A_s).
func Aggregate(seriesID int, ch0, ch1 []FitResult) (SeriesAggregate, error) {
	agg := SeriesAggregate{SeriesID: seriesID}
	var fastTaus, slowTaus, fastAmps, totalAmps []float64
	for _, results := range [][]FitResult{ch0, ch1} {
		for i := range results {
			r := &results[i]
			if r.Accepted() != nil {
				agg.Failed = append(agg.Failed, MeasurementRef{
					Channel:  r.Channel,
					Position: r.Position,
					Index:    r.Index,
					Status:   r.Status,
				})
				continue
			}
			fastTaus = append(fastTaus, r.FastTau())
			slowTaus = append(slowTaus, r.SlowTau())
			fastAmps = append(fastAmps, r.FastAmplitude())
			totalAmps = append(totalAmps, r.FastAmplitude()+r.SlowAmplitude())
		}
	}

	n := len(fastTaus)
	agg.AcceptedCount = n
	if n == 0 {
		return agg, fmt.Errorf("%w: series %d, %d fits rejected", ErrNoValidFits, seriesID, len(agg.Failed))
	}
	total := floats.Sum(totalAmps)
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return agg, fmt.Errorf("%w: series %d, degenerate amplitude sum %g", ErrNoValidFits, seriesID, total)
	}

	agg.FastMean = stat.Mean(fastTaus, nil)
	agg.SlowMean = stat.Mean(slowTaus, nil)
	if n > 1 {
		agg.FastStdErr = stat.StdDev(fastTaus, nil) / math.Sqrt(float64(n))
		agg.SlowStdErr = stat.StdDev(slowTaus, nil) / math.Sqrt(float64(n))
	}
	agg.IntensityFast = floats.Sum(fastAmps) / total
	agg.IntensitySlow = 1 - agg.IntensityFast
	return agg, nil
}
