package timeconst

import (
	"fmt"
)

// FitResult is the outcome of the staged fit of one (channel, measurement).
// Results with a non zero Status are kept for inspection but never
// aggregated. Params holds the last solver parameters even on failure.
type FitResult struct {
	SeriesID int
	Channel  int
	Position float64
	Index    int
	Status   FitStatus
	Params   [NumDecayParams]float64
	Errors   [NumDecayParams]float64
	Chi2     float64
	NDF      int
	Stages   []StageResult
}

func (r *FitResult) Onset() float64         { return r.Params[ParOnset] }
func (r *FitResult) Baseline() float64      { return r.Params[ParConst] }
func (r *FitResult) FastAmplitude() float64 { return r.Params[ParFastAmp] }
func (r *FitResult) FastTau() float64       { return r.Params[ParFastTau] }
func (r *FitResult) SlowAmplitude() float64 { return r.Params[ParSlowAmp] }
func (r *FitResult) SlowTau() float64       { return r.Params[ParSlowTau] }

// Accepted returns nil when the result may enter the aggregation.
func (r *FitResult) Accepted() error {
	if r.Status != StatusConverged {
		return fmt.Errorf("%w: series %d ch%d position %.2f: %s",
			ErrFitNotConverged, r.SeriesID, r.Channel, r.Position, r.Status)
	}
	return nil
}

// Stage returns the named stage, if it ran.
func (r *FitResult) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Model returns the fitted curve for overlay plotting.
func (r *FitResult) Model() FittedModel {
	return FittedModel{params: r.Params}
}

type FittedModel struct {
	params [NumDecayParams]float64
}

func (m FittedModel) Eval(t float64) float64 {
	return DoubleDecay{}.Eval(t, m.params[:])
}

// Components returns the fast, slow and baseline contributions at t.
func (m FittedModel) Components(t float64) (fast, slow, baseline float64) {
	return DoubleDecay{}.Components(t, m.params[:])
}

// Curve evaluates the model at the given times. Times before from are left
// at zero.
func (m FittedModel) Curve(times []float64, from float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		if t < from {
			continue
		}
		out[i] = m.Eval(t)
	}
	return out
}

// MeasurementRef identifies a rejected fit in a SeriesAggregate.
type MeasurementRef struct {
	Channel  int
	Position float64
	Index    int
	Status   FitStatus
}

// TimeConstResults is the outcome of fitting a whole series.
type TimeConstResults struct {
	Aggregate  SeriesAggregate
	ResultsCh0 []FitResult
	ResultsCh1 []FitResult
}
