package timeconst

import (
	"errors"
	"fmt"
)

// FitConfig holds the stage windows and seeds of the staged decay fit. Fast
// and combined window edges are offsets from the peak time.
type FitConfig struct {
	BaselineMin   float64    `json:"baseline_min"`
	BaselineMax   float64    `json:"baseline_max" validate:"gtfield=BaselineMin"`
	FastStart     float64    `json:"fast_start"`
	FastEnd       float64    `json:"fast_end" validate:"gtfield=FastStart"`
	SlowStart     float64    `json:"slow_start"`
	CombinedStart float64    `json:"combined_start"`
	FastSeed      [3]float64 `json:"fast_seed"`
	SlowSeed      [3]float64 `json:"slow_seed"`
}

func DefaultFitConfig() FitConfig {
	return FitConfig{
		BaselineMin:   0,
		BaselineMax:   50,
		FastStart:     20,
		FastEnd:       150,
		SlowStart:     400,
		CombinedStart: 20,
		FastSeed:      [3]float64{100, 100, 10},
		SlowSeed:      [3]float64{100, 100, 400},
	}
}

// Stage names, in execution order.
const (
	StageBaseline = "baseline"
	StageFast     = "fast"
	StageSlow     = "slow"
	StageCombined = "combined"
)

// StageResult records one stage of the staged fit.
type StageResult struct {
	Name   string
	Min    float64
	Max    float64
	Params []float64
	Errors []float64
	Chi2   float64
	NDF    int
	Status FitStatus
	Calls  int
}

// StagedDecayFitter fits the double decay model to one profile in four
// dependent stages. It holds no mutable state and may be shared between
// goroutines.
type StagedDecayFitter struct {
	Config    FitConfig
	Minimizer Minimizer
	Verbosity int
}

func NewStagedDecayFitter(cfg FitConfig, solver SolverConfig) (*StagedDecayFitter, error) {
	minimizer, err := NewMinimizer(solver)
	if err != nil {
		return nil, err
	}
	return &StagedDecayFitter{Config: cfg, Minimizer: minimizer}, nil
}

// Fit runs the four stages on the profile. A non converged combined stage is
// recorded in the result status and is not an error. A stage whose window
// holds too few samples returns an *ErrWindow together with a result in
// StatusWindowInvalid carrying the stages run so far.
func (f *StagedDecayFitter) Fit(p *Profile) (FitResult, error) {
	result := FitResult{
		SeriesID: p.SeriesID,
		Channel:  p.Channel,
		Position: p.Position,
		Status:   StatusNoProgress,
	}
	if err := checkChannel(p.Channel); err != nil {
		return result, err
	}
	cfg := f.Config
	peak, last := p.PeakTime(), p.LastTime()

	baseline, err := f.stage(&result, p, StageBaseline, cfg.BaselineMin, cfg.BaselineMax, false,
		Constant{}, []float64{0}, nil, true)
	if err != nil {
		return result, err
	}

	fast, err := f.stage(&result, p, StageFast, peak+cfg.FastStart, peak+cfg.FastEnd, false,
		Exponential{}, cfg.FastSeed[:], nil, true)
	if err != nil {
		return result, err
	}

	slowSeed := cfg.SlowSeed
	slowSeed[ExpOnset] = fast.Params[ExpOnset]
	slow, err := f.stage(&result, p, StageSlow, cfg.SlowStart, last, true,
		Exponential{}, slowSeed[:], []bool{false, true, false}, true)
	if err != nil {
		return result, err
	}

	seed := make([]float64, NumDecayParams)
	seed[ParFastAmp] = fast.Params[ExpAmp]
	seed[ParOnset] = fast.Params[ExpOnset]
	seed[ParFastTau] = fast.Params[ExpTau]
	seed[ParSlowAmp] = slow.Params[ExpAmp]
	seed[ParSlowTau] = slow.Params[ExpTau]
	seed[ParConst] = baseline.Params[0]
	fixed := make([]bool, NumDecayParams)
	fixed[ParOnset] = true
	fixed[ParConst] = true
	combined, err := f.stage(&result, p, StageCombined, peak+cfg.CombinedStart, last, true,
		DoubleDecay{}, seed, fixed, false)
	if err != nil {
		return result, err
	}

	copy(result.Params[:], combined.Params)
	copy(result.Errors[:], combined.Errors)
	result.canonicalOrder()
	result.Chi2 = combined.Chi2
	result.NDF = combined.NDF
	result.Status = combined.Status
	if result.Status != StatusConverged {
		logger.Info(fmt.Sprintf("%s: combined fit %s after %d calls", p.Name(), result.Status, combined.Calls), "fitter")
	}
	return result, nil
}

// canonicalOrder swaps the two components when the fit converged onto the
// slow decay in the fast slot, so FastTau <= SlowTau always holds.
func (r *FitResult) canonicalOrder() {
	if r.Params[ParFastTau] <= r.Params[ParSlowTau] {
		return
	}
	for _, v := range []*[NumDecayParams]float64{&r.Params, &r.Errors} {
		v[ParFastAmp], v[ParSlowAmp] = v[ParSlowAmp], v[ParFastAmp]
		v[ParFastTau], v[ParSlowTau] = v[ParSlowTau], v[ParFastTau]
	}
}

func (f *StagedDecayFitter) stage(result *FitResult, p *Profile, name string, lo, hi float64, closed bool,
	model Model, seed []float64, fixed []bool, skipErrors bool) (StageResult, error) {
	samples := p.window(lo, hi, closed)
	nfree := 0
	for j := range seed {
		if fixed == nil || !fixed[j] {
			nfree++
		}
	}
	if len(samples) < nfree {
		result.Status = StatusWindowInvalid
		return StageResult{}, &ErrWindow{Stage: name, Min: lo, Max: hi, Samples: len(samples), Free: nfree}
	}

	sol, err := f.Minimizer.Minimize(&Problem{
		Samples:    samples,
		Model:      model,
		Params:     append([]float64(nil), seed...),
		Fixed:      fixed,
		SkipErrors: skipErrors,
	})
	if err != nil {
		if errors.Is(err, ErrFitWindowInvalid) {
			result.Status = StatusWindowInvalid
			return StageResult{}, &ErrWindow{Stage: name, Min: lo, Max: hi, Samples: len(samples), Free: nfree}
		}
		return StageResult{}, fmt.Errorf("%s stage %s: %w", p.Name(), name, err)
	}
	stage := StageResult{
		Name:   name,
		Min:    lo,
		Max:    hi,
		Params: sol.Params,
		Errors: sol.Errors,
		Chi2:   sol.Chi2,
		NDF:    sol.NDF,
		Status: sol.Status,
		Calls:  sol.Calls,
	}
	result.Stages = append(result.Stages, stage)

	if f.Verbosity > 1 {
		logger.Info(fmt.Sprintf("%s: %s stage [%.1f, %.1f] %d samples, chi2/ndf %.3g/%d, params %v, %s",
			p.Name(), name, lo, hi, len(samples), sol.Chi2, sol.NDF, sol.Params, sol.Status), "fitter")
	}
	if name != StageCombined && sol.Status != StatusConverged {
		logger.Info(fmt.Sprintf("%s: %s stage %s, continuing with last parameters", p.Name(), name, sol.Status), "fitter")
	}
	return stage, nil
}
