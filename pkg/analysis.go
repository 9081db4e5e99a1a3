package timeconst

import (
	"fmt"
)

// ProfileSource supplies the averaged profile of a measurement slot.
type ProfileSource interface {
	Profile(channel, index int) (*Profile, error)
}

// MemorySource is a ProfileSource backed by profiles already in memory,
// indexed [channel][slot].
type MemorySource [2][]*Profile

func (m MemorySource) Profile(channel, index int) (*Profile, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(m[channel]) {
		return nil, fmt.Errorf("%w: no profile for ch%d slot %d", ErrNotFound, channel, index)
	}
	return m[channel][index], nil
}

// AnalysisConfig is copied into the analysis and never modified.
type AnalysisConfig struct {
	Fit        FitConfig
	Solver     SolverConfig
	NumWorkers int
	Verbosity  int
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Fit:        DefaultFitConfig(),
		Solver:     DefaultSolverConfig(),
		NumWorkers: 1,
	}
}

// Analysis drives the decay time fit of one series. Its methods must not
// be called concurrently; the fits themselves run in a worker pool.
type Analysis struct {
	series     Series
	fitter     *StagedDecayFitter
	numWorkers int
	signals    [2][]*Profile
	results    [2][]FitResult
	fitted     [2][]bool
}

// NewAnalysis loads the profiles of every measurement of the series on both
// channels.
func NewAnalysis(series Series, source ProfileSource, cfg AnalysisConfig) (*Analysis, error) {
	if err := series.validate(); err != nil {
		return nil, err
	}
	fitter, err := NewStagedDecayFitter(cfg.Fit, cfg.Solver)
	if err != nil {
		return nil, err
	}
	fitter.Verbosity = cfg.Verbosity

	a := &Analysis{
		series:     series,
		fitter:     fitter,
		numWorkers: cfg.NumWorkers,
	}
	for ch := 0; ch < 2; ch++ {
		a.signals[ch] = make([]*Profile, series.Npoints())
		a.results[ch] = make([]FitResult, series.Npoints())
		a.fitted[ch] = make([]bool, series.Npoints())
		for i := range series.Positions {
			p, err := source.Profile(ch, i)
			if err != nil {
				return nil, fmt.Errorf("series %d ch%d position %.2f: %w", series.ID, ch, series.Positions[i], err)
			}
			if p == nil {
				return nil, fmt.Errorf("%w: series %d ch%d position %.2f has no profile",
					ErrNotFound, series.ID, ch, series.Positions[i])
			}
			if p.Channel != ch {
				return nil, fmt.Errorf("%w: profile %s loaded for ch%d", ErrInvalidChannel, p.Name(), ch)
			}
			a.signals[ch][i] = p
		}
	}
	if cfg.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Series %d: %d measurements loaded on 2 channels", series.ID, series.Npoints()), "analysis")
	}
	return a, nil
}

func (a *Analysis) Series() Series {
	return a.series
}

// FitAllSignals fits both channels and aggregates the accepted results. The
// per measurement results are returned even when the aggregation fails.
func (a *Analysis) FitAllSignals() (TimeConstResults, error) {
	jobs := make([]fitJob, 0, 2*a.series.Npoints())
	for ch := 0; ch < 2; ch++ {
		jobs = append(jobs, a.channelJobs(ch)...)
	}
	a.run(jobs)

	res := TimeConstResults{
		ResultsCh0: append([]FitResult(nil), a.results[0]...),
		ResultsCh1: append([]FitResult(nil), a.results[1]...),
	}
	agg, err := Aggregate(a.series.ID, res.ResultsCh0, res.ResultsCh1)
	res.Aggregate = agg
	if err != nil {
		return res, err
	}
	logger.Info(fmt.Sprintf("Series %d: fast %.2f +- %.2f ns, slow %.1f +- %.1f ns, %d accepted, %d rejected",
		a.series.ID, agg.FastMean, agg.FastStdErr, agg.SlowMean, agg.SlowStdErr, agg.AcceptedCount, len(agg.Failed)), "analysis")
	return res, nil
}

// FitChannel fits every measurement of one channel without aggregating.
func (a *Analysis) FitChannel(ch int) ([]FitResult, error) {
	if err := checkChannel(ch); err != nil {
		return nil, err
	}
	a.run(a.channelJobs(ch))
	return a.Results(ch)
}

// FitSingleSignal refits the measurement at position.
func (a *Analysis) FitSingleSignal(ch int, position float64) (FitResult, error) {
	if err := checkChannel(ch); err != nil {
		return FitResult{}, err
	}
	index, err := a.series.IndexOf(position)
	if err != nil {
		return FitResult{}, err
	}
	out := fitOne(0, a.fitter, fitJob{Channel: ch, Index: index, Profile: a.signals[ch][index]})
	a.results[ch][index] = out.Result
	a.fitted[ch][index] = true
	return out.Result, out.Err
}

func (a *Analysis) Signals(ch int) ([]*Profile, error) {
	if err := checkChannel(ch); err != nil {
		return nil, err
	}
	return append([]*Profile(nil), a.signals[ch]...), nil
}

func (a *Analysis) Signal(ch int, position float64) (*Profile, error) {
	if err := checkChannel(ch); err != nil {
		return nil, err
	}
	index, err := a.series.IndexOf(position)
	if err != nil {
		return nil, err
	}
	return a.signals[ch][index], nil
}

// Results returns the fits of one channel by measurement slot. Slots not yet
// fitted hold a zero FitResult.
func (a *Analysis) Results(ch int) ([]FitResult, error) {
	if err := checkChannel(ch); err != nil {
		return nil, err
	}
	return append([]FitResult(nil), a.results[ch]...), nil
}

func (a *Analysis) Result(ch int, position float64) (FitResult, error) {
	if err := checkChannel(ch); err != nil {
		return FitResult{}, err
	}
	index, err := a.series.IndexOf(position)
	if err != nil {
		return FitResult{}, err
	}
	if !a.fitted[ch][index] {
		return FitResult{}, fmt.Errorf("%w: ch%d position %.2f not fitted yet", ErrNotFound, ch, position)
	}
	return a.results[ch][index], nil
}

func (a *Analysis) channelJobs(ch int) []fitJob {
	jobs := make([]fitJob, len(a.signals[ch]))
	for i, p := range a.signals[ch] {
		jobs[i] = fitJob{Channel: ch, Index: i, Profile: p}
	}
	return jobs
}

func (a *Analysis) run(jobs []fitJob) {
	runFits(a.fitter, a.numWorkers, jobs, &a.results)
	for _, job := range jobs {
		a.fitted[job.Channel][job.Index] = true
	}
}
