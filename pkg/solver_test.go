package timeconst

import (
	"errors"
	"math"
	"testing"
)

func exponentialSamples(amp, onset, tau float64, from, to int) []Sample {
	samples := make([]Sample, 0, to-from)
	for i := from; i < to; i++ {
		t := float64(i)
		samples = append(samples, Sample{Time: t, Amplitude: amp * math.Exp(-(t-onset)/tau)})
	}
	return samples
}

func TestLevenbergMarquardtExact(t *testing.T) {
	lm := &LevenbergMarquardt{Config: DefaultSolverConfig()}
	sol, err := lm.Minimize(&Problem{
		Samples: exponentialSamples(250, 0, 40, 0, 300),
		Model:   Exponential{},
		Params:  []float64{100, 0, 10},
		Fixed:   []bool{false, true, false},
	})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if sol.Status != StatusConverged {
		t.Fatalf("status = %v, want converged", sol.Status)
	}
	if !within(sol.Params[ExpAmp], 250, 1e-5) || !within(sol.Params[ExpTau], 40, 1e-6) {
		t.Fatalf("params = %v, want [250 0 40]", sol.Params)
	}
	if sol.Params[ExpOnset] != 0 || sol.Errors[ExpOnset] != 0 {
		t.Fatalf("fixed onset changed: value %g error %g", sol.Params[ExpOnset], sol.Errors[ExpOnset])
	}
	if sol.NDF != 298 {
		t.Fatalf("ndf = %d, want 298", sol.NDF)
	}
}

func TestLevenbergMarquardtDeterministic(t *testing.T) {
	p := defaultPulse()
	p.Sigma = 0.5
	p.Seed = 7
	samples := p.samples()[120:]
	prob := func() *Problem {
		return &Problem{
			Samples: samples,
			Model:   DoubleDecay{},
			Params:  []float64{250, 100, 20, 50, 300, 2},
			Fixed:   []bool{false, true, false, false, false, true},
		}
	}
	lm := &LevenbergMarquardt{Config: DefaultSolverConfig()}
	first, err := lm.Minimize(prob())
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	second, err := lm.Minimize(prob())
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	for j := range first.Params {
		if first.Params[j] != second.Params[j] || first.Errors[j] != second.Errors[j] {
			t.Fatalf("parameter %d differs between runs: %g/%g", j, first.Params[j], second.Params[j])
		}
	}
	if first.Covariance == nil {
		t.Fatalf("missing covariance")
	}
	if r, c := first.Covariance.Dims(); r != 4 || c != 4 {
		t.Fatalf("covariance is %dx%d, want 4x4", r, c)
	}
}

func TestLevenbergMarquardtWeighted(t *testing.T) {
	samples := exponentialSamples(100, 0, 25, 0, 200)
	for i := range samples {
		samples[i].Err = 0.1
	}
	lm := &LevenbergMarquardt{Config: DefaultSolverConfig()}
	sol, err := lm.Minimize(&Problem{
		Samples: samples,
		Model:   Exponential{},
		Params:  []float64{50, 0, 10},
		Fixed:   []bool{false, true, false},
	})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if sol.Status != StatusConverged {
		t.Fatalf("status = %v, want converged", sol.Status)
	}
	// weighted errors do not depend on chi2, so they stay finite and
	// positive on exact data
	if !(sol.Errors[ExpTau] > 0) || math.IsInf(sol.Errors[ExpTau], 0) {
		t.Fatalf("tau error = %g, want positive", sol.Errors[ExpTau])
	}
}

func TestMinimizeTooFewSamples(t *testing.T) {
	lm := &LevenbergMarquardt{Config: DefaultSolverConfig()}
	_, err := lm.Minimize(&Problem{
		Samples: exponentialSamples(1, 0, 1, 0, 2),
		Model:   Exponential{},
		Params:  []float64{1, 0, 1},
	})
	if !errors.Is(err, ErrFitWindowInvalid) {
		t.Fatalf("error = %v, want ErrFitWindowInvalid", err)
	}
}

func TestMinimizeCallLimit(t *testing.T) {
	cfg := DefaultSolverConfig()
	cfg.MaxFunctionCalls = 3
	lm := &LevenbergMarquardt{Config: cfg}
	sol, err := lm.Minimize(&Problem{
		Samples: exponentialSamples(250, 0, 40, 0, 300),
		Model:   Exponential{},
		Params:  []float64{1, 0, 1},
		Fixed:   []bool{false, true, false},
	})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if sol.Status != StatusCallLimit {
		t.Fatalf("status = %v, want call limit", sol.Status)
	}
	if sol.Params == nil {
		t.Fatalf("failed solution carries no parameters")
	}
}

func TestGonumMinimizerSimplex(t *testing.T) {
	cfg := DefaultSolverConfig()
	cfg.Name = SolverSimplex
	m, err := NewMinimizer(cfg)
	if err != nil {
		t.Fatalf("NewMinimizer: %v", err)
	}
	if _, ok := m.(*GonumMinimizer); !ok {
		t.Fatalf("NewMinimizer(%q) = %T", cfg.Name, m)
	}
	sol, err := m.Minimize(&Problem{
		Samples: exponentialSamples(120, 0, 35, 0, 250),
		Model:   Exponential{},
		Params:  []float64{100, 0, 30},
		Fixed:   []bool{false, true, false},
	})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if math.Abs(sol.Params[ExpAmp]-120)/120 > 1e-2 || math.Abs(sol.Params[ExpTau]-35)/35 > 1e-2 {
		t.Fatalf("params = %v, want [120 0 35]", sol.Params)
	}
	if sol.Params[ExpOnset] != 0 {
		t.Fatalf("fixed onset changed to %g", sol.Params[ExpOnset])
	}
}

func TestNewMinimizerUnknown(t *testing.T) {
	if _, err := NewMinimizer(SolverConfig{Name: "migrad"}); err == nil {
		t.Fatalf("expected an error for an unknown solver")
	}
}

func TestLevenbergMarquardtDegenerateOnset(t *testing.T) {
	// amplitude and onset only enter through A*exp(t0/tau)
	samples := exponentialSamples(250, 100, 40, 120, 300)
	lm := &LevenbergMarquardt{Config: DefaultSolverConfig()}
	sol, err := lm.Minimize(&Problem{
		Samples:    samples,
		Model:      Exponential{},
		Params:     []float64{100, 100, 10},
		SkipErrors: true,
	})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if sol.Status != StatusConverged {
		t.Fatalf("status = %v, want converged", sol.Status)
	}
	if !within(sol.Params[ExpTau], 40, 1e-4) {
		t.Fatalf("tau = %g, want 40", sol.Params[ExpTau])
	}
	for _, s := range []Sample{samples[0], samples[90], samples[len(samples)-1]} {
		got := Exponential{}.Eval(s.Time, sol.Params)
		if !within(got, s.Amplitude, 1e-6*s.Amplitude) {
			t.Fatalf("model at %g = %g, want %g (params %v)", s.Time, got, s.Amplitude, sol.Params)
		}
	}
}
