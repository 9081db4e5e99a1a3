package timeconst

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FitStatus is the outcome of a fit. Zero means converged and usable.
type FitStatus int

const (
	StatusConverged FitStatus = iota
	StatusCallLimit
	StatusSingular
	StatusNoProgress
	StatusNonFinite
	StatusWindowInvalid
	StatusPanic
)

var fitStatusStrings = []string{
	"converged",
	"call limit reached",
	"singular matrix",
	"no progress",
	"non-finite value",
	"invalid window",
	"panic",
}

func (s FitStatus) String() string {
	if s < 0 || int(s) >= len(fitStatusStrings) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return fitStatusStrings[s]
}

// Solver names accepted in SolverConfig.Name.
const (
	SolverLM      = "lm"
	SolverSimplex = "simplex"
	SolverBFGS    = "bfgs"
)

// SolverConfig is shared read-only by every fit of an analysis.
type SolverConfig struct {
	Name             string  `json:"name" validate:"oneof=lm simplex bfgs"`
	MaxFunctionCalls int     `json:"max_function_calls" validate:"gt=0"`
	Tolerance        float64 `json:"tolerance" validate:"gt=0,lt=1"`
	StepTolerance    float64 `json:"step_tolerance" validate:"gt=0,lt=1"`
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Name:             SolverLM,
		MaxFunctionCalls: 100000,
		Tolerance:        1e-10,
		StepTolerance:    1e-10,
	}
}

// Problem is a weighted least squares problem over a set of samples.
// Fixed may be nil, meaning every parameter is free.
type Problem struct {
	Samples []Sample
	Model   Model
	Params  []float64
	Fixed   []bool
	// SkipErrors disables the covariance computation, used for seed stages
	// whose parameters can be degenerate.
	SkipErrors bool
}

// Solution holds the parameters at the end of the minimisation. Params is
// filled even when Status is not StatusConverged.
type Solution struct {
	Params     []float64
	Errors     []float64
	Covariance *mat.SymDense // free parameters only
	Chi2       float64
	NDF        int
	Status     FitStatus
	Calls      int
}

type Minimizer interface {
	Minimize(p *Problem) (Solution, error)
}

func NewMinimizer(cfg SolverConfig) (Minimizer, error) {
	switch cfg.Name {
	case SolverLM, "":
		return &LevenbergMarquardt{Config: cfg}, nil
	case SolverSimplex, SolverBFGS:
		return &GonumMinimizer{Config: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown solver %q", cfg.Name)
	}
}

// freeParams validates the problem and returns the indices of the free
// parameters.
func (p *Problem) freeParams() ([]int, error) {
	npar := p.Model.NumParams()
	if len(p.Params) != npar {
		return nil, fmt.Errorf("model has %d parameters, got %d", npar, len(p.Params))
	}
	if p.Fixed != nil && len(p.Fixed) != npar {
		return nil, fmt.Errorf("model has %d parameters, got %d fixed flags", npar, len(p.Fixed))
	}
	free := make([]int, 0, npar)
	for j := 0; j < npar; j++ {
		if p.Fixed == nil || !p.Fixed[j] {
			free = append(free, j)
		}
	}
	if len(p.Samples) < len(free) {
		return nil, fmt.Errorf("%w: %d samples for %d free parameters", ErrFitWindowInvalid, len(p.Samples), len(free))
	}
	return free, nil
}

// weights returns per-sample weights 1/err^2 when every sample carries an
// error, otherwise unit weights and weighted=false.
func (p *Problem) weights() (w []float64, weighted bool) {
	w = make([]float64, len(p.Samples))
	weighted = true
	for _, s := range p.Samples {
		if !(s.Err > 0) {
			weighted = false
			break
		}
	}
	for i, s := range p.Samples {
		if weighted {
			w[i] = 1 / (s.Err * s.Err)
		} else {
			w[i] = 1
		}
	}
	return w, weighted
}

func (p *Problem) chi2(params, w []float64) float64 {
	sum := 0.0
	for i, s := range p.Samples {
		r := s.Amplitude - p.Model.Eval(s.Time, params)
		sum += w[i] * r * r
	}
	return sum
}

// normalMatrix returns J'WJ for the free parameters together with J'W r.
func (p *Problem) normalMatrix(params, w []float64, free []int) (*mat.SymDense, *mat.VecDense) {
	n, nfree := len(p.Samples), len(free)
	jac := mat.NewDense(n, nfree, nil)
	res := mat.NewVecDense(n, nil)
	grad := make([]float64, p.Model.NumParams())
	for i, s := range p.Samples {
		sw := math.Sqrt(w[i])
		res.SetVec(i, sw*(s.Amplitude-p.Model.Eval(s.Time, params)))
		p.Model.Grad(s.Time, params, grad)
		for k, j := range free {
			jac.Set(i, k, sw*grad[j])
		}
	}
	a := mat.NewSymDense(nfree, nil)
	a.SymOuterK(1, jac.T())
	g := mat.NewVecDense(nfree, nil)
	g.MulVec(jac.T(), res)
	return a, g
}

// fillErrors computes the covariance of the free parameters at sol.Params
// and the parameter errors. Unweighted fits are scaled by chi2/ndf.
func (p *Problem) fillErrors(sol *Solution, w []float64, weighted bool, free []int) {
	sol.Errors = make([]float64, len(sol.Params))
	if p.SkipErrors || len(free) == 0 {
		return
	}
	a, _ := p.normalMatrix(sol.Params, w, free)
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		if sol.Status == StatusConverged {
			sol.Status = StatusSingular
		}
		return
	}
	cov := mat.NewSymDense(len(free), nil)
	if err := chol.InverseTo(cov); err != nil {
		if sol.Status == StatusConverged {
			sol.Status = StatusSingular
		}
		return
	}
	if !weighted && sol.NDF > 0 {
		cov.ScaleSym(sol.Chi2/float64(sol.NDF), cov)
	}
	for k, j := range free {
		sol.Errors[j] = math.Sqrt(cov.At(k, k))
	}
	sol.Covariance = cov
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
