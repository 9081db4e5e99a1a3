package timeconst

import (
	"gonum.org/v1/gonum/optimize"
)

// GonumMinimizer minimises the chi2 with gonum/optimize, using Nelder-Mead
// (SolverSimplex) or BFGS with the analytic gradient (SolverBFGS). Errors
// come from the Gauss-Newton approximation at the optimum.
type GonumMinimizer struct {
	Config SolverConfig
}

func (gm *GonumMinimizer) Minimize(prob *Problem) (Solution, error) {
	free, err := prob.freeParams()
	if err != nil {
		return Solution{}, err
	}
	w, weighted := prob.weights()
	sol := Solution{
		Params: append([]float64(nil), prob.Params...),
		NDF:    len(prob.Samples) - len(free),
	}
	if len(free) == 0 {
		sol.Chi2 = prob.chi2(sol.Params, w)
		sol.Calls = 1
		sol.Errors = make([]float64, len(sol.Params))
		if !finite(sol.Chi2) {
			sol.Status = StatusNonFinite
		}
		return sol, nil
	}

	full := append([]float64(nil), prob.Params...)
	expand := func(x []float64) []float64 {
		for k, j := range free {
			full[j] = x[k]
		}
		return full
	}
	modelGrad := make([]float64, prob.Model.NumParams())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return prob.chi2(expand(x), w)
		},
		Grad: func(grad, x []float64) {
			params := expand(x)
			for k := range grad {
				grad[k] = 0
			}
			for i, s := range prob.Samples {
				r := s.Amplitude - prob.Model.Eval(s.Time, params)
				prob.Model.Grad(s.Time, params, modelGrad)
				for k, j := range free {
					grad[k] -= 2 * w[i] * r * modelGrad[j]
				}
			}
		},
	}

	cfg := gm.Config
	if cfg.MaxFunctionCalls <= 0 {
		cfg.MaxFunctionCalls = DefaultSolverConfig().MaxFunctionCalls
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultSolverConfig().Tolerance
	}
	settings := &optimize.Settings{
		FuncEvaluations: cfg.MaxFunctionCalls,
		Converger: &optimize.FunctionConverge{
			Relative:   cfg.Tolerance,
			Iterations: 100,
		},
	}
	var method optimize.Method = &optimize.NelderMead{}
	if cfg.Name == SolverBFGS {
		method = &optimize.BFGS{}
	}

	x0 := make([]float64, len(free))
	for k, j := range free {
		x0[k] = prob.Params[j]
	}
	result, optErr := optimize.Minimize(problem, x0, settings, method)
	if result == nil {
		return sol, optErr
	}
	for k, j := range free {
		sol.Params[j] = result.X[k]
	}
	sol.Chi2 = result.F
	sol.Calls = result.FuncEvaluations
	sol.Status = gonumStatus(result.Status, optErr)
	if !finite(sol.Chi2) {
		sol.Status = StatusNonFinite
	}
	if sol.Status != StatusConverged && sol.Status != StatusNonFinite {
		// line searches give up close to the minimum; accept the point if
		// the gradient vanishes there.
		a, g := prob.normalMatrix(sol.Params, w, free)
		if gradientCosine(a, g, sol.Chi2) <= gradientTolerance {
			sol.Status = StatusConverged
		}
	}
	prob.fillErrors(&sol, w, weighted, free)
	return sol, nil
}

func gonumStatus(status optimize.Status, err error) FitStatus {
	switch status {
	case optimize.Success, optimize.FunctionThreshold, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		if err == nil {
			return StatusConverged
		}
		return StatusNoProgress
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit,
		optimize.HessianEvaluationLimit, optimize.RuntimeLimit:
		return StatusCallLimit
	default:
		return StatusNoProgress
	}
}
