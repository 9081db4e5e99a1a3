package timeconst

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	lambdaStart = 1e-3
	lambdaMin   = 1e-12
	lambdaMax   = 1e16
	// cosine between residuals and Jacobian columns accepted as a minimum
	// when the damping cannot find a better point.
	gradientTolerance = 1e-6
	// scaled curvatures below this fraction of the largest one are treated
	// as exact degeneracies and get no step.
	rankTolerance = 1e-12
)

// LevenbergMarquardt is a damped Gauss-Newton least squares minimizer with
// Marquardt diagonal scaling. It is deterministic for a given Problem.
type LevenbergMarquardt struct {
	Config SolverConfig
}

func (lm *LevenbergMarquardt) Minimize(prob *Problem) (Solution, error) {
	free, err := prob.freeParams()
	if err != nil {
		return Solution{}, err
	}
	cfg := lm.Config
	if cfg.MaxFunctionCalls <= 0 {
		cfg.MaxFunctionCalls = DefaultSolverConfig().MaxFunctionCalls
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultSolverConfig().Tolerance
	}
	if cfg.StepTolerance <= 0 {
		cfg.StepTolerance = DefaultSolverConfig().StepTolerance
	}

	w, weighted := prob.weights()
	sol := Solution{
		Params: append([]float64(nil), prob.Params...),
		NDF:    len(prob.Samples) - len(free),
	}
	sol.Chi2 = prob.chi2(sol.Params, w)
	sol.Calls = 1
	if !finite(sol.Chi2) {
		sol.Status = StatusNonFinite
		sol.Errors = make([]float64, len(sol.Params))
		return sol, nil
	}
	if len(free) == 0 {
		sol.Status = StatusConverged
		sol.Errors = make([]float64, len(sol.Params))
		return sol, nil
	}

	sol.Status = lm.iterate(prob, &sol, w, free, cfg)
	prob.fillErrors(&sol, w, weighted, free)
	return sol, nil
}

func (lm *LevenbergMarquardt) iterate(prob *Problem, sol *Solution, w []float64, free []int, cfg SolverConfig) FitStatus {
	nfree := len(free)
	lambda := lambdaStart
	trial := make([]float64, len(sol.Params))
	step := mat.NewVecDense(nfree, nil)

	for {
		if sol.Chi2 == 0 {
			return StatusConverged
		}
		a, g := prob.normalMatrix(sol.Params, w, free)

		accepted := false
		for !accepted {
			if sol.Calls >= cfg.MaxFunctionCalls {
				return StatusCallLimit
			}
			if lambda > lambdaMax {
				if gradientCosine(a, g, sol.Chi2) <= gradientTolerance {
					return StatusConverged
				}
				return StatusNoProgress
			}

			if err := dampedStep(step, a, g, lambda); err != nil {
				lambda *= 10
				continue
			}

			copy(trial, sol.Params)
			for k, j := range free {
				trial[j] += step.AtVec(k)
			}
			chi2 := prob.chi2(trial, w)
			sol.Calls++
			small := true
			for k, j := range free {
				if math.Abs(step.AtVec(k)) > cfg.StepTolerance*(math.Abs(sol.Params[j])+cfg.StepTolerance) {
					small = false
					break
				}
			}
			if !finite(chi2) || chi2 >= sol.Chi2 {
				// an undamped step below the tolerance that cannot lower chi2
				// means chi2 is at its rounding floor
				if small && finite(chi2) && lambda <= 1 {
					return StatusConverged
				}
				lambda *= 10
				continue
			}

			// predicted reduction of the linearised model
			predicted := 2*mat.Dot(step, g) - mat.Inner(step, a, step)
			actual := sol.Chi2 - chi2
			copy(sol.Params, trial)
			previous := sol.Chi2
			sol.Chi2 = chi2
			accepted = true
			lambda = math.Max(lambda/10, lambdaMin)

			if small {
				return StatusConverged
			}
			if actual <= cfg.Tolerance*previous && math.Abs(predicted) <= cfg.Tolerance*previous {
				return StatusConverged
			}
		}
	}
}

// dampedStep solves (a + lambda*diag(a)) x = g. The system is solved in
// the coordinates scaled by diag(a), where Marquardt damping is a shift of
// the eigenvalues. Directions with no curvature, such as an amplitude and an
// onset that only enter the model through their product, are left out so the
// step has minimum norm instead of following rounding noise.
func dampedStep(x *mat.VecDense, a *mat.SymDense, g *mat.VecDense, lambda float64) error {
	n := g.Len()
	scale := make([]float64, n)
	for k := 0; k < n; k++ {
		if d := a.At(k, k); d > 0 {
			scale[k] = 1 / math.Sqrt(d)
		}
	}
	scaled := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			scaled.SetSym(i, j, a.At(i, j)*scale[i]*scale[j])
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(scaled, true) {
		return solveDamped(x, a, g, lambda)
	}
	mu := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	muMax := 0.0
	for _, m := range mu {
		muMax = math.Max(muMax, m)
	}
	if muMax <= 0 {
		return errors.New("normal matrix has no curvature")
	}

	sg := mat.NewVecDense(n, nil)
	for k := 0; k < n; k++ {
		sg.SetVec(k, scale[k]*g.AtVec(k))
	}
	y := mat.NewVecDense(n, nil)
	for k, m := range mu {
		if m <= rankTolerance*muMax {
			continue
		}
		v := vectors.ColView(k)
		y.AddScaledVec(y, mat.Dot(v, sg)/(m+lambda), v)
	}
	for k := 0; k < n; k++ {
		x.SetVec(k, scale[k]*y.AtVec(k))
	}
	return nil
}

// solveDamped is the plain LU solve of the damped system, used when the
// eigen decomposition does not converge.
func solveDamped(x *mat.VecDense, a *mat.SymDense, g *mat.VecDense, lambda float64) error {
	n := g.Len()
	damped := mat.NewSymDense(n, nil)
	damped.CopySym(a)
	for k := 0; k < n; k++ {
		d := a.At(k, k)
		if d <= 0 {
			d = 1e-12
		}
		damped.SetSym(k, k, a.At(k, k)+lambda*d)
	}
	var lu mat.LU
	lu.Factorize(damped)
	return lu.SolveVecTo(x, false, g)
}

// gradientCosine is the largest cosine between the residual vector and a
// Jacobian column, zero at an exact minimum.
func gradientCosine(a *mat.SymDense, g *mat.VecDense, chi2 float64) float64 {
	worst := 0.0
	for k := 0; k < g.Len(); k++ {
		d := a.At(k, k)
		if d <= 0 || chi2 <= 0 {
			continue
		}
		c := math.Abs(g.AtVec(k)) / math.Sqrt(d*chi2)
		if c > worst {
			worst = c
		}
	}
	return worst
}
