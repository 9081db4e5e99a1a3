package timeconst

import "math"

// Model is a parametrised function of time with analytic partial
// derivatives. Grad fills grad[j] = df/dp[j] for every parameter.
type Model interface {
	NumParams() int
	Eval(t float64, p []float64) float64
	Grad(t float64, p []float64, grad []float64)
}

// Constant is the pol0 baseline model: f(t) = p[0].
type Constant struct{}

func (Constant) NumParams() int { return 1 }

func (Constant) Eval(t float64, p []float64) float64 {
	return p[0]
}

func (Constant) Grad(t float64, p []float64, grad []float64) {
	grad[0] = 1
}

// Parameters of the single exponential A*exp(-(t-t0)/tau).
const (
	ExpAmp = iota
	ExpOnset
	ExpTau
)

type Exponential struct{}

func (Exponential) NumParams() int { return 3 }

func (Exponential) Eval(t float64, p []float64) float64 {
	return p[ExpAmp] * math.Exp(-(t-p[ExpOnset])/p[ExpTau])
}

func (Exponential) Grad(t float64, p []float64, grad []float64) {
	a, t0, tau := p[ExpAmp], p[ExpOnset], p[ExpTau]
	e := math.Exp(-(t - t0) / tau)
	grad[ExpAmp] = e
	grad[ExpOnset] = a * e / tau
	grad[ExpTau] = a * e * (t - t0) / (tau * tau)
}

// Parameters of the double decay model, in the order the fit tables use.
const (
	ParFastAmp = iota
	ParOnset
	ParFastTau
	ParSlowAmp
	ParSlowTau
	ParConst
	NumDecayParams
)

// ParNames labels the double decay parameters.
var ParNames = [NumDecayParams]string{"A_fast", "t0", "tau_fast", "A_slow", "tau_slow", "const"}

// DoubleDecay is the falling edge model
//
//	f(t) = A_f*exp(-(t-t0)/tau_f) + A_s*exp(-(t-t0)/tau_s) + C
type DoubleDecay struct{}

func (DoubleDecay) NumParams() int { return NumDecayParams }

func (DoubleDecay) Eval(t float64, p []float64) float64 {
	fast, slow, c := DoubleDecay{}.Components(t, p)
	return fast + slow + c
}

func (DoubleDecay) Grad(t float64, p []float64, grad []float64) {
	t0 := p[ParOnset]
	tauF, tauS := p[ParFastTau], p[ParSlowTau]
	ef := math.Exp(-(t - t0) / tauF)
	es := math.Exp(-(t - t0) / tauS)
	grad[ParFastAmp] = ef
	grad[ParOnset] = p[ParFastAmp]*ef/tauF + p[ParSlowAmp]*es/tauS
	grad[ParFastTau] = p[ParFastAmp] * ef * (t - t0) / (tauF * tauF)
	grad[ParSlowAmp] = es
	grad[ParSlowTau] = p[ParSlowAmp] * es * (t - t0) / (tauS * tauS)
	grad[ParConst] = 1
}

// Components returns the fast, slow and baseline contributions at t.
func (DoubleDecay) Components(t float64, p []float64) (fast, slow, baseline float64) {
	t0 := p[ParOnset]
	fast = p[ParFastAmp] * math.Exp(-(t-t0)/p[ParFastTau])
	slow = p[ParSlowAmp] * math.Exp(-(t-t0)/p[ParSlowTau])
	return fast, slow, p[ParConst]
}
