package timeconst

import (
	"math"
	"math/rand/v2"
	"testing"
)

// pulse describes a synthetic averaged waveform: a Gaussian rise up to the
// onset followed by the double decay.
type pulse struct {
	FastAmp  float64
	FastTau  float64
	SlowAmp  float64
	SlowTau  float64
	Baseline float64
	Onset    float64
	Bins     int
	Sigma    float64
	Seed     uint64
}

func defaultPulse() pulse {
	return pulse{
		FastAmp:  300,
		FastTau:  30,
		SlowAmp:  60,
		SlowTau:  250,
		Baseline: 2,
		Onset:    100,
		Bins:     1024,
	}
}

func (p pulse) samples() []Sample {
	var rng *rand.Rand
	if p.Sigma > 0 {
		rng = rand.New(rand.NewPCG(p.Seed, 0x5eed))
	}
	samples := make([]Sample, p.Bins)
	for i := range samples {
		t := float64(i)
		var y float64
		if t < p.Onset {
			d := t - p.Onset
			y = p.Baseline + (p.FastAmp+p.SlowAmp)*math.Exp(-d*d/18)
		} else {
			y = p.FastAmp*math.Exp(-(t-p.Onset)/p.FastTau) + p.SlowAmp*math.Exp(-(t-p.Onset)/p.SlowTau) + p.Baseline
		}
		if rng != nil {
			y += rng.NormFloat64() * p.Sigma
		}
		samples[i] = Sample{Time: t, Amplitude: y}
	}
	return samples
}

func (p pulse) profile(t *testing.T, seriesID, channel int, position float64) *Profile {
	t.Helper()
	prof, err := NewProfile(seriesID, channel, position, p.samples())
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return prof
}

// amplitudeAt evaluates the fitted fast and slow components at time t,
// which removes the degeneracy between the amplitudes and the onset.
func amplitudeAt(r FitResult, t float64) (fast, slow float64) {
	fast, slow, _ = r.Model().Components(t)
	return fast, slow
}

func within(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}
