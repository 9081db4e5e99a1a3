package timeconst

import (
	"fmt"
)

// Sample is one bin of an averaged waveform. Err is the uncertainty of the
// averaged amplitude; zero means unknown.
type Sample struct {
	Time      float64
	Amplitude float64
	Err       float64
}

// Profile is an averaged waveform of one channel at one source position.
// It is never modified after NewProfile returns.
type Profile struct {
	SeriesID int
	Channel  int
	Position float64
	samples  []Sample
	maxBin   int
}

func NewProfile(seriesID int, channel int, position float64, samples []Sample) (*Profile, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("profile series %d ch%d position %.2f has no samples", seriesID, channel, position)
	}
	copied := make([]Sample, len(samples))
	copy(copied, samples)

	maxBin := 0
	for i, s := range copied {
		if i > 0 && s.Time <= copied[i-1].Time {
			return nil, fmt.Errorf("profile series %d ch%d position %.2f: bin %d time %.3f not increasing",
				seriesID, channel, position, i, s.Time)
		}
		if s.Amplitude > copied[maxBin].Amplitude {
			maxBin = i
		}
	}
	return &Profile{
		SeriesID: seriesID,
		Channel:  channel,
		Position: position,
		samples:  copied,
		maxBin:   maxBin,
	}, nil
}

// NewProfileFromArrays builds a profile from parallel time, amplitude and
// (optional, may be nil) error arrays.
func NewProfileFromArrays(seriesID int, channel int, position float64, times, amplitudes, errs []float64) (*Profile, error) {
	if len(times) != len(amplitudes) {
		return nil, fmt.Errorf("profile series %d ch%d: %d times but %d amplitudes",
			seriesID, channel, len(times), len(amplitudes))
	}
	if errs != nil && len(errs) != len(times) {
		return nil, fmt.Errorf("profile series %d ch%d: %d times but %d errors",
			seriesID, channel, len(times), len(errs))
	}
	samples := make([]Sample, len(times))
	for i := range times {
		samples[i] = Sample{Time: times[i], Amplitude: amplitudes[i]}
		if errs != nil {
			samples[i].Err = errs[i]
		}
	}
	return NewProfile(seriesID, channel, position, samples)
}

func (p *Profile) Len() int {
	return len(p.samples)
}

// Sample returns bin i.
func (p *Profile) Sample(i int) Sample {
	return p.samples[i]
}

func (p *Profile) MaxBin() int {
	return p.maxBin
}

// PeakTime is the bin centre of the maximum amplitude.
func (p *Profile) PeakTime() float64 {
	return p.samples[p.maxBin].Time
}

// LastTime is the bin centre of the last bin.
func (p *Profile) LastTime() float64 {
	return p.samples[len(p.samples)-1].Time
}

// Name follows the S<series>_ch<channel>_pos<position> convention used by the
// averaging tools. It is only a label; the channel is always read from the
// Channel field.
func (p *Profile) Name() string {
	return fmt.Sprintf("S%d_ch%d_pos%.1f", p.SeriesID, p.Channel, p.Position)
}

// window returns the samples with lo <= t < hi, or lo <= t <= hi when
// closed is set.
func (p *Profile) window(lo, hi float64, closed bool) []Sample {
	out := make([]Sample, 0)
	for _, s := range p.samples {
		if s.Time < lo {
			continue
		}
		if s.Time > hi || (!closed && s.Time == hi) {
			break
		}
		out = append(out, s)
	}
	return out
}

func checkChannel(ch int) error {
	if ch != 0 && ch != 1 {
		return fmt.Errorf("%w: %d, possible options are 0 or 1", ErrInvalidChannel, ch)
	}
	return nil
}
