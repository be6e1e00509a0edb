package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrFilterDesign marks an unrealisable filter specification.
var ErrFilterDesign = errors.New("unrealisable filter")

// biquad is one second-order IIR section in direct form II transposed.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// highPassBiquad designs a high-pass section with the given cutoff and
// quality factor.
func highPassBiquad(samplingRate, cutoff, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / samplingRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosw0) / 2 / a0,
		b1: -(1 + cosw0) / a0,
		b2: (1 + cosw0) / 2 / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func (s biquad) apply(signal []float64) []float64 {
	out := make([]float64, len(signal))
	var z1, z2 float64
	for i, x := range signal {
		y := s.b0*x + z1
		z1 = s.b1*x - s.a1*y + z2
		z2 = s.b2*x - s.a2*y
		out[i] = y
	}
	return out
}

// MainsFilter removes electrical mains interference from audio. It is
// built once per sampling rate so importers do not redesign the filter
// for every recording.
type MainsFilter struct {
	sections       []biquad
	samplingRate   float64
	mainsFrequency float64
}

// NewMainsFilter designs a high-pass filter with its stop band at the
// given mains frequency, typically 50 Hz in Europe and 60 Hz in North
// America. The filter is a cascade of Butterworth-style sections with
// staggered Q values.
func NewMainsFilter(samplingRate, mainsFrequency float64) (*MainsFilter, error) {
	if samplingRate <= 0 {
		return nil, fmt.Errorf("%w: sampling rate %g", ErrFilterDesign, samplingRate)
	}
	if mainsFrequency <= 0 || mainsFrequency >= samplingRate/2 {
		return nil, fmt.Errorf(
			"%w: mains frequency %g outside (0, %g)",
			ErrFilterDesign, mainsFrequency, samplingRate/2)
	}
	// Butterworth pole Q values for a 10th order filter split into
	// five cascaded second-order sections.
	qs := []float64{
		0.50623256,
		0.56116312,
		0.70710678,
		1.10134463,
		3.19622661,
	}
	sections := make([]biquad, len(qs))
	for i, q := range qs {
		sections[i] = highPassBiquad(samplingRate, mainsFrequency, q)
	}
	return &MainsFilter{
		sections:       sections,
		samplingRate:   samplingRate,
		mainsFrequency: mainsFrequency,
	}, nil
}

// SamplingRate returns the rate the filter was designed for.
func (f *MainsFilter) SamplingRate() float64 { return f.samplingRate }

// Frequency returns the mains frequency the stop band sits at.
func (f *MainsFilter) Frequency() float64 { return f.mainsFrequency }

// Apply runs the filter forwards and backwards over a copy of the
// signal, cancelling the phase shift a single pass would introduce.
func (f *MainsFilter) Apply(signal []float64) []float64 {
	out := append([]float64{}, signal...)
	for _, section := range f.sections {
		out = section.apply(out)
	}
	reverse(out)
	for _, section := range f.sections {
		out = section.apply(out)
	}
	reverse(out)
	return out
}

func reverse(signal []float64) {
	for i, j := 0, len(signal)-1; i < j; i, j = i+1, j-1 {
		signal[i], signal[j] = signal[j], signal[i]
	}
}
