package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Series bundles a modality's numeric content: a sample array whose
// first axis is time, the sampling rate, and the timestamps of each
// sample. It is constructed by importers, by the store when reloading
// saved data, and by derivation functions; consumers never build one
// by hand.
type Series struct {
	samples      *Array
	samplingRate float64
	time         []float64

	timePrecision float64
	precisionSet  bool
}

// NewSeries validates and builds a Series.
func NewSeries(samples *Array, samplingRate float64, timevector []float64) (*Series, error) {
	if samples == nil {
		return nil, fmt.Errorf("%w: series needs a sample array", ErrMetadata)
	}
	if samplingRate <= 0 || math.IsNaN(samplingRate) || math.IsInf(samplingRate, 0) {
		return nil, fmt.Errorf(
			"%w: sampling rate must be a positive finite number, got %g",
			ErrMetadata, samplingRate)
	}
	if len(timevector) != samples.Frames() {
		return nil, fmt.Errorf(
			"%w: timevector length %d does not match %d frames",
			ErrMetadata, len(timevector), samples.Frames())
	}
	for i := 1; i < len(timevector); i++ {
		if timevector[i] < timevector[i-1] {
			return nil, fmt.Errorf(
				"%w: timevector decreases at index %d (%g < %g)",
				ErrMetadata, i, timevector[i], timevector[i-1])
		}
	}
	return &Series{samples: samples, samplingRate: samplingRate, time: timevector}, nil
}

// Samples returns the sample array.
func (s *Series) Samples() *Array { return s.samples }

// SamplingRate returns the sampling rate in Hz.
func (s *Series) SamplingRate() float64 { return s.samplingRate }

// Timevector returns the timestamps, one per frame, in seconds.
func (s *Series) Timevector() []float64 { return s.time }

// MinTime returns the first timestamp.
func (s *Series) MinTime() float64 {
	if len(s.time) == 0 {
		return 0
	}
	return s.time[0]
}

// MaxTime returns the last timestamp.
func (s *Series) MaxTime() float64 {
	if len(s.time) == 0 {
		return 0
	}
	return s.time[len(s.time)-1]
}

// TimePrecision is the maximum absolute deviation of successive sample
// spacings from their mean. Independently derived time vectors (spline
// timestamps vs. ultrasound timestamps) drift, so comparisons between
// them must tolerate at least this much; exact float equality is never
// correct.
func (s *Series) TimePrecision() float64 {
	if s.precisionSet {
		return s.timePrecision
	}
	if len(s.time) < 2 {
		s.precisionSet = true
		return 0
	}
	diffs := make([]float64, len(s.time)-1)
	for i := range diffs {
		diffs[i] = s.time[i+1] - s.time[i]
	}
	mean := stat.Mean(diffs, nil)
	var max float64
	for _, d := range diffs {
		if dev := math.Abs(d - mean); dev > max {
			max = dev
		}
	}
	s.timePrecision = max
	s.precisionSet = true
	return max
}

// TimesEqual compares two timestamps with the given tolerance. A zero
// or negative epsilon falls back to this Series' own precision.
func (s *Series) TimesEqual(a, b, epsilon float64) bool {
	if epsilon <= 0 {
		epsilon = s.TimePrecision()
	}
	return math.Abs(a-b) <= epsilon
}

// replaceSamples swaps in a new sample array. The caller guarantees nil
// means release; shape checking belongs to the container's setter.
func (s *Series) replaceSamples(samples *Array) {
	s.samples = samples
}
