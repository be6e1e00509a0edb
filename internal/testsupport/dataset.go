package testsupport

import (
	"math"
	"testing"
	"time"

	"tonguelab/internal/dataset"
)

// RecordingOption allows callers to customize a generated test
// recording.
type RecordingOption func(*recordingBuilder)

type recordingBuilder struct {
	t         testing.TB
	meta      dataset.RecordingMeta
	modConfig []dataset.ModalityConfig
}

// NewRecording builds a recording with sensible defaults and applies
// any provided options.
func NewRecording(t testing.TB, opts ...RecordingOption) *dataset.Recording {
	t.Helper()

	builder := &recordingBuilder{
		t: t,
		meta: dataset.RecordingMeta{
			Prompt:          "tiger",
			TimeOfRecording: time.Date(2023, 4, 12, 10, 30, 0, 0, time.UTC),
			ParticipantID:   "P1",
			Basename:        "P1_001_tiger",
			Path:            t.TempDir(),
		},
	}
	for _, opt := range opts {
		opt(builder)
	}

	recording, err := dataset.NewRecording(builder.meta, dataset.FileInfo{})
	if err != nil {
		t.Fatalf("building test recording: %v", err)
	}
	for _, cfg := range builder.modConfig {
		modality, err := dataset.NewModality(cfg)
		if err != nil {
			t.Fatalf("building test modality: %v", err)
		}
		if err := recording.AddModality(modality, false); err != nil {
			t.Fatalf("adding test modality: %v", err)
		}
	}
	return recording
}

// WithBasename overrides the recording's basename.
func WithBasename(basename string) RecordingOption {
	return func(b *recordingBuilder) {
		b.meta.Basename = basename
	}
}

// WithPrompt overrides the recording's prompt.
func WithPrompt(prompt string) RecordingOption {
	return func(b *recordingBuilder) {
		b.meta.Prompt = prompt
	}
}

// WithModality adds a preloaded modality built from the given config.
func WithModality(cfg dataset.ModalityConfig) RecordingOption {
	return func(b *recordingBuilder) {
		b.modConfig = append(b.modConfig, cfg)
	}
}

// WithUltrasound adds a small preloaded raw ultrasound modality with
// the given number of frames. Frame f has every pixel set to
// sin(f/4), which gives frame differences that are neither constant
// nor degenerate.
func WithUltrasound(frames, rows, cols int, samplingRate float64) RecordingOption {
	return func(b *recordingBuilder) {
		b.modConfig = append(b.modConfig, dataset.ModalityConfig{
			Meta: dataset.UltrasoundMeta{
				RecordedMeta: dataset.RecordedMeta{Kind: dataset.KindRawUltrasound},
				FramesPerSec: samplingRate,
				NumVectors:   rows,
				PixPerVector: cols,
				BitsPerPixel: 8,
			},
			Series: UltrasoundSeries(b.t, frames, rows, cols, samplingRate),
		})
	}
}

// UltrasoundSeries builds a synthetic ultrasound series.
func UltrasoundSeries(t testing.TB, frames, rows, cols int, samplingRate float64) *dataset.Series {
	t.Helper()

	data := make([]float64, frames*rows*cols)
	for f := 0; f < frames; f++ {
		value := math.Sin(float64(f) / 4)
		for i := 0; i < rows*cols; i++ {
			data[f*rows*cols+i] = value
		}
	}
	array, err := dataset.NewArray([]int{frames, rows, cols}, data)
	if err != nil {
		t.Fatalf("building test array: %v", err)
	}
	return NewSeries(t, array, samplingRate)
}

// CurveSeries builds a 1-dimensional series from the given samples.
func CurveSeries(t testing.TB, samples []float64, samplingRate float64) *dataset.Series {
	t.Helper()

	array, err := dataset.NewArray([]int{len(samples)}, samples)
	if err != nil {
		t.Fatalf("building test array: %v", err)
	}
	return NewSeries(t, array, samplingRate)
}

// NewSeries wraps an array in a series with an evenly spaced
// timevector starting at zero.
func NewSeries(t testing.TB, array *dataset.Array, samplingRate float64) *dataset.Series {
	t.Helper()

	timevector := make([]float64, array.Frames())
	for i := range timevector {
		timevector[i] = float64(i) / samplingRate
	}
	series, err := dataset.NewSeries(array, samplingRate, timevector)
	if err != nil {
		t.Fatalf("building test series: %v", err)
	}
	return series
}

// NewSession builds a session owning the given recordings.
func NewSession(t testing.TB, name string, recordings ...*dataset.Recording) *dataset.Session {
	t.Helper()

	session, err := dataset.NewSession(
		name,
		dataset.SessionConfig{DataSource: "tonguelab"},
		dataset.FileInfo{},
		recordings,
	)
	if err != nil {
		t.Fatalf("building test session: %v", err)
	}
	return session
}
