package dataset

import (
	"errors"
	"math"
	"testing"
)

func TestNewSeriesValidation(t *testing.T) {
	array := Zeros(4)
	good := []float64{0, 0.01, 0.02, 0.03}

	if _, err := NewSeries(nil, 100, good); !errors.Is(err, ErrMetadata) {
		t.Errorf("nil samples: got %v", err)
	}
	if _, err := NewSeries(array, 0, good); !errors.Is(err, ErrMetadata) {
		t.Errorf("zero rate: got %v", err)
	}
	if _, err := NewSeries(array, math.NaN(), good); !errors.Is(err, ErrMetadata) {
		t.Errorf("NaN rate: got %v", err)
	}
	if _, err := NewSeries(array, 100, good[:3]); !errors.Is(err, ErrMetadata) {
		t.Errorf("short timevector: got %v", err)
	}
	if _, err := NewSeries(array, 100, []float64{0, 0.02, 0.01, 0.03}); !errors.Is(err, ErrMetadata) {
		t.Errorf("decreasing timevector: got %v", err)
	}
	if _, err := NewSeries(array, 100, good); err != nil {
		t.Errorf("valid series rejected: %v", err)
	}
}

func TestTimePrecision(t *testing.T) {
	array := Zeros(4)

	even, err := NewSeries(array, 100, []float64{0, 0.01, 0.02, 0.03})
	if err != nil {
		t.Fatalf("building even series: %v", err)
	}
	if precision := even.TimePrecision(); precision > 1e-12 {
		t.Errorf("even spacing precision = %g, want ~0", precision)
	}

	// spacings 0.01, 0.02, 0.01 have mean 4/300; the middle one
	// deviates by 0.02 - 4/300
	jittered, err := NewSeries(array, 100, []float64{0, 0.01, 0.03, 0.04})
	if err != nil {
		t.Fatalf("building jittered series: %v", err)
	}
	want := 0.02 - 4.0/300.0
	if precision := jittered.TimePrecision(); math.Abs(precision-want) > 1e-12 {
		t.Errorf("jittered precision = %g, want %g", precision, want)
	}
}

func TestTimesEqual(t *testing.T) {
	array := Zeros(4)
	series, err := NewSeries(array, 100, []float64{0, 0.01, 0.03, 0.04})
	if err != nil {
		t.Fatalf("building series: %v", err)
	}

	// explicit epsilon wins
	if series.TimesEqual(0.01, 0.02, 0.005) {
		t.Error("0.01 and 0.02 should differ at epsilon 0.005")
	}
	if !series.TimesEqual(0.01, 0.012, 0.005) {
		t.Error("0.01 and 0.012 should match at epsilon 0.005")
	}
	// zero epsilon falls back to the series' own precision
	if !series.TimesEqual(0.01, 0.01+series.TimePrecision()/2, 0) {
		t.Error("difference below the series precision should match")
	}
}

func TestArrayShapeHelpers(t *testing.T) {
	array, err := NewArray([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("NewArray failed: %v", err)
	}
	if array.Frames() != 2 || array.FrameSize() != 3 {
		t.Fatalf("frames/size = %d/%d, want 2/3", array.Frames(), array.FrameSize())
	}
	frame := array.Frame(1)
	if len(frame) != 3 || frame[0] != 4 {
		t.Fatalf("frame 1 = %v", frame)
	}

	if _, err := NewArray([]int{2, 3}, []float64{1, 2, 3}); !errors.Is(err, ErrMetadata) {
		t.Fatalf("size mismatch: got %v", err)
	}

	shape, err := ParseShape(ShapeString([]int{96, 64, 412}))
	if err != nil {
		t.Fatalf("shape round trip failed: %v", err)
	}
	if len(shape) != 3 || shape[0] != 96 || shape[2] != 412 {
		t.Fatalf("shape round trip = %v", shape)
	}
}

func TestNameSpecGrammar(t *testing.T) {
	cases := []struct {
		spec NameSpec
		want string
	}{
		{NameSpec{Class: "PD", Metric: "l2", Timestep: 1, Parent: "RawUltrasound"},
			"PD l2 on RawUltrasound"},
		{NameSpec{Class: "PD", Metric: "l1", Mask: "bottom", Timestep: 2, Parent: "RawUltrasound"},
			"PD l1 bottom ts2 on RawUltrasound"},
		{NameSpec{Class: "PD", Metric: "l2", Timestep: 1, Parent: "RawUltrasound", Interpolated: true},
			"Interpolated PD l2 on RawUltrasound"},
		{NameSpec{Class: "SplineMetric", Metric: "annd", Timestep: 1, Parent: "Splines", DownsampledBy: 3},
			"SplineMetric annd on Splines downsampled by 3"},
		{NameSpec{Class: "PD", Metric: "l2", Timestep: 1, Parent: "RawUltrasound", SliceSize: 4, SliceOffset: 2},
			"PD l2 on RawUltrasound slice_size 4 slice_offset 2"},
	}
	for _, c := range cases {
		if got := c.spec.String(); got != c.want {
			t.Errorf("NameSpec = %q, want %q", got, c.want)
		}
	}
	// rendering is deterministic
	spec := NameSpec{Class: "PD", Metric: "l2", Timestep: 2, Parent: "RawUltrasound"}
	if spec.String() != spec.String() {
		t.Error("name rendering is not stable")
	}
}

func TestPointAnnotationTimeLimits(t *testing.T) {
	annotations := &PointAnnotations{
		Type:    AnnotationPeaks,
		Indices: []int{1, 3, 5, 7},
		Times:   []float64{0.1, 0.3, 0.5, 0.7},
		Properties: map[string][]float64{
			"prominences": {4, 3, 2, 1},
		},
	}
	annotations.ApplyLowerTimeLimit(0.2)
	annotations.ApplyUpperTimeLimit(0.6)

	if len(annotations.Indices) != 2 || annotations.Indices[0] != 3 || annotations.Indices[1] != 5 {
		t.Fatalf("indices = %v, want [3 5]", annotations.Indices)
	}
	if annotations.Times[0] != 0.3 || annotations.Times[1] != 0.5 {
		t.Fatalf("times = %v, want [0.3 0.5]", annotations.Times)
	}
	prominences := annotations.Properties["prominences"]
	if len(prominences) != 2 || prominences[0] != 3 || prominences[1] != 2 {
		t.Fatalf("prominences = %v, want [3 2]", prominences)
	}
}
