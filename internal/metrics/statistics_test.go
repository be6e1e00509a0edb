package metrics

import (
	"errors"
	"math"
	"testing"

	"tonguelab/internal/dataset"
	"tonguelab/internal/testsupport"
)

func TestAddAggregateImagesMean(t *testing.T) {
	recording := testsupport.NewRecording(t,
		testsupport.WithUltrasound(5, 2, 2, 100))

	cfg := AggregateConfig{Metrics: []string{"mean"}}
	if err := AddAggregateImages(recording, "RawUltrasound", cfg, nil); err != nil {
		t.Fatalf("AddAggregateImages failed: %v", err)
	}

	statistic, ok := recording.Statistic("AggregateImage mean on RawUltrasound")
	if !ok {
		t.Fatalf("aggregate image was not added")
	}
	image, err := statistic.Data()
	if err != nil {
		t.Fatalf("reading aggregate image: %v", err)
	}
	if dataset.ShapeString(image.Shape) != "2x2" {
		t.Fatalf("aggregate image shape = %s, want 2x2",
			dataset.ShapeString(image.Shape))
	}
	var want float64
	for f := 0; f < 5; f++ {
		want += math.Sin(float64(f) / 4)
	}
	want /= 5
	for i, v := range image.Data {
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("aggregate pixel %d = %g, want %g", i, v, want)
		}
	}
}

func TestAddAggregateImagesMemoizes(t *testing.T) {
	recording := testsupport.NewRecording(t,
		testsupport.WithUltrasound(5, 2, 2, 100))

	cfg := AggregateConfig{Metrics: []string{"mean", "median"}}
	if err := AddAggregateImages(recording, "RawUltrasound", cfg, nil); err != nil {
		t.Fatalf("first AddAggregateImages failed: %v", err)
	}
	names := recording.StatisticNames()
	if len(names) != 2 {
		t.Fatalf("got statistics %v, want 2 entries", names)
	}
	if err := AddAggregateImages(recording, "RawUltrasound", cfg, nil); err != nil {
		t.Fatalf("second AddAggregateImages failed: %v", err)
	}
	if got := recording.StatisticNames(); len(got) != 2 {
		t.Fatalf("second run changed statistics to %v", got)
	}
}

func TestAddDistanceMatrices(t *testing.T) {
	first := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_001"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	second := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_002"),
		testsupport.WithUltrasound(7, 2, 2, 100))
	session := testsupport.NewSession(t, "P1_session1", first, second)

	aggregates := AggregateConfig{Metrics: []string{"mean"}}
	for _, recording := range session.Recordings() {
		if err := AddAggregateImages(recording, "RawUltrasound", aggregates, nil); err != nil {
			t.Fatalf("AddAggregateImages failed: %v", err)
		}
	}

	cfg := DistanceConfig{Metrics: []string{"mean_squared_error"}}
	if err := AddDistanceMatrices(session, "RawUltrasound", cfg, nil); err != nil {
		t.Fatalf("AddDistanceMatrices failed: %v", err)
	}

	statistic, ok := session.Statistic("DistanceMatrix mean_squared_error on RawUltrasound")
	if !ok {
		t.Fatalf("distance matrix was not added")
	}
	matrix, err := statistic.Data()
	if err != nil {
		t.Fatalf("reading distance matrix: %v", err)
	}
	if dataset.ShapeString(matrix.Shape) != "2x2" {
		t.Fatalf("matrix shape = %s, want 2x2", dataset.ShapeString(matrix.Shape))
	}
	if matrix.Data[0] != 0 || matrix.Data[3] != 0 {
		t.Fatalf("matrix diagonal is not zero: %v", matrix.Data)
	}
	if matrix.Data[1] != matrix.Data[2] {
		t.Fatalf("matrix is not symmetric: %v", matrix.Data)
	}
	if matrix.Data[1] == 0 {
		t.Fatalf("distinct recordings have zero distance")
	}
}

func bandedUltrasoundRecording(t *testing.T, basename string, frame []float64) *dataset.Recording {
	t.Helper()
	array, err := dataset.NewArray([]int{1, 2, 2}, frame)
	if err != nil {
		t.Fatalf("building frame array: %v", err)
	}
	return testsupport.NewRecording(t,
		testsupport.WithBasename(basename),
		testsupport.WithModality(dataset.ModalityConfig{
			Meta: dataset.UltrasoundMeta{
				RecordedMeta: dataset.RecordedMeta{Kind: dataset.KindRawUltrasound},
				FramesPerSec: 100,
				NumVectors:   2,
				PixPerVector: 2,
				BitsPerPixel: 8,
			},
			Series: testsupport.NewSeries(t, array, 100),
		}))
}

func TestAddDistanceMatricesSliced(t *testing.T) {
	// the recordings agree on the first scanline and differ on the second
	first := bandedUltrasoundRecording(t, "P1_001", []float64{0, 0, 10, 10})
	second := bandedUltrasoundRecording(t, "P1_002", []float64{0, 0, 30, 30})
	session := testsupport.NewSession(t, "P1_session1", first, second)

	aggregates := AggregateConfig{Metrics: []string{"mean"}}
	for _, recording := range session.Recordings() {
		if err := AddAggregateImages(recording, "RawUltrasound", aggregates, nil); err != nil {
			t.Fatalf("AddAggregateImages failed: %v", err)
		}
	}

	cfg := DistanceConfig{
		Metrics:      []string{"mean_squared_error"},
		SliceSize:    1,
		SliceOffsets: []int{0, 1},
	}
	if err := AddDistanceMatrices(session, "RawUltrasound", cfg, nil); err != nil {
		t.Fatalf("AddDistanceMatrices failed: %v", err)
	}

	cases := []struct {
		name string
		want float64
	}{
		{"DistanceMatrix mean_squared_error on RawUltrasound slice_size 1 slice_offset 0", 0},
		{"DistanceMatrix mean_squared_error on RawUltrasound slice_size 1 slice_offset 1", 400},
	}
	for _, c := range cases {
		statistic, ok := session.Statistic(c.name)
		if !ok {
			t.Fatalf("statistic %q was not added; session has %v",
				c.name, session.StatisticNames())
		}
		matrix, err := statistic.Data()
		if err != nil {
			t.Fatalf("reading %q: %v", c.name, err)
		}
		if dataset.ShapeString(matrix.Shape) != "2x2" {
			t.Fatalf("%q shape = %s, want 2x2", c.name, dataset.ShapeString(matrix.Shape))
		}
		if matrix.Data[1] != c.want {
			t.Errorf("%q distance = %g, want %g", c.name, matrix.Data[1], c.want)
		}
	}
}

func TestAddDistanceMatricesSliceOutsideImage(t *testing.T) {
	first := bandedUltrasoundRecording(t, "P1_001", []float64{0, 0, 10, 10})
	second := bandedUltrasoundRecording(t, "P1_002", []float64{0, 0, 30, 30})
	session := testsupport.NewSession(t, "P1_session1", first, second)

	aggregates := AggregateConfig{Metrics: []string{"mean"}}
	for _, recording := range session.Recordings() {
		if err := AddAggregateImages(recording, "RawUltrasound", aggregates, nil); err != nil {
			t.Fatalf("AddAggregateImages failed: %v", err)
		}
	}

	cfg := DistanceConfig{
		Metrics:      []string{"mean_squared_error"},
		SliceSize:    2,
		SliceOffsets: []int{1},
	}
	err := AddDistanceMatrices(session, "RawUltrasound", cfg, nil)
	if !errors.Is(err, dataset.ErrDimensionMismatch) {
		t.Fatalf("out-of-range slice gave %v, want ErrDimensionMismatch", err)
	}
}

func TestAddDistanceMatricesRequiresAggregates(t *testing.T) {
	first := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_001"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	second := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_002"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	session := testsupport.NewSession(t, "P1_session1", first, second)

	aggregates := AggregateConfig{Metrics: []string{"mean"}}
	if err := AddAggregateImages(first, "RawUltrasound", aggregates, nil); err != nil {
		t.Fatalf("AddAggregateImages failed: %v", err)
	}

	cfg := DistanceConfig{Metrics: []string{"mean_squared_error"}}
	err := AddDistanceMatrices(session, "RawUltrasound", cfg, nil)
	if !errors.Is(err, dataset.ErrMissingData) {
		t.Fatalf("missing aggregate gave %v, want ErrMissingData", err)
	}
}

func TestAddDistanceMatricesSkipsExcludedRecordings(t *testing.T) {
	first := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_001"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	second := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_002"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	third := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_003"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	third.Exclude()
	session := testsupport.NewSession(t, "P1_session1", first, second, third)

	aggregates := AggregateConfig{Metrics: []string{"mean"}}
	for _, recording := range []*dataset.Recording{first, second} {
		if err := AddAggregateImages(recording, "RawUltrasound", aggregates, nil); err != nil {
			t.Fatalf("AddAggregateImages failed: %v", err)
		}
	}

	cfg := DistanceConfig{Metrics: []string{"mean_squared_error"}}
	if err := AddDistanceMatrices(session, "RawUltrasound", cfg, nil); err != nil {
		t.Fatalf("AddDistanceMatrices failed: %v", err)
	}
	statistic, _ := session.Statistic("DistanceMatrix mean_squared_error on RawUltrasound")
	matrix, err := statistic.Data()
	if err != nil {
		t.Fatalf("reading distance matrix: %v", err)
	}
	if dataset.ShapeString(matrix.Shape) != "2x2" {
		t.Fatalf("excluded recording contributed to the matrix: shape %s",
			dataset.ShapeString(matrix.Shape))
	}
}
