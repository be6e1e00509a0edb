package pipeline

import (
	"errors"
	"log/slog"
	"testing"

	"tonguelab/internal/config"
	"tonguelab/internal/dataset"
	"tonguelab/internal/testsupport"
)

func TestProcessModalitiesSkipsExcluded(t *testing.T) {
	first := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_001"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	second := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_002"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	second.Exclude()
	session := testsupport.NewSession(t, "P1_session1", first, second)

	var processed []string
	runner := NewRunner(nil)
	err := runner.ProcessModalities(session, []ModalityOperation{{
		Label: "record",
		Run: func(recording *dataset.Recording, logger *slog.Logger) error {
			processed = append(processed, recording.Name())
			return nil
		},
	}})
	if err != nil {
		t.Fatalf("ProcessModalities failed: %v", err)
	}
	if len(processed) != 1 || processed[0] != "P1_001" {
		t.Fatalf("processed %v, want only P1_001", processed)
	}
}

func TestProcessModalitiesAbortsOnError(t *testing.T) {
	first := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_001"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	second := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_002"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	session := testsupport.NewSession(t, "P1_session1", first, second)

	boom := errors.New("derivation broke")
	var calls int
	runner := NewRunner(nil)
	err := runner.ProcessModalities(session, []ModalityOperation{{
		Label: "explode",
		Run: func(recording *dataset.Recording, logger *slog.Logger) error {
			calls++
			return boom
		},
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("ProcessModalities error = %v, want wrapped %v", err, boom)
	}
	if calls != 1 {
		t.Fatalf("run continued after the first error: %d calls", calls)
	}
}

func TestProcessModalitiesOperationOrder(t *testing.T) {
	recording := testsupport.NewRecording(t,
		testsupport.WithUltrasound(5, 2, 2, 100))
	session := testsupport.NewSession(t, "P1_session1", recording)

	var order []string
	op := func(label string) ModalityOperation {
		return ModalityOperation{
			Label: label,
			Run: func(*dataset.Recording, *slog.Logger) error {
				order = append(order, label)
				return nil
			},
		}
	}
	runner := NewRunner(nil)
	err := runner.ProcessModalities(session, []ModalityOperation{
		op("first"), op("second"), op("third"),
	})
	if err != nil {
		t.Fatalf("ProcessModalities failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("operations ran in order %v, want %v", order, want)
		}
	}
}

func TestAddDerivedDataFromConfig(t *testing.T) {
	recording := testsupport.NewRecording(t,
		testsupport.WithUltrasound(8, 2, 2, 100))
	session := testsupport.NewSession(t, "P1_session1", recording)

	cfg := config.Default()
	cfg.Pipeline.PixelDifference.Norms = []string{"l2"}
	cfg.Pipeline.PixelDifference.Timesteps = []int{2}
	cfg.Pipeline.PixelDifference.ReleaseDataMemory = false
	cfg.Pipeline.AggregateImages.Metrics = []string{"mean"}
	cfg.Pipeline.DistanceMatrices.Metrics = []string{"mean_squared_error"}
	cfg.Pipeline.Downsample.ModalityPattern = "PD"
	cfg.Pipeline.Downsample.Ratios = []int{2}
	cfg.Pipeline.Downsample.MatchTimestep = true
	cfg.Pipeline.Peaks.ModalityPattern = "PD l2"
	cfg.Pipeline.SplineMetrics.Metrics = nil

	runner := NewRunner(nil)
	if err := runner.AddDerivedData(session, &cfg); err != nil {
		t.Fatalf("AddDerivedData failed: %v", err)
	}

	if !recording.HasModality("PD l2 ts2 on RawUltrasound") {
		t.Fatalf("pixel difference was not derived")
	}
	if !recording.HasModality("PD l2 ts2 on RawUltrasound downsampled by 2") {
		t.Fatalf("downsampled copy was not derived")
	}
	if !recording.HasStatistic("AggregateImage mean on RawUltrasound") {
		t.Fatalf("aggregate image was not derived")
	}
	if !session.HasStatistic("DistanceMatrix mean_squared_error on RawUltrasound") {
		t.Fatalf("distance matrix was not derived")
	}
	pd, _ := recording.Modality("PD l2 ts2 on RawUltrasound")
	if _, ok := pd.Annotations(dataset.AnnotationPeaks); !ok {
		t.Fatalf("peak annotations were not attached")
	}

	// the whole pipeline is idempotent
	before := recording.ModalityCount()
	if err := runner.AddDerivedData(session, &cfg); err != nil {
		t.Fatalf("second AddDerivedData failed: %v", err)
	}
	if recording.ModalityCount() != before {
		t.Fatalf("second run changed modality count")
	}
}

func TestAddDerivedDataMissingTargetIsSkipped(t *testing.T) {
	// a recording without splines is logged and skipped, not an error
	recording := testsupport.NewRecording(t,
		testsupport.WithUltrasound(5, 2, 2, 100))
	session := testsupport.NewSession(t, "P1_session1", recording)

	cfg := config.Default()
	cfg.Pipeline.PixelDifference.Norms = nil
	cfg.Pipeline.AggregateImages.Metrics = nil
	cfg.Pipeline.DistanceMatrices.Metrics = nil
	cfg.Pipeline.Downsample.ModalityPattern = ""
	cfg.Pipeline.Peaks.ModalityPattern = ""
	cfg.Pipeline.SplineMetrics.Metrics = []string{"annd"}
	cfg.Pipeline.SplineMetrics.Timesteps = []int{1}

	runner := NewRunner(nil)
	if err := runner.AddDerivedData(session, &cfg); err != nil {
		t.Fatalf("AddDerivedData failed: %v", err)
	}
	if recording.ModalityCount() != 1 {
		t.Fatalf("missing target still derived something")
	}
}
