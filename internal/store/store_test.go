package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"tonguelab/internal/dataset"
	"tonguelab/internal/metrics"
	"tonguelab/internal/testsupport"
	"tonguelab/internal/textgrid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// derivedSession builds a two-recording session with PD modalities,
// aggregate images, a distance matrix, and an annotated recording.
func derivedSession(t *testing.T) *dataset.Session {
	t.Helper()
	first := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_001_tiger"),
		testsupport.WithUltrasound(5, 2, 2, 100))
	second := testsupport.NewRecording(t,
		testsupport.WithBasename("P1_002_apple"),
		testsupport.WithPrompt("apple"),
		testsupport.WithUltrasound(7, 2, 2, 100))
	session := testsupport.NewSession(t, "session1", first, second)

	pdConfig := metrics.PDConfig{Norms: []string{"l1", "l2"}, Timesteps: []int{1}}
	aggConfig := metrics.AggregateConfig{Metrics: []string{"mean"}}
	for _, recording := range session.Recordings() {
		if err := metrics.AddPD(recording, "RawUltrasound", pdConfig, nil); err != nil {
			t.Fatalf("deriving PD: %v", err)
		}
		if err := metrics.AddAggregateImages(recording, "RawUltrasound", aggConfig, nil); err != nil {
			t.Fatalf("deriving aggregate images: %v", err)
		}
	}
	distConfig := metrics.DistanceConfig{Metrics: []string{"mean_squared_error"}}
	if err := metrics.AddDistanceMatrices(session, "RawUltrasound", distConfig, nil); err != nil {
		t.Fatalf("deriving distance matrices: %v", err)
	}

	first.SetAnnotationState("go_signal", 0.25)
	first.SetAnnotationState("has_speech", true)
	grid := textgrid.New(0, 0.05)
	grid.AddIntervalTier("Utterance", []textgrid.Interval{
		{Xmin: 0, Xmax: 0.05, Text: "tiger"},
	})
	first.SetGrid(grid)

	pd, _ := first.Modality("PD l2 on RawUltrasound")
	pd.AddPointAnnotations(&dataset.PointAnnotations{
		Type:       dataset.AnnotationPeaks,
		Indices:    []int{1, 3},
		Times:      []float64{0.015, 0.035},
		Properties: map[string][]float64{"prominences": {2, 1.5}},
	})
	return session
}

func sameFloats(t *testing.T, label string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d values, want %d", label, len(got), len(want))
	}
	for i := range want {
		if math.Float64bits(got[i]) != math.Float64bits(want[i]) {
			t.Fatalf("%s: value %d = %g, want exactly %g", label, i, got[i], want[i])
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	original := derivedSession(t)
	if err := s.Save(context.Background(), original); err != nil {
		t.Fatalf("saving session: %v", err)
	}

	loaded, err := s.Load(context.Background(), "session1", nil)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	if loaded.Name() != original.Name() {
		t.Errorf("session name = %q, want %q", loaded.Name(), original.Name())
	}
	if loaded.Config().DataSource != original.Config().DataSource {
		t.Errorf("data source = %q, want %q",
			loaded.Config().DataSource, original.Config().DataSource)
	}
	if loaded.RecordingCount() != original.RecordingCount() {
		t.Fatalf("got %d recordings, want %d",
			loaded.RecordingCount(), original.RecordingCount())
	}

	for i, want := range original.Recordings() {
		got := loaded.Recordings()[i]
		if got.Name() != want.Name() {
			t.Fatalf("recording %d = %q, want %q", i, got.Name(), want.Name())
		}
		wantNames := want.ModalityNames()
		gotNames := got.ModalityNames()
		if len(gotNames) != len(wantNames) {
			t.Fatalf("%s: got %d modalities, want %d",
				want.Name(), len(gotNames), len(wantNames))
		}
		for j := range wantNames {
			if gotNames[j] != wantNames[j] {
				t.Fatalf("%s: modality %d = %q, want %q",
					want.Name(), j, gotNames[j], wantNames[j])
			}
		}
	}
}

func TestRoundTripDataIsBitIdentical(t *testing.T) {
	s := openTestStore(t)
	original := derivedSession(t)
	if err := s.Save(context.Background(), original); err != nil {
		t.Fatalf("saving session: %v", err)
	}
	loaded, err := s.Load(context.Background(), "session1", nil)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}

	for i, want := range original.Recordings() {
		got := loaded.Recordings()[i]
		for _, name := range want.ModalityNames() {
			wantModality, _ := want.Modality(name)
			gotModality, ok := got.Modality(name)
			if !ok {
				t.Fatalf("%s: modality %q missing after load", want.Name(), name)
			}
			wantData, err := wantModality.Data()
			if err != nil {
				t.Fatalf("%s/%s: original data: %v", want.Name(), name, err)
			}
			gotData, err := gotModality.Data()
			if err != nil {
				t.Fatalf("%s/%s: loaded data: %v", want.Name(), name, err)
			}
			sameFloats(t, want.Name()+"/"+name+" data", gotData.Data, wantData.Data)

			wantTimes, _ := wantModality.Timevector()
			gotTimes, _ := gotModality.Timevector()
			sameFloats(t, want.Name()+"/"+name+" timevector", gotTimes, wantTimes)
		}

		for _, name := range want.StatisticNames() {
			wantStatistic, _ := want.Statistic(name)
			gotStatistic, ok := got.Statistic(name)
			if !ok {
				t.Fatalf("%s: statistic %q missing after load", want.Name(), name)
			}
			wantData, _ := wantStatistic.Data()
			gotData, err := gotStatistic.Data()
			if err != nil {
				t.Fatalf("%s/%s: loaded statistic: %v", want.Name(), name, err)
			}
			sameFloats(t, want.Name()+"/"+name, gotData.Data, wantData.Data)
		}
	}

	for _, name := range original.StatisticNames() {
		wantStatistic, _ := original.Statistic(name)
		gotStatistic, ok := loaded.Statistic(name)
		if !ok {
			t.Fatalf("session statistic %q missing after load", name)
		}
		wantData, _ := wantStatistic.Data()
		gotData, err := gotStatistic.Data()
		if err != nil {
			t.Fatalf("session statistic %q: %v", name, err)
		}
		sameFloats(t, "session/"+name, gotData.Data, wantData.Data)
	}
}

func TestRoundTripAnnotationsAndGrid(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(context.Background(), derivedSession(t)); err != nil {
		t.Fatalf("saving session: %v", err)
	}
	loaded, err := s.Load(context.Background(), "session1", nil)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}

	recording, ok := loaded.Recording("P1_001_tiger")
	if !ok {
		t.Fatal("annotated recording missing after load")
	}
	goSignal, ok := recording.AnnotationState("go_signal")
	if !ok {
		t.Fatal("go_signal state missing after load")
	}
	if value, ok := goSignal.(float64); !ok || value != 0.25 {
		t.Errorf("go_signal = %v, want 0.25", goSignal)
	}
	if hasSpeech, _ := recording.AnnotationState("has_speech"); hasSpeech != true {
		t.Errorf("has_speech = %v, want true", hasSpeech)
	}

	grid := recording.Grid()
	if grid == nil {
		t.Fatal("grid missing after load")
	}
	tier, ok := grid.Tier("Utterance")
	if !ok {
		t.Fatal("Utterance tier missing after load")
	}
	if len(tier.Intervals) != 1 || tier.Intervals[0].Text != "tiger" {
		t.Errorf("tier intervals = %+v", tier.Intervals)
	}

	pd, ok := recording.Modality("PD l2 on RawUltrasound")
	if !ok {
		t.Fatal("PD modality missing after load")
	}
	peaks, ok := pd.Annotations(dataset.AnnotationPeaks)
	if !ok {
		t.Fatal("peak annotations missing after load")
	}
	if len(peaks.Indices) != 2 || peaks.Indices[0] != 1 || peaks.Indices[1] != 3 {
		t.Errorf("peak indices = %v, want [1 3]", peaks.Indices)
	}
	sameFloats(t, "peak prominences",
		peaks.Properties["prominences"], []float64{2, 1.5})
}

func TestLoadedModalityReleaseAndReload(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(context.Background(), derivedSession(t)); err != nil {
		t.Fatalf("saving session: %v", err)
	}
	loaded, err := s.Load(context.Background(), "session1", nil)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}

	recording, _ := loaded.Recording("P1_001_tiger")
	pd, _ := recording.Modality("PD l1 on RawUltrasound")
	if pd.LoadCount() != 0 {
		t.Fatalf("load count = %d before first access, want 0", pd.LoadCount())
	}
	first, err := pd.Data()
	if err != nil {
		t.Fatalf("first access: %v", err)
	}
	if pd.LoadCount() != 1 {
		t.Fatalf("load count = %d after first access, want 1", pd.LoadCount())
	}

	if err := pd.SetData(nil); err != nil {
		t.Fatalf("releasing: %v", err)
	}
	second, err := pd.Data()
	if err != nil {
		t.Fatalf("access after release: %v", err)
	}
	if pd.LoadCount() != 2 {
		t.Fatalf("load count = %d after reload, want 2", pd.LoadCount())
	}
	sameFloats(t, "reloaded data", second.Data, first.Data)
}

func TestSaveReplacesPreviousSave(t *testing.T) {
	s := openTestStore(t)
	session := derivedSession(t)
	if err := s.Save(context.Background(), session); err != nil {
		t.Fatalf("first save: %v", err)
	}

	recording, _ := session.Recording("P1_002_apple")
	recording.Exclude()
	if err := s.Save(context.Background(), session); err != nil {
		t.Fatalf("second save: %v", err)
	}

	infos, err := s.Sessions(context.Background())
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d saved sessions, want 1", len(infos))
	}
	if infos[0].Recordings != 2 {
		t.Errorf("listed recordings = %d, want 2", infos[0].Recordings)
	}

	loaded, err := s.Load(context.Background(), "session1", nil)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	apple, _ := loaded.Recording("P1_002_apple")
	if !apple.Excluded() {
		t.Fatal("exclusion flag from the second save was lost")
	}
}

func TestLoadMissingSession(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load(context.Background(), "no such session", nil); !errors.Is(err, dataset.ErrMissingData) {
		t.Fatalf("expected ErrMissingData, got %v", err)
	}
}
