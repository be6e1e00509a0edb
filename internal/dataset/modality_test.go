package dataset

import (
	"errors"
	"testing"
	"time"
)

// countingReader resolves to a fixed series and counts how often it is
// asked to.
type countingReader struct {
	series *Series
	calls  int
}

func (r *countingReader) ReadRecorded(m *Modality) (*Series, error) {
	r.calls++
	return r.series, nil
}

type fixedDeriver struct {
	series *Series
	calls  int
}

func (d *fixedDeriver) DeriveFrom(parent *Modality) (*Series, error) {
	d.calls++
	return d.series, nil
}

func testSeries(t *testing.T, frames int, rate float64) *Series {
	t.Helper()
	data := make([]float64, frames)
	timevector := make([]float64, frames)
	for i := range data {
		data[i] = float64(i) + 1
		timevector[i] = float64(i) / rate
	}
	array, err := NewArray([]int{frames}, data)
	if err != nil {
		t.Fatalf("building array: %v", err)
	}
	series, err := NewSeries(array, rate, timevector)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return series
}

func testRecordingMeta(basename string) RecordingMeta {
	return RecordingMeta{
		Prompt:          "tiger",
		TimeOfRecording: time.Date(2023, 4, 12, 10, 30, 0, 0, time.UTC),
		ParticipantID:   "P1",
		Basename:        basename,
		Path:            "/data/session1",
	}
}

func TestModalityLoadsExactlyOnce(t *testing.T) {
	reader := &countingReader{series: testSeries(t, 4, 100)}
	m, err := NewModality(ModalityConfig{
		Meta:   RecordedMeta{Kind: KindMonoAudio},
		Files:  FileInfo{RecordedDataFile: "a.wav"},
		Reader: reader,
	})
	if err != nil {
		t.Fatalf("NewModality failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Data(); err != nil {
			t.Fatalf("access %d failed: %v", i, err)
		}
	}
	if _, err := m.SamplingRate(); err != nil {
		t.Fatalf("sampling rate failed: %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("reader ran %d times, want 1", reader.calls)
	}
	if m.LoadCount() != 1 {
		t.Fatalf("load count = %d, want 1", m.LoadCount())
	}
}

func TestModalityReleaseAndReload(t *testing.T) {
	reader := &countingReader{series: testSeries(t, 4, 100)}
	m, err := NewModality(ModalityConfig{
		Meta:   RecordedMeta{Kind: KindMonoAudio},
		Files:  FileInfo{RecordedDataFile: "a.wav"},
		Reader: reader,
	})
	if err != nil {
		t.Fatalf("NewModality failed: %v", err)
	}
	if _, err := m.Data(); err != nil {
		t.Fatalf("first access failed: %v", err)
	}

	if err := m.SetData(nil); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !m.Released() {
		t.Fatal("modality should report released")
	}
	if m.Loaded() {
		t.Fatal("modality should not report loaded after release")
	}

	// the timevector survives the release without a reload
	times, err := m.Timevector()
	if err != nil {
		t.Fatalf("timevector after release failed: %v", err)
	}
	if len(times) != 4 {
		t.Fatalf("timevector has %d entries, want 4", len(times))
	}
	if reader.calls != 1 {
		t.Fatalf("timevector access reloaded data, reader ran %d times", reader.calls)
	}

	// a fresh reader series so the reload is observable
	reader.series = testSeries(t, 4, 100)
	if _, err := m.Data(); err != nil {
		t.Fatalf("access after release failed: %v", err)
	}
	if reader.calls != 2 {
		t.Fatalf("reader ran %d times after release, want 2", reader.calls)
	}
	if m.LoadCount() != 2 {
		t.Fatalf("load count = %d, want 2", m.LoadCount())
	}
}

func TestModalitySetDataShapeGuard(t *testing.T) {
	m, err := NewModality(ModalityConfig{
		Meta:   RecordedMeta{Kind: KindMonoAudio},
		Series: testSeries(t, 4, 100),
	})
	if err != nil {
		t.Fatalf("NewModality failed: %v", err)
	}

	original, err := m.Data()
	if err != nil {
		t.Fatalf("data access failed: %v", err)
	}

	wrong := Zeros(5)
	if err := m.SetData(wrong); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	after, _ := m.Data()
	if after != original {
		t.Fatal("rejected assignment mutated the data")
	}

	replacement := Zeros(4)
	if err := m.SetData(replacement); err != nil {
		t.Fatalf("matching replacement failed: %v", err)
	}
}

func TestModalitySetDataBeforeResolution(t *testing.T) {
	m, err := NewModality(ModalityConfig{
		Meta:   RecordedMeta{Kind: KindMonoAudio},
		Files:  FileInfo{RecordedDataFile: "a.wav"},
		Reader: &countingReader{series: testSeries(t, 4, 100)},
	})
	if err != nil {
		t.Fatalf("NewModality failed: %v", err)
	}
	if err := m.SetData(Zeros(4)); !errors.Is(err, ErrMissingData) {
		t.Fatalf("expected ErrMissingData before resolution, got %v", err)
	}
}

func TestModalityWithoutAnySourceFails(t *testing.T) {
	m, err := NewModality(ModalityConfig{
		Meta: RecordedMeta{Kind: KindMonoAudio},
	})
	if err != nil {
		t.Fatalf("NewModality failed: %v", err)
	}
	if _, err := m.Data(); !errors.Is(err, ErrMissingData) {
		t.Fatalf("expected ErrMissingData, got %v", err)
	}
}

func TestModalityDerivesFromParent(t *testing.T) {
	recording, err := NewRecording(testRecordingMeta("P1_001_tiger"), FileInfo{})
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	parent, err := NewModality(ModalityConfig{
		Meta:   RecordedMeta{Kind: KindMonoAudio},
		Series: testSeries(t, 4, 100),
	})
	if err != nil {
		t.Fatalf("building parent: %v", err)
	}
	if err := recording.AddModality(parent, false); err != nil {
		t.Fatalf("adding parent: %v", err)
	}

	deriver := &fixedDeriver{series: testSeries(t, 3, 100)}
	derivedMeta := RecordedMeta{Kind: KindSplines}
	derived, err := NewModality(ModalityConfig{
		Meta:    derivedTestMeta{derivedMeta, string(KindMonoAudio)},
		Deriver: deriver,
	})
	if err != nil {
		t.Fatalf("building derived: %v", err)
	}
	if err := recording.AddModality(derived, false); err != nil {
		t.Fatalf("adding derived: %v", err)
	}

	data, err := derived.Data()
	if err != nil {
		t.Fatalf("deriving failed: %v", err)
	}
	if data.Frames() != 3 {
		t.Fatalf("derived %d frames, want 3", data.Frames())
	}
	if deriver.calls != 1 {
		t.Fatalf("deriver ran %d times, want 1", deriver.calls)
	}
}

// derivedTestMeta gives a recorded meta a parent so derivation paths
// can be exercised without importing the metrics package.
type derivedTestMeta struct {
	RecordedMeta
	parent string
}

func (m derivedTestMeta) Name() string       { return "Derived " + string(m.Kind) }
func (m derivedTestMeta) ParentName() string { return m.parent }

func TestModalityExclusionPropagatesUpward(t *testing.T) {
	recording, err := NewRecording(testRecordingMeta("P1_001_tiger"), FileInfo{})
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	m, err := NewModality(ModalityConfig{
		Meta:   RecordedMeta{Kind: KindMonoAudio},
		Series: testSeries(t, 4, 100),
	})
	if err != nil {
		t.Fatalf("NewModality failed: %v", err)
	}
	if err := recording.AddModality(m, false); err != nil {
		t.Fatalf("adding modality: %v", err)
	}

	m.SetExcluded(true)
	if !recording.Excluded() {
		t.Fatal("excluding a modality should exclude the recording")
	}

	// clearing the flag must not propagate
	m.SetExcluded(false)
	if !recording.Excluded() {
		t.Fatal("clearing a modality flag should not clear the recording")
	}

	// recording exclusion never reaches down
	recording.SetExcluded(false)
	recording.SetExcluded(true)
	if m.Excluded() {
		t.Fatal("recording exclusion should not propagate to modalities")
	}
}
