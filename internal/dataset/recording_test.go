package dataset

import (
	"errors"
	"testing"
)

func testRecording(t *testing.T, basename string) *Recording {
	t.Helper()
	recording, err := NewRecording(testRecordingMeta(basename), FileInfo{})
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	return recording
}

func testAudioModality(t *testing.T) *Modality {
	t.Helper()
	m, err := NewModality(ModalityConfig{
		Meta:   RecordedMeta{Kind: KindMonoAudio},
		Series: testSeries(t, 4, 100),
	})
	if err != nil {
		t.Fatalf("NewModality failed: %v", err)
	}
	return m
}

func TestAddModalityRejectsOverwrite(t *testing.T) {
	recording := testRecording(t, "P1_001_tiger")
	first := testAudioModality(t)
	if err := recording.AddModality(first, false); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	second := testAudioModality(t)
	if err := recording.AddModality(second, false); !errors.Is(err, ErrOverwrite) {
		t.Fatalf("expected ErrOverwrite, got %v", err)
	}
	kept, _ := recording.Modality(string(KindMonoAudio))
	if kept != first {
		t.Fatal("rejected add replaced the original modality")
	}

	if err := recording.AddModality(second, true); err != nil {
		t.Fatalf("replace add failed: %v", err)
	}
	kept, _ = recording.Modality(string(KindMonoAudio))
	if kept != second {
		t.Fatal("replace did not install the new modality")
	}
	if recording.ModalityCount() != 1 {
		t.Fatalf("modality count = %d, want 1", recording.ModalityCount())
	}
}

func TestAddStatisticRejectsOverwrite(t *testing.T) {
	recording := testRecording(t, "P1_001_tiger")
	meta := statisticTestMeta{name: "AggregateImage mean on RawUltrasound"}
	first, err := NewStatistic(meta, FileInfo{}, Zeros(2, 2))
	if err != nil {
		t.Fatalf("NewStatistic failed: %v", err)
	}
	if err := recording.AddStatistic(first, false); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	second, _ := NewStatistic(meta, FileInfo{}, Zeros(2, 2))
	if err := recording.AddStatistic(second, false); !errors.Is(err, ErrOverwrite) {
		t.Fatalf("expected ErrOverwrite, got %v", err)
	}
	if !recording.HasStatistic(meta.name) {
		t.Fatal("statistic disappeared after rejected add")
	}
}

type statisticTestMeta struct {
	name string
}

func (m statisticTestMeta) Name() string           { return m.name }
func (m statisticTestMeta) Validate() error        { return nil }
func (m statisticTestMeta) ParentName() string     { return "RawUltrasound" }
func (m statisticTestMeta) Fields() map[string]any { return map[string]any{"name": m.name} }

func TestPlaceholderGridFromAudio(t *testing.T) {
	recording := testRecording(t, "P1_001_tiger")
	if err := recording.AddModality(testAudioModality(t), false); err != nil {
		t.Fatalf("adding audio: %v", err)
	}

	recording.AfterModalitiesInit(nil)
	grid := recording.Grid()
	if grid == nil {
		t.Fatal("no placeholder grid was created")
	}
	tier, ok := grid.Tier("Utterance")
	if !ok {
		t.Fatal("placeholder grid has no Utterance tier")
	}
	if len(tier.Intervals) != 1 || tier.Intervals[0].Text != "tiger" {
		t.Fatalf("placeholder intervals = %+v", tier.Intervals)
	}
}

func TestSessionRejectsDuplicateRecordingNames(t *testing.T) {
	first := testRecording(t, "P1_001_tiger")
	second := testRecording(t, "P1_001_tiger")
	if _, err := NewSession("session1", SessionConfig{}, FileInfo{},
		[]*Recording{first, second}); !errors.Is(err, ErrOverwrite) {
		t.Fatalf("expected ErrOverwrite, got %v", err)
	}
}

func TestSessionOwnership(t *testing.T) {
	recording := testRecording(t, "P1_001_tiger")
	session, err := NewSession("session1", SessionConfig{DataSource: "AAA"},
		FileInfo{}, []*Recording{recording})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if recording.Session() != session {
		t.Fatal("recording does not point back at its session")
	}

	found, ok := session.Recording("P1_001_tiger")
	if !ok || found != recording {
		t.Fatal("lookup by name failed")
	}
	if session.RecordingCount() != 1 {
		t.Fatalf("recording count = %d, want 1", session.RecordingCount())
	}
}

func TestEnsureOwnersRestoresBackReferences(t *testing.T) {
	recording := testRecording(t, "P1_001_tiger")
	modality := testAudioModality(t)
	if err := recording.AddModality(modality, false); err != nil {
		t.Fatalf("adding modality: %v", err)
	}
	session, err := NewSession("session1", SessionConfig{}, FileInfo{},
		[]*Recording{recording})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	// simulate the store dropping back-references before persisting
	recording.owner = nil
	modality.owner = nil

	session.EnsureOwners()
	if recording.Session() != session {
		t.Fatal("recording owner was not restored")
	}
	if modality.Recording() != recording {
		t.Fatal("modality owner was not restored")
	}
}
