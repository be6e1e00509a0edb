package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Meta is the metadata/parameter record attached to every container.
//
// Name must be a pure function of the record's fields: same parameters,
// same name, across calls and across process runs. Names are used as
// container keys, so every field that distinguishes two derivations
// must be represented in the name.
type Meta interface {
	Name() string
	Validate() error
	// ParentName names the container this one derives from, or "" for
	// recorded data.
	ParentName() string
	// Fields returns the record as a flat mapping for persistence.
	Fields() map[string]any
}

// FileInfo records where a container's bytes live on disk. Recorded
// and saved locations are independently optional; a container with
// neither and no parent cannot resolve data.
type FileInfo struct {
	RecordedDataFile string
	RecordedMetaFile string
	RecordedPath     string
	SavedDataFile    string
	SavedMetaFile    string
	SavedPath        string
}

// RecordingMeta is the basic metadata any recording should reasonably
// have, set once at construction. ParticipantID may be empty; some
// export tools omit it.
type RecordingMeta struct {
	Prompt          string
	TimeOfRecording time.Time
	ParticipantID   string
	Basename        string
	Path            string
}

// Validate reports the first missing required field.
func (m RecordingMeta) Validate() error {
	switch {
	case strings.TrimSpace(m.Prompt) == "":
		return fmt.Errorf("%w: recording metadata needs a prompt", ErrMetadata)
	case m.TimeOfRecording.IsZero():
		return fmt.Errorf("%w: recording metadata needs a time of recording", ErrMetadata)
	case strings.TrimSpace(m.Basename) == "":
		return fmt.Errorf("%w: recording metadata needs a basename", ErrMetadata)
	case strings.TrimSpace(m.Path) == "":
		return fmt.Errorf("%w: recording metadata needs a path", ErrMetadata)
	}
	return nil
}

// Fields returns the record as a flat mapping for persistence.
func (m RecordingMeta) Fields() map[string]any {
	return map[string]any{
		"prompt":            m.Prompt,
		"time_of_recording": m.TimeOfRecording.Format(time.RFC3339Nano),
		"participant_id":    m.ParticipantID,
		"basename":          m.Basename,
		"path":              m.Path,
	}
}

// RecordedKind identifies a recorded (underived) modality type. The
// string value is the modality's canonical name.
type RecordedKind string

const (
	KindRawUltrasound    RecordedKind = "RawUltrasound"
	KindMonoAudio        RecordedKind = "MonoAudio"
	KindVideo            RecordedKind = "Video"
	KindSplines          RecordedKind = "Splines"
	KindThreeDUltrasound RecordedKind = "ThreeD_Ultrasound"
)

var recordedKinds = map[RecordedKind]struct{}{
	KindRawUltrasound:    {},
	KindMonoAudio:        {},
	KindVideo:            {},
	KindSplines:          {},
	KindThreeDUltrasound: {},
}

// RecordedMeta is the minimal metadata of a recorded modality.
type RecordedMeta struct {
	Kind RecordedKind
	// TimeOffset of this modality against the recording's baseline,
	// usually the audio track, in seconds.
	TimeOffset float64
}

func (m RecordedMeta) Name() string { return string(m.Kind) }

func (m RecordedMeta) Validate() error {
	if _, ok := recordedKinds[m.Kind]; !ok {
		return fmt.Errorf("%w: unknown recorded modality kind %q", ErrMetadata, m.Kind)
	}
	return nil
}

func (m RecordedMeta) ParentName() string { return "" }

func (m RecordedMeta) Fields() map[string]any {
	return map[string]any{
		"kind":        string(m.Kind),
		"time_offset": m.TimeOffset,
	}
}

// UltrasoundMeta is the probe geometry of a raw 2D ultrasound modality.
// Without it the frames cannot be interpreted, so a recording missing
// this metadata gets excluded by the importer.
type UltrasoundMeta struct {
	RecordedMeta
	Angle        float64 // angle between scanlines in radians
	FramesPerSec float64
	NumVectors   int // scanlines per frame
	PixPerVector int
	PixelsPerMM  float64
	ZeroOffset   float64
	BitsPerPixel int
}

func (m UltrasoundMeta) Validate() error {
	if err := m.RecordedMeta.Validate(); err != nil {
		return err
	}
	switch {
	case m.FramesPerSec <= 0:
		return fmt.Errorf("%w: ultrasound metadata needs a positive frame rate, got %g",
			ErrMetadata, m.FramesPerSec)
	case m.NumVectors <= 0:
		return fmt.Errorf("%w: ultrasound metadata needs a positive scanline count, got %d",
			ErrMetadata, m.NumVectors)
	case m.PixPerVector <= 0:
		return fmt.Errorf("%w: ultrasound metadata needs positive pixels per vector, got %d",
			ErrMetadata, m.PixPerVector)
	case m.BitsPerPixel <= 0:
		return fmt.Errorf("%w: ultrasound metadata needs positive bits per pixel, got %d",
			ErrMetadata, m.BitsPerPixel)
	}
	return nil
}

func (m UltrasoundMeta) Fields() map[string]any {
	fields := m.RecordedMeta.Fields()
	fields["angle"] = m.Angle
	fields["frames_per_sec"] = m.FramesPerSec
	fields["num_vectors"] = m.NumVectors
	fields["pix_per_vector"] = m.PixPerVector
	fields["pixels_per_mm"] = m.PixelsPerMM
	fields["zero_offset"] = m.ZeroOffset
	fields["bits_per_pixel"] = m.BitsPerPixel
	return fields
}

// SessionConfig carries the import-time choices shared by a session's
// recordings. Epsilon is injected here rather than read from any
// global so timestamp comparisons stay testable in isolation.
type SessionConfig struct {
	DataSource      string
	ExcludedPrompts []string
	ExcludedFiles   []string
	Epsilon         float64
}
