package dataset

import (
	"fmt"
)

// SourceReader resolves a modality's data from its recorded source
// file. Importers provide these so that oversized recordings stay on
// disk until first access.
type SourceReader interface {
	ReadRecorded(m *Modality) (*Series, error)
}

// SavedLoader resolves a modality's data from a file previously saved
// by tonguelab. The store provides these on session load.
type SavedLoader interface {
	LoadSaved(m *Modality) (*Series, error)
}

// Deriver recomputes a derived modality's data from its parent. Metric
// packages provide these so released derived data can be rebuilt
// without re-running the whole pipeline.
type Deriver interface {
	DeriveFrom(parent *Modality) (*Series, error)
}

// ModalityConfig gathers everything a Modality is constructed from.
// Exactly which resolution strategies apply is decided here, at
// construction: a recorded modality carries a Reader, a reloaded one a
// Loader, a derived one a Deriver. Missing all three without preloaded
// data is legal to construct but fails with ErrMissingData on access.
type ModalityConfig struct {
	Meta   Meta
	Files  FileInfo
	Series *Series
	// TimeOffset against the recording baseline, used when Series is
	// resolved later. Ignored when Series carries its own timevector.
	TimeOffset float64

	Reader  SourceReader
	Loader  SavedLoader
	Deriver Deriver
}

// Modality is a container of time-varying data owned by a Recording.
//
// Data lives in memory only between the first access and an explicit
// release; accessing data, sampling rate, or the timevector while
// unloaded triggers resolution. The owner back-reference is
// navigational only: ownership runs strictly Recording -> Modality and
// the store drops the back-reference before persisting.
type Modality struct {
	owner *Recording
	meta  Meta
	files FileInfo

	series     *Series
	timeOffset float64
	excluded   bool

	annotations     map[AnnotationType]*PointAnnotations
	annotationOrder []AnnotationType

	reader  SourceReader
	loader  SavedLoader
	deriver Deriver

	loadCount int
	released  bool
}

// NewModality validates the metadata record and builds the container.
// The owner is attached by Recording.AddModality.
func NewModality(cfg ModalityConfig) (*Modality, error) {
	if cfg.Meta == nil {
		return nil, fmt.Errorf("%w: modality needs a metadata record", ErrMetadata)
	}
	if err := cfg.Meta.Validate(); err != nil {
		return nil, err
	}
	m := &Modality{
		meta:        cfg.Meta,
		files:       cfg.Files,
		series:      cfg.Series,
		timeOffset:  cfg.TimeOffset,
		annotations: make(map[AnnotationType]*PointAnnotations),
		reader:      cfg.Reader,
		loader:      cfg.Loader,
		deriver:     cfg.Deriver,
	}
	if cfg.Series != nil && len(cfg.Series.Timevector()) > 0 {
		m.timeOffset = cfg.Series.MinTime()
	}
	return m, nil
}

// Name returns this modality's canonical name, a pure function of its
// metadata.
func (m *Modality) Name() string { return m.meta.Name() }

// Meta returns the metadata record.
func (m *Modality) Meta() Meta { return m.meta }

// GetMeta returns the metadata fields for persistence.
func (m *Modality) GetMeta() map[string]any { return m.meta.Fields() }

// FileInfo returns the container's file-location record.
func (m *Modality) FileInfo() FileInfo { return m.files }

// SetSavedLocation records where the store persisted this modality and
// installs the loader used to get it back after a release.
func (m *Modality) SetSavedLocation(path, dataFile string, loader SavedLoader) {
	m.files.SavedPath = path
	m.files.SavedDataFile = dataFile
	m.loader = loader
}

// Recording returns the owning recording, nil before AddModality.
func (m *Modality) Recording() *Recording { return m.owner }

// IsDerived reports whether this modality was computed from another.
func (m *Modality) IsDerived() bool { return m.meta.ParentName() != "" }

// Excluded reports whether this modality is excluded from processing.
func (m *Modality) Excluded() bool { return m.excluded }

// SetExcluded flips the exclusion flag. Excluding a modality excludes
// the whole owning recording; clearing the flag propagates nothing.
func (m *Modality) SetExcluded(excluded bool) {
	m.excluded = excluded
	if excluded && m.owner != nil {
		m.owner.SetExcluded(true)
	}
}

// Series returns the full data bundle, resolving it if necessary.
func (m *Modality) Series() (*Series, error) {
	if m.series == nil || m.series.Samples() == nil {
		series, err := m.resolve()
		if err != nil {
			return nil, err
		}
		m.setSeries(series)
	}
	return m.series, nil
}

// Data returns the sample array, resolving it if necessary. The result
// stays cached until SetData(nil) releases it.
func (m *Modality) Data() (*Array, error) {
	series, err := m.Series()
	if err != nil {
		return nil, err
	}
	return series.Samples(), nil
}

// SamplingRate returns the sampling rate in Hz, resolving data if
// necessary.
func (m *Modality) SamplingRate() (float64, error) {
	if m.series == nil {
		if _, err := m.Series(); err != nil {
			return 0, err
		}
	}
	return m.series.SamplingRate(), nil
}

// Timevector returns the per-frame timestamps. Once resolved, the
// timevector persists across a data release; accessing it again does
// not trigger a reload.
func (m *Modality) Timevector() ([]float64, error) {
	if m.series == nil {
		if _, err := m.Series(); err != nil {
			return nil, err
		}
	}
	return m.series.Timevector(), nil
}

// TimeOffset returns the offset of this modality against the
// recording's baseline in seconds.
func (m *Modality) TimeOffset() (float64, error) {
	if m.series == nil {
		if _, err := m.Series(); err != nil {
			return 0, err
		}
	}
	return m.timeOffset, nil
}

// TimePrecision exposes the resolved series' timestamp precision.
func (m *Modality) TimePrecision() (float64, error) {
	series, err := m.Series()
	if err != nil {
		return 0, err
	}
	return series.TimePrecision(), nil
}

// MinTime returns the first timestamp.
func (m *Modality) MinTime() (float64, error) {
	times, err := m.Timevector()
	if err != nil {
		return 0, err
	}
	if len(times) == 0 {
		return 0, nil
	}
	return times[0], nil
}

// MaxTime returns the last timestamp.
func (m *Modality) MaxTime() (float64, error) {
	times, err := m.Timevector()
	if err != nil {
		return 0, err
	}
	if len(times) == 0 {
		return 0, nil
	}
	return times[len(times)-1], nil
}

// SetData replaces the sample array. Passing nil releases memory
// unconditionally; the next access resolves again. Replacing existing
// data requires an exact size and shape match so no downstream
// consumer's view of the data silently changes.
func (m *Modality) SetData(data *Array) error {
	if data == nil {
		if m.series != nil && m.series.Samples() != nil {
			m.series.replaceSamples(nil)
			m.released = true
		}
		return nil
	}
	if m.series == nil || m.series.Samples() == nil {
		if m.series == nil {
			return fmt.Errorf(
				"%w: cannot assign data before the timevector is known; "+
					"resolve the modality first", ErrMissingData)
		}
		m.series.replaceSamples(data)
		return nil
	}
	current := m.series.Samples()
	if !current.SameShape(data) {
		return fmt.Errorf(
			"%w: replacement array has shape %s but existing data has shape %s",
			ErrDimensionMismatch,
			ShapeString(data.Shape), ShapeString(current.Shape))
	}
	m.series.replaceSamples(data)
	return nil
}

// Loaded reports whether the sample array is currently in memory.
// Never triggers resolution.
func (m *Modality) Loaded() bool {
	return m.series != nil && m.series.Samples() != nil
}

// TimevectorKnown reports whether the timevector has been resolved,
// which outlives a data release. Never triggers resolution.
func (m *Modality) TimevectorKnown() bool { return m.series != nil }

// LoadCount reports how many times data resolution has run. Exists so
// tests can pin "exactly once per load/release cycle".
func (m *Modality) LoadCount() int { return m.loadCount }

// Released reports whether this modality has been released since it
// was last loaded. Behaviourally a released modality is identical to a
// never-loaded one.
func (m *Modality) Released() bool {
	return m.released && (m.series == nil || m.series.Samples() == nil)
}

func (m *Modality) setSeries(series *Series) {
	m.series = series
	if len(series.Timevector()) > 0 {
		m.timeOffset = series.MinTime()
	}
	m.loadCount++
	m.released = false
}

// resolve obtains the data by trying, in order: the recorded source
// file, a previously saved file, derivation from the named parent.
func (m *Modality) resolve() (*Series, error) {
	if m.files.RecordedDataFile != "" && m.reader != nil {
		return m.reader.ReadRecorded(m)
	}
	if m.files.SavedDataFile != "" && m.loader != nil {
		return m.loader.LoadSaved(m)
	}
	if parentName := m.meta.ParentName(); parentName != "" && m.deriver != nil {
		if m.owner == nil {
			return nil, fmt.Errorf(
				"%w: modality %q has parent %q but no owning recording to find it in",
				ErrMissingData, m.Name(), parentName)
		}
		parent, ok := m.owner.Modality(parentName)
		if !ok {
			return nil, fmt.Errorf(
				"%w: modality %q derives from %q which is not in recording %q",
				ErrMissingData, m.Name(), parentName, m.owner.Name())
		}
		return m.deriver.DeriveFrom(parent)
	}
	return nil, fmt.Errorf(
		"%w: modality %q has no recorded file, no saved file, and no parent",
		ErrMissingData, m.Name())
}

// AddPointAnnotations attaches an annotation set, replacing any
// previous set of the same type.
func (m *Modality) AddPointAnnotations(annotations *PointAnnotations) {
	if _, ok := m.annotations[annotations.Type]; !ok {
		m.annotationOrder = append(m.annotationOrder, annotations.Type)
	}
	m.annotations[annotations.Type] = annotations
}

// Annotations returns the annotation set of the given type.
func (m *Modality) Annotations(kind AnnotationType) (*PointAnnotations, bool) {
	a, ok := m.annotations[kind]
	return a, ok
}

// AnnotationTypes lists attached annotation types in insertion order.
func (m *Modality) AnnotationTypes() []AnnotationType {
	return append([]AnnotationType{}, m.annotationOrder...)
}
