package dataset

import "fmt"

// StatisticLoader resolves a statistic's data from a file previously
// saved by tonguelab.
type StatisticLoader interface {
	LoadStatistic(s *Statistic) (*Array, error)
}

// Statistic is a container of time-invariant data: an aggregate image
// of one recording, a cross-recording distance matrix of a session.
// Unlike a Modality it has no timevector, but it shares the naming,
// lazy-loading, and release semantics.
type Statistic struct {
	ownerName string
	meta      Meta
	files     FileInfo
	data      *Array
	loader    StatisticLoader

	loadCount int
}

// NewStatistic validates the parameter record and builds the
// container. Derived statistics are computed eagerly by their Add
// functions, so data is usually non-nil here; reloaded ones carry a
// loader instead.
func NewStatistic(meta Meta, files FileInfo, data *Array) (*Statistic, error) {
	if meta == nil {
		return nil, fmt.Errorf("%w: statistic needs a parameter record", ErrMetadata)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &Statistic{meta: meta, files: files, data: data}, nil
}

// Name returns this statistic's canonical name.
func (s *Statistic) Name() string { return s.meta.Name() }

// Meta returns the parameter record.
func (s *Statistic) Meta() Meta { return s.meta }

// GetMeta returns the parameter fields for persistence.
func (s *Statistic) GetMeta() map[string]any { return s.meta.Fields() }

// FileInfo returns the container's file-location record.
func (s *Statistic) FileInfo() FileInfo { return s.files }

// OwnerName reports the name of the aggregator holding this statistic.
func (s *Statistic) OwnerName() string { return s.ownerName }

// SetSavedLocation records where the store persisted this statistic
// and installs the loader used to get it back after a release.
func (s *Statistic) SetSavedLocation(path, dataFile string, loader StatisticLoader) {
	s.files.SavedPath = path
	s.files.SavedDataFile = dataFile
	s.loader = loader
}

// Data returns the statistic's array, resolving from the saved file if
// it has been released.
func (s *Statistic) Data() (*Array, error) {
	if s.data != nil {
		return s.data, nil
	}
	if s.files.SavedDataFile != "" && s.loader != nil {
		data, err := s.loader.LoadStatistic(s)
		if err != nil {
			return nil, err
		}
		s.data = data
		s.loadCount++
		return data, nil
	}
	return nil, fmt.Errorf(
		"%w: statistic %q has no data in memory and no saved file",
		ErrMissingData, s.Name())
}

// SetData replaces the array. Nil releases memory; replacement
// requires an exact size and shape match.
func (s *Statistic) SetData(data *Array) error {
	if data == nil {
		s.data = nil
		return nil
	}
	if s.data != nil && !s.data.SameShape(data) {
		return fmt.Errorf(
			"%w: replacement array has shape %s but existing data has shape %s",
			ErrDimensionMismatch,
			ShapeString(data.Shape), ShapeString(s.data.Shape))
	}
	s.data = data
	return nil
}

// LoadCount reports how many times saved-data resolution has run.
func (s *Statistic) LoadCount() int { return s.loadCount }
