package dataset

import "fmt"

// Session is the root aggregator: the recordings of one participant in
// one sitting, plus session-level statistics such as cross-recording
// distance matrices. Recordings keep their insertion order, which for
// imported sessions is the recording order on disk.
type Session struct {
	name   string
	config SessionConfig
	files  FileInfo

	recordings []*Recording
	byName     map[string]*Recording
	statistics statisticSet

	excluded bool
}

// NewSession builds a session over the given recordings and claims
// ownership of each.
func NewSession(name string, config SessionConfig, files FileInfo, recordings []*Recording) (*Session, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: session needs a name", ErrMetadata)
	}
	s := &Session{
		name:       name,
		config:     config,
		files:      files,
		byName:     make(map[string]*Recording),
		statistics: newStatisticSet(),
	}
	for _, recording := range recordings {
		if err := s.AddRecording(recording); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Config returns the session's run configuration.
func (s *Session) Config() SessionConfig { return s.config }

// FileInfo returns the session's file-location record.
func (s *Session) FileInfo() FileInfo { return s.files }

// SetSavedLocation records where the store persisted this session.
func (s *Session) SetSavedLocation(path, metaFile string) {
	s.files.SavedPath = path
	s.files.SavedMetaFile = metaFile
}

// Excluded reports whether the whole session is excluded.
func (s *Session) Excluded() bool { return s.excluded }

// SetExcluded flips the session-level exclusion flag.
func (s *Session) SetExcluded(excluded bool) { s.excluded = excluded }

// AddRecording appends a recording and claims ownership of it. Names
// must be unique within the session.
func (s *Session) AddRecording(recording *Recording) error {
	name := recording.Name()
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf(
			"%w: a recording named %q already exists in session %q",
			ErrOverwrite, name, s.name)
	}
	recording.owner = s
	s.recordings = append(s.recordings, recording)
	s.byName[name] = recording
	return nil
}

// Recordings returns the recordings in insertion order. The slice is
// shared; callers must not reorder it.
func (s *Session) Recordings() []*Recording { return s.recordings }

// Recording returns the recording with the given basename.
func (s *Session) Recording(name string) (*Recording, bool) {
	recording, ok := s.byName[name]
	return recording, ok
}

// RecordingCount returns the number of recordings, excluded ones
// included.
func (s *Session) RecordingCount() int { return len(s.recordings) }

// AddStatistic adds a session-level statistic under its canonical
// name, with the same overwrite rules as Recording.AddModality.
func (s *Session) AddStatistic(statistic *Statistic, replace bool) error {
	if err := s.statistics.add(statistic, replace); err != nil {
		return err
	}
	statistic.ownerName = s.name
	return nil
}

// Statistic returns the session statistic with the given name.
func (s *Session) Statistic(name string) (*Statistic, bool) {
	return s.statistics.get(name)
}

// HasStatistic reports whether a session statistic exists under the
// given name.
func (s *Session) HasStatistic(name string) bool {
	_, ok := s.statistics.get(name)
	return ok
}

// StatisticNames lists session statistic names in insertion order.
func (s *Session) StatisticNames() []string { return s.statistics.names() }

// EnsureOwners restores the navigational back-references after a load.
// The store persists the tree without them so it stays acyclic on disk.
func (s *Session) EnsureOwners() {
	for _, recording := range s.recordings {
		recording.owner = s
		s.byName[recording.Name()] = recording
		for _, name := range recording.modalityOrder {
			recording.modalities[name].owner = recording
		}
		for _, name := range recording.statistics.order {
			recording.statistics.byName[name].ownerName = recording.Name()
		}
	}
	for _, name := range s.statistics.order {
		s.statistics.byName[name].ownerName = s.name
	}
}
