package dataset

import (
	"fmt"
	"log/slog"

	"tonguelab/internal/logging"
	"tonguelab/internal/textgrid"
)

// Recording is one recorded instant's set of synchronised modalities
// plus its transcription grid. Modalities and statistics are keyed by
// canonical name and iterate in insertion order so processing runs are
// reproducible.
type Recording struct {
	owner *Session
	meta  RecordingMeta
	files FileInfo

	excluded bool

	modalities    map[string]*Modality
	modalityOrder []string
	statistics    statisticSet

	grid *textgrid.Grid
	// annotationState is free-form key/value state used interactively
	// by annotation front ends; it is persisted but never derived.
	annotationState map[string]any
}

// NewRecording validates the metadata and builds an empty recording.
// Modalities get added afterwards through AddModality; a recording is
// never backfilled behind the aggregator's back.
func NewRecording(meta RecordingMeta, files FileInfo) (*Recording, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &Recording{
		meta:            meta,
		files:           files,
		modalities:      make(map[string]*Modality),
		statistics:      newStatisticSet(),
		annotationState: make(map[string]any),
	}, nil
}

// Name returns the recording's basename.
func (r *Recording) Name() string { return r.meta.Basename }

// Identifier returns a human-readable identifier: prompt followed by
// the time of recording.
func (r *Recording) Identifier() string {
	return fmt.Sprintf("%s %s", r.meta.Prompt, r.meta.TimeOfRecording)
}

// Meta returns the recording metadata.
func (r *Recording) Meta() RecordingMeta { return r.meta }

// GetMeta returns the metadata fields for persistence.
func (r *Recording) GetMeta() map[string]any { return r.meta.Fields() }

// FileInfo returns the recording's file-location record.
func (r *Recording) FileInfo() FileInfo { return r.files }

// Session returns the owning session, nil before AddRecording.
func (r *Recording) Session() *Session { return r.owner }

// Excluded reports whether this recording is skipped by processing and
// export. Excluded recordings stay enumerable.
func (r *Recording) Excluded() bool { return r.excluded }

// SetExcluded flips the exclusion flag. Exclusion propagates upward
// from modalities, never downward: marking a recording excluded leaves
// its modalities' flags untouched.
func (r *Recording) SetExcluded(excluded bool) { r.excluded = excluded }

// Exclude marks the recording excluded.
func (r *Recording) Exclude() { r.excluded = true }

// AddModality adds a modality under its canonical name. An existing
// name without the replace flag is a programming error, not a feature:
// silently shadowing computed data would corrupt downstream results.
func (r *Recording) AddModality(m *Modality, replace bool) error {
	name := m.Name()
	if _, exists := r.modalities[name]; exists {
		if !replace {
			return fmt.Errorf(
				"%w: a modality named %q already exists and replace was not set",
				ErrOverwrite, name)
		}
		m.owner = r
		r.modalities[name] = m
		return nil
	}
	m.owner = r
	r.modalities[name] = m
	r.modalityOrder = append(r.modalityOrder, name)
	return nil
}

// Modality returns the modality with the given canonical name.
func (r *Recording) Modality(name string) (*Modality, bool) {
	m, ok := r.modalities[name]
	return m, ok
}

// HasModality reports whether a modality exists under the given name.
func (r *Recording) HasModality(name string) bool {
	_, ok := r.modalities[name]
	return ok
}

// ModalityNames lists modality names in insertion order.
func (r *Recording) ModalityNames() []string {
	return append([]string{}, r.modalityOrder...)
}

// ModalityCount returns the number of modalities.
func (r *Recording) ModalityCount() int { return len(r.modalityOrder) }

// AddStatistic adds a recording-level statistic under its canonical
// name, with the same overwrite rules as AddModality.
func (r *Recording) AddStatistic(s *Statistic, replace bool) error {
	if err := r.statistics.add(s, replace); err != nil {
		return err
	}
	s.ownerName = r.Name()
	return nil
}

// Statistic returns the statistic with the given canonical name.
func (r *Recording) Statistic(name string) (*Statistic, bool) {
	return r.statistics.get(name)
}

// HasStatistic reports whether a statistic exists under the given name.
func (r *Recording) HasStatistic(name string) bool {
	_, ok := r.statistics.get(name)
	return ok
}

// StatisticNames lists statistic names in insertion order.
func (r *Recording) StatisticNames() []string { return r.statistics.names() }

// Grid returns the transcription grid, nil when none was found.
func (r *Recording) Grid() *textgrid.Grid { return r.grid }

// SetGrid attaches a transcription grid.
func (r *Recording) SetGrid(grid *textgrid.Grid) { r.grid = grid }

// AfterModalitiesInit ensures everything is in place once modalities
// have been added. Currently that means creating a placeholder grid
// spanning the audio when no TextGrid was found, so annotation front
// ends have a tier to show.
func (r *Recording) AfterModalitiesInit(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if r.grid != nil {
		return
	}
	audio, ok := r.Modality(string(KindMonoAudio))
	if !ok {
		logger.Warn("no audio found, cannot create a placeholder grid",
			slog.String("recording", r.Name()))
		return
	}
	minTime, err := audio.MinTime()
	if err != nil {
		logger.Warn("cannot read audio times for placeholder grid",
			slog.String("recording", r.Name()), slog.Any("error", err))
		return
	}
	maxTime, _ := audio.MaxTime()
	logger.Warn("creating a placeholder grid",
		slog.String("recording", r.Name()))
	grid := textgrid.New(minTime, maxTime)
	grid.AddIntervalTier("Utterance", []textgrid.Interval{
		{Xmin: minTime, Xmax: maxTime, Text: r.meta.Prompt},
	})
	r.grid = grid
}

// SetAnnotationState stores a free-form annotation value.
func (r *Recording) SetAnnotationState(key string, value any) {
	r.annotationState[key] = value
}

// AnnotationStates returns a copy of all free-form annotation values.
func (r *Recording) AnnotationStates() map[string]any {
	states := make(map[string]any, len(r.annotationState))
	for key, value := range r.annotationState {
		states[key] = value
	}
	return states
}

// AnnotationState returns a free-form annotation value.
func (r *Recording) AnnotationState(key string) (any, bool) {
	value, ok := r.annotationState[key]
	return value, ok
}
