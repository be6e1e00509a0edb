package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"tonguelab/internal/dataset"
)

// Save writes the session and everything it owns to the database,
// replacing any previous save under the same name. Derived modalities
// are resolved first so their data is captured; recorded modalities
// are persisted as data only when already in memory, since their
// source files remain the canonical copy.
//
// On success every container's saved location is updated so releases
// can be undone by loading from this database.
func (s *Store) Save(ctx context.Context, session *dataset.Session) error {
	ctx = ensureContext(ctx)

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire save lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another process is saving to %s", s.path)
	}
	defer func() { _ = lock.Unlock() }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE name = ?", session.Name()); err != nil {
		return fmt.Errorf("clear previous save of %q: %w", session.Name(), err)
	}

	configJSON, err := encodeJSON(session.Config())
	if err != nil {
		return err
	}
	filesJSON, err := encodeJSON(session.FileInfo())
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (name, config, files, saved_at)
		VALUES (?, ?, ?, ?)`,
		session.Name(), configJSON, filesJSON,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert session %q: %w", session.Name(), err)
	}
	sessionID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("session row id: %w", err)
	}

	var saved savedLocations
	for position, recording := range session.Recordings() {
		recordingID, err := s.saveRecording(ctx, tx, sessionID, position, recording, &saved)
		if err != nil {
			return err
		}
		for statPosition, name := range recording.StatisticNames() {
			statistic, _ := recording.Statistic(name)
			id, err := s.saveStatistic(ctx, tx, sessionID, recordingID, statPosition, statistic)
			if err != nil {
				return fmt.Errorf("recording %q: %w", recording.Name(), err)
			}
			saved.statistics = append(saved.statistics, savedStatistic{statistic, id})
		}
	}
	for position, name := range session.StatisticNames() {
		statistic, _ := session.Statistic(name)
		id, err := s.saveStatistic(ctx, tx, sessionID, 0, position, statistic)
		if err != nil {
			return fmt.Errorf("session %q: %w", session.Name(), err)
		}
		saved.statistics = append(saved.statistics, savedStatistic{statistic, id})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save of %q: %w", session.Name(), err)
	}

	session.SetSavedLocation(s.path, fmt.Sprintf("session:%s", session.Name()))
	for _, sm := range saved.modalities {
		sm.modality.SetSavedLocation(
			s.path, fmt.Sprintf("modality:%d", sm.id), &seriesLoader{store: s, id: sm.id})
	}
	for _, ss := range saved.statistics {
		ss.statistic.SetSavedLocation(
			s.path, fmt.Sprintf("statistic:%d", ss.id), &statisticLoader{store: s, id: ss.id})
	}
	return nil
}

type savedModality struct {
	modality *dataset.Modality
	id       int64
}

type savedStatistic struct {
	statistic *dataset.Statistic
	id        int64
}

type savedLocations struct {
	modalities []savedModality
	statistics []savedStatistic
}

func (s *Store) saveRecording(ctx context.Context, tx *sql.Tx, sessionID int64, position int, recording *dataset.Recording, saved *savedLocations) (int64, error) {
	metaJSON, err := encodeJSON(recording.Meta())
	if err != nil {
		return 0, err
	}
	filesJSON, err := encodeJSON(recording.FileInfo())
	if err != nil {
		return 0, err
	}
	annotationsJSON, err := encodeJSON(recording.AnnotationStates())
	if err != nil {
		return 0, err
	}
	var grid any
	if recording.Grid() != nil {
		var builder strings.Builder
		if err := recording.Grid().Write(&builder); err != nil {
			return 0, fmt.Errorf("serialize grid of %q: %w", recording.Name(), err)
		}
		grid = builder.String()
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO recordings (session_id, position, name, meta, files, excluded, grid, annotations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, position, recording.Name(), metaJSON, filesJSON,
		boolToInt(recording.Excluded()), grid, annotationsJSON)
	if err != nil {
		return 0, fmt.Errorf("insert recording %q: %w", recording.Name(), err)
	}
	recordingID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording row id: %w", err)
	}

	for modalityPosition, name := range recording.ModalityNames() {
		modality, _ := recording.Modality(name)
		id, withData, err := s.saveModality(ctx, tx, recordingID, modalityPosition, modality)
		if err != nil {
			return 0, fmt.Errorf("recording %q: %w", recording.Name(), err)
		}
		if withData {
			saved.modalities = append(saved.modalities, savedModality{modality, id})
		}
	}
	return recordingID, nil
}

// saveModality persists one modality row. The second return reports
// whether a data blob was written, which decides whether the modality
// gets a saved-location loader afterwards.
func (s *Store) saveModality(ctx context.Context, tx *sql.Tx, recordingID int64, position int, modality *dataset.Modality) (int64, bool, error) {
	kind, err := metaKind(modality.Meta())
	if err != nil {
		return 0, false, fmt.Errorf("modality %q: %w", modality.Name(), err)
	}
	metaJSON, err := encodeJSON(modality.Meta())
	if err != nil {
		return 0, false, err
	}
	filesJSON, err := encodeJSON(modality.FileInfo())
	if err != nil {
		return 0, false, err
	}

	var annotations []*dataset.PointAnnotations
	for _, annotationType := range modality.AnnotationTypes() {
		if set, ok := modality.Annotations(annotationType); ok {
			annotations = append(annotations, set)
		}
	}
	annotationsJSON, err := encodeJSON(annotations)
	if err != nil {
		return 0, false, err
	}

	var data *dataset.Array
	switch {
	case modality.IsDerived():
		// derivations exist nowhere else, so resolve before saving
		if data, err = modality.Data(); err != nil {
			return 0, false, fmt.Errorf("resolve %q for saving: %w", modality.Name(), err)
		}
	case modality.Loaded():
		if data, err = modality.Data(); err != nil {
			return 0, false, fmt.Errorf("resolve %q for saving: %w", modality.Name(), err)
		}
	}

	var (
		samplingRate any
		shapeJSON    any
		timevector   any
		dataBlob     any
		timeOffset   float64
	)
	if modality.TimevectorKnown() {
		rate, err := modality.SamplingRate()
		if err != nil {
			return 0, false, err
		}
		times, err := modality.Timevector()
		if err != nil {
			return 0, false, err
		}
		offset, err := modality.TimeOffset()
		if err != nil {
			return 0, false, err
		}
		samplingRate = rate
		timevector = encodeFloats(times)
		timeOffset = offset
	}
	if data != nil {
		shape, err := encodeJSON(data.Shape)
		if err != nil {
			return 0, false, err
		}
		shapeJSON = shape
		dataBlob = encodeFloats(data.Data)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO modalities
			(recording_id, position, name, meta_kind, meta, files, excluded,
			 time_offset, sampling_rate, shape, timevector, data, annotations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recordingID, position, modality.Name(), kind, metaJSON, filesJSON,
		boolToInt(modality.Excluded()),
		timeOffset, samplingRate, shapeJSON, timevector, dataBlob, annotationsJSON)
	if err != nil {
		return 0, false, fmt.Errorf("insert modality %q: %w", modality.Name(), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("modality row id: %w", err)
	}
	return id, dataBlob != nil, nil
}

func (s *Store) saveStatistic(ctx context.Context, tx *sql.Tx, sessionID, recordingID int64, position int, statistic *dataset.Statistic) (int64, error) {
	kind, err := metaKind(statistic.Meta())
	if err != nil {
		return 0, fmt.Errorf("statistic %q: %w", statistic.Name(), err)
	}
	metaJSON, err := encodeJSON(statistic.Meta())
	if err != nil {
		return 0, err
	}
	filesJSON, err := encodeJSON(statistic.FileInfo())
	if err != nil {
		return 0, err
	}
	data, err := statistic.Data()
	if err != nil {
		return 0, fmt.Errorf("resolve statistic %q for saving: %w", statistic.Name(), err)
	}
	shapeJSON, err := encodeJSON(data.Shape)
	if err != nil {
		return 0, err
	}

	var owner any
	if recordingID != 0 {
		owner = recordingID
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO statistics
			(session_id, recording_id, position, name, meta_kind, meta, files, shape, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, owner, position, statistic.Name(), kind, metaJSON, filesJSON,
		shapeJSON, encodeFloats(data.Data))
	if err != nil {
		return 0, fmt.Errorf("insert statistic %q: %w", statistic.Name(), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("statistic row id: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
