package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tonguelab/internal/dataset"
	"tonguelab/internal/textgrid"
)

// SourceReaderFunc supplies the reader for a recorded modality being
// reloaded, so recorded data keeps resolving from its original files.
// Importers provide implementations; a nil function leaves recorded
// modalities resolvable only from their saved blobs, if any.
type SourceReaderFunc func(meta dataset.Meta, files dataset.FileInfo) dataset.SourceReader

// Load reconstructs a saved session. Containers come back lazy: sample
// arrays stay in the database until first access.
func (s *Store) Load(ctx context.Context, name string, readers SourceReaderFunc) (*dataset.Session, error) {
	ctx = ensureContext(ctx)

	var (
		sessionID  int64
		configJSON string
		filesJSON  string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, config, files FROM sessions WHERE name = ?", name,
	).Scan(&sessionID, &configJSON, &filesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no saved session named %q in %s",
			dataset.ErrMissingData, name, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read session %q: %w", name, err)
	}

	var config dataset.SessionConfig
	if err := decodeJSON(configJSON, &config); err != nil {
		return nil, err
	}
	var files dataset.FileInfo
	if err := decodeJSON(filesJSON, &files); err != nil {
		return nil, err
	}

	recordings, byID, err := s.loadRecordings(ctx, sessionID, readers)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", name, err)
	}

	session, err := dataset.NewSession(name, config, files, recordings)
	if err != nil {
		return nil, err
	}
	if err := s.loadStatistics(ctx, sessionID, session, byID); err != nil {
		return nil, fmt.Errorf("session %q: %w", name, err)
	}
	session.SetSavedLocation(s.path, fmt.Sprintf("session:%s", name))
	session.EnsureOwners()
	return session, nil
}

func (s *Store) loadRecordings(ctx context.Context, sessionID int64, readers SourceReaderFunc) ([]*dataset.Recording, map[int64]*dataset.Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, meta, files, excluded, grid, annotations
		FROM recordings WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("read recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*dataset.Recording
	byID := make(map[int64]*dataset.Recording)
	for rows.Next() {
		var (
			id              int64
			name            string
			metaJSON        string
			filesJSON       string
			excluded        int
			gridText        sql.NullString
			annotationsJSON string
		)
		if err := rows.Scan(&id, &name, &metaJSON, &filesJSON, &excluded,
			&gridText, &annotationsJSON); err != nil {
			return nil, nil, fmt.Errorf("scan recording row: %w", err)
		}

		var meta dataset.RecordingMeta
		if err := decodeJSON(metaJSON, &meta); err != nil {
			return nil, nil, err
		}
		var files dataset.FileInfo
		if err := decodeJSON(filesJSON, &files); err != nil {
			return nil, nil, err
		}
		recording, err := dataset.NewRecording(meta, files)
		if err != nil {
			return nil, nil, err
		}
		recording.SetExcluded(excluded != 0)

		if gridText.Valid {
			grid, err := textgrid.Parse(strings.NewReader(gridText.String))
			if err != nil {
				return nil, nil, fmt.Errorf("parse grid of %q: %w", name, err)
			}
			recording.SetGrid(grid)
		}
		var states map[string]any
		if err := decodeJSON(annotationsJSON, &states); err != nil {
			return nil, nil, err
		}
		for key, value := range states {
			recording.SetAnnotationState(key, value)
		}

		if err := s.loadModalities(ctx, id, recording, readers); err != nil {
			return nil, nil, fmt.Errorf("recording %q: %w", name, err)
		}
		recordings = append(recordings, recording)
		byID[id] = recording
	}
	return recordings, byID, rows.Err()
}

func (s *Store) loadModalities(ctx context.Context, recordingID int64, recording *dataset.Recording, readers SourceReaderFunc) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meta_kind, meta, files, excluded, time_offset, data IS NOT NULL, annotations
		FROM modalities WHERE recording_id = ? ORDER BY position`, recordingID)
	if err != nil {
		return fmt.Errorf("read modalities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id              int64
			kind            string
			metaJSON        string
			filesJSON       string
			excluded        int
			timeOffset      float64
			hasData         bool
			annotationsJSON string
		)
		if err := rows.Scan(&id, &kind, &metaJSON, &filesJSON, &excluded,
			&timeOffset, &hasData, &annotationsJSON); err != nil {
			return fmt.Errorf("scan modality row: %w", err)
		}

		meta, err := decodeMeta(kind, []byte(metaJSON))
		if err != nil {
			return err
		}
		var files dataset.FileInfo
		if err := decodeJSON(filesJSON, &files); err != nil {
			return err
		}

		cfg := dataset.ModalityConfig{
			Meta:       meta,
			Files:      files,
			TimeOffset: timeOffset,
		}
		if readers != nil && meta.ParentName() == "" && files.RecordedDataFile != "" {
			cfg.Reader = readers(meta, files)
		}
		modality, err := dataset.NewModality(cfg)
		if err != nil {
			return err
		}
		// restore the flag before ownership so nothing propagates
		modality.SetExcluded(excluded != 0)
		if hasData {
			modality.SetSavedLocation(
				s.path, fmt.Sprintf("modality:%d", id), &seriesLoader{store: s, id: id})
		}

		var annotations []*dataset.PointAnnotations
		if err := decodeJSON(annotationsJSON, &annotations); err != nil {
			return err
		}
		for _, set := range annotations {
			modality.AddPointAnnotations(set)
		}

		if err := recording.AddModality(modality, false); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) loadStatistics(ctx context.Context, sessionID int64, session *dataset.Session, byID map[int64]*dataset.Recording) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recording_id, meta_kind, meta, files
		FROM statistics WHERE session_id = ? ORDER BY recording_id, position`, sessionID)
	if err != nil {
		return fmt.Errorf("read statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id          int64
			recordingID sql.NullInt64
			kind        string
			metaJSON    string
			filesJSON   string
		)
		if err := rows.Scan(&id, &recordingID, &kind, &metaJSON, &filesJSON); err != nil {
			return fmt.Errorf("scan statistic row: %w", err)
		}

		meta, err := decodeMeta(kind, []byte(metaJSON))
		if err != nil {
			return err
		}
		var files dataset.FileInfo
		if err := decodeJSON(filesJSON, &files); err != nil {
			return err
		}
		statistic, err := dataset.NewStatistic(meta, files, nil)
		if err != nil {
			return err
		}
		statistic.SetSavedLocation(
			s.path, fmt.Sprintf("statistic:%d", id), &statisticLoader{store: s, id: id})

		if recordingID.Valid {
			recording, ok := byID[recordingID.Int64]
			if !ok {
				return fmt.Errorf("statistic %q references unknown recording row %d",
					statistic.Name(), recordingID.Int64)
			}
			if err := recording.AddStatistic(statistic, false); err != nil {
				return err
			}
		} else if err := session.AddStatistic(statistic, false); err != nil {
			return err
		}
	}
	return rows.Err()
}

// seriesLoader resolves a modality's saved series from its database
// row on demand.
type seriesLoader struct {
	store *Store
	id    int64
}

func (l *seriesLoader) LoadSaved(m *dataset.Modality) (*dataset.Series, error) {
	var (
		samplingRate sql.NullFloat64
		shapeJSON    sql.NullString
		timevector   []byte
		data         []byte
	)
	err := l.store.db.QueryRow(
		"SELECT sampling_rate, shape, timevector, data FROM modalities WHERE id = ?", l.id,
	).Scan(&samplingRate, &shapeJSON, &timevector, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: saved modality row %d is gone from %s",
			dataset.ErrMissingData, l.id, l.store.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read saved modality %d: %w", l.id, err)
	}
	if data == nil || !shapeJSON.Valid || !samplingRate.Valid {
		return nil, fmt.Errorf("%w: modality %q was saved without data",
			dataset.ErrMissingData, m.Name())
	}

	var shape []int
	if err := decodeJSON(shapeJSON.String, &shape); err != nil {
		return nil, err
	}
	values, err := decodeFloats(data)
	if err != nil {
		return nil, fmt.Errorf("saved modality %d: %w", l.id, err)
	}
	array, err := dataset.NewArray(shape, values)
	if err != nil {
		return nil, err
	}
	times, err := decodeFloats(timevector)
	if err != nil {
		return nil, fmt.Errorf("saved modality %d timevector: %w", l.id, err)
	}
	return dataset.NewSeries(array, samplingRate.Float64, times)
}

// statisticLoader resolves a statistic's saved array from its database
// row on demand.
type statisticLoader struct {
	store *Store
	id    int64
}

func (l *statisticLoader) LoadStatistic(st *dataset.Statistic) (*dataset.Array, error) {
	var (
		shapeJSON string
		data      []byte
	)
	err := l.store.db.QueryRow(
		"SELECT shape, data FROM statistics WHERE id = ?", l.id,
	).Scan(&shapeJSON, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: saved statistic row %d is gone from %s",
			dataset.ErrMissingData, l.id, l.store.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read saved statistic %d: %w", l.id, err)
	}

	var shape []int
	if err := decodeJSON(shapeJSON, &shape); err != nil {
		return nil, err
	}
	values, err := decodeFloats(data)
	if err != nil {
		return nil, fmt.Errorf("saved statistic %d: %w", l.id, err)
	}
	return dataset.NewArray(shape, values)
}
