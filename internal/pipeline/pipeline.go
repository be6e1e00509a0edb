package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
)

// ModalityOperation derives modalities or recording-level statistics
// on one recording.
type ModalityOperation struct {
	Label string
	Run   func(recording *dataset.Recording, logger *slog.Logger) error
}

// SessionOperation derives session-level statistics.
type SessionOperation struct {
	Label string
	Run   func(session *dataset.Session, logger *slog.Logger) error
}

// Runner applies operations to a session. Each run gets a correlation
// id so log lines from concurrent invocations stay distinguishable.
type Runner struct {
	logger *slog.Logger
}

// NewRunner builds a runner logging through the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{logger: logger}
}

// ProcessModalities applies the operations to every recording in the
// session's stored order. Excluded recordings are skipped with a log
// line. A failing derivation aborts the run: the error is returned
// immediately so partially derived state never goes unnoticed.
func (r *Runner) ProcessModalities(session *dataset.Session, operations []ModalityOperation) error {
	if len(operations) == 0 {
		return nil
	}
	runID := uuid.NewString()
	logger := r.logger.With(logging.String(logging.FieldRunID, runID))
	logger.Info("deriving modalities",
		logging.String("session", session.Name()),
		logging.Int("recordings", session.RecordingCount()),
		logging.Int("operations", len(operations)))

	for _, recording := range session.Recordings() {
		if recording.Excluded() {
			logger.Info("recording excluded from processing",
				logging.String(logging.FieldRecording, recording.Name()))
			continue
		}
		for _, operation := range operations {
			operationLogger := logger.With(
				logging.String(logging.FieldLabel, operation.Label))
			if err := operation.Run(recording, operationLogger); err != nil {
				return fmt.Errorf("operation %s on recording %s: %w",
					operation.Label, recording.Name(), err)
			}
		}
	}
	logger.Info("modalities processed",
		logging.String("session", session.Name()))
	return nil
}

// ProcessStatistics applies session-level operations in order.
func (r *Runner) ProcessStatistics(session *dataset.Session, operations []SessionOperation) error {
	if len(operations) == 0 {
		return nil
	}
	runID := uuid.NewString()
	logger := r.logger.With(logging.String(logging.FieldRunID, runID))
	logger.Info("deriving session statistics",
		logging.String("session", session.Name()),
		logging.Int("operations", len(operations)))

	for _, operation := range operations {
		operationLogger := logger.With(
			logging.String(logging.FieldLabel, operation.Label))
		if err := operation.Run(session, operationLogger); err != nil {
			return fmt.Errorf("operation %s on session %s: %w",
				operation.Label, session.Name(), err)
		}
	}
	logger.Info("session statistics processed",
		logging.String("session", session.Name()))
	return nil
}
