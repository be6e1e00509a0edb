package importers

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"tonguelab/internal/audio"
	"tonguelab/internal/config"
	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
	"tonguelab/internal/textgrid"
)

// aaaPromptTimeLayout is the recording timestamp format AAA writes
// into prompt files.
const aaaPromptTimeLayout = "02/01/2006 15:04:05"

// parseAAAPrompt reads an AAA prompt file (the plain .txt, not US.txt):
// prompt text on the first line, time of recording on the second,
// participant on the third.
func parseAAAPrompt(path string, logger *slog.Logger) (dataset.RecordingMeta, error) {
	var meta dataset.RecordingMeta
	if logger == nil {
		logger = logging.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("reading prompt file: %w", err)
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return meta, fmt.Errorf(
			"%w: prompt file %s has %d lines, need at least 2",
			dataset.ErrMetadata, path, len(lines))
	}
	timeOfRecording, err := time.ParseInLocation(
		aaaPromptTimeLayout, strings.TrimSpace(lines[1]), time.Local)
	if err != nil {
		return meta, fmt.Errorf(
			"%w: prompt file %s: %v", dataset.ErrMetadata, path, err)
	}

	meta = dataset.RecordingMeta{
		Prompt:          strings.TrimSpace(lines[0]),
		TimeOfRecording: timeOfRecording,
		Basename:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:            filepath.Dir(path),
	}
	if len(lines) > 2 && strings.TrimSpace(lines[2]) != "" {
		meta.ParticipantID = strings.TrimSpace(strings.Split(lines[2], ",")[0])
	} else {
		logger.Info("participant does not have an id",
			slog.String("file", path))
	}
	return meta, meta.Validate()
}

// ImportAAASession produces a Session from an AAA export directory.
//
// Every prompt file becomes a Recording regardless of whether its
// companion files exist; a recording with crucial files missing is
// marked excluded rather than dropped, and the log shows the reason.
// Recordings are sorted by time of recording.
func ImportAAASession(directory string, cfg *config.Config, logger *slog.Logger) (*dataset.Session, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	promptFiles, err := aaaPromptFiles(directory, cfg)
	if err != nil {
		return nil, err
	}
	if len(promptFiles) == 0 {
		return nil, fmt.Errorf(
			"%w: no prompt files found in %s", dataset.ErrMissingData, directory)
	}

	var mains *audio.MainsFilter
	if cfg.Audio.MainsFrequency > 0 {
		// AAA audio is recorded at 44.1 kHz
		mains, err = audio.NewMainsFilter(44100, cfg.Audio.MainsFrequency)
		if err != nil {
			return nil, err
		}
	}

	recordings := make([]*dataset.Recording, 0, len(promptFiles))
	for _, promptFile := range promptFiles {
		recording, err := importAAARecording(promptFile, cfg, mains, logger)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, recording)
	}
	sort.SliceStable(recordings, func(i, j int) bool {
		return recordings[i].Meta().TimeOfRecording.Before(
			recordings[j].Meta().TimeOfRecording)
	})

	sessionConfig := dataset.SessionConfig{
		DataSource:      cfg.Import.DataSource,
		ExcludedPrompts: cfg.Import.ExcludedPrompts,
		ExcludedFiles:   cfg.Import.ExcludedFiles,
		Epsilon:         cfg.Time.Epsilon,
	}
	return dataset.NewSession(
		filepath.Base(directory),
		sessionConfig,
		dataset.FileInfo{RecordedPath: directory},
		recordings,
	)
}

// aaaPromptFiles lists the prompt files of an export directory, which
// are the .txt files that are not ultrasound metadata files.
func aaaPromptFiles(directory string, cfg *config.Config) ([]string, error) {
	metaExt := cfg.Import.UltrasoundMetaExt
	if metaExt == "" {
		metaExt = "US.txt"
	}
	promptExt := cfg.Import.PromptExtension
	if promptExt == "" {
		promptExt = ".txt"
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}
	var prompts []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, promptExt) {
			continue
		}
		if strings.HasSuffix(name, metaExt) {
			continue
		}
		prompts = append(prompts, filepath.Join(directory, name))
	}
	sort.Strings(prompts)
	return prompts, nil
}

func importAAARecording(promptFile string, cfg *config.Config, mains *audio.MainsFilter, logger *slog.Logger) (*dataset.Recording, error) {
	meta, err := parseAAAPrompt(promptFile, logger)
	if err != nil {
		return nil, err
	}
	recording, err := dataset.NewRecording(meta, dataset.FileInfo{
		RecordedMetaFile: promptFile,
		RecordedPath:     meta.Path,
	})
	if err != nil {
		return nil, err
	}

	if slices.Contains(cfg.Import.ExcludedPrompts, meta.Prompt) {
		logger.Info("recording excluded by prompt",
			slog.String("recording", meta.Basename),
			slog.String("prompt", meta.Prompt))
		recording.Exclude()
		return recording, nil
	}
	if slices.Contains(cfg.Import.ExcludedFiles, meta.Basename) {
		logger.Info("recording excluded by file name",
			slog.String("recording", meta.Basename))
		recording.Exclude()
		return recording, nil
	}

	addAAAUltrasound(recording, cfg, logger)
	addAAAAudio(recording, cfg, mains, logger)
	addAAATextGrid(recording, logger)
	recording.AfterModalitiesInit(logger)
	return recording, nil
}

// addAAAUltrasound attaches a lazily read RawUltrasound modality.
// Missing metadata or data excludes the recording; geometry-less
// frames cannot be interpreted.
func addAAAUltrasound(recording *dataset.Recording, cfg *config.Config, logger *slog.Logger) {
	meta := recording.Meta()
	base := filepath.Join(meta.Path, meta.Basename)

	metaExt := cfg.Import.UltrasoundMetaExt
	if metaExt == "" {
		metaExt = "US.txt"
	}
	metaPath := base + metaExt
	if _, err := os.Stat(metaPath); err != nil {
		metaPath = base + ".param"
	}
	if _, err := os.Stat(metaPath); err != nil {
		logger.Warn("ultrasound metadata does not exist, excluding",
			slog.String("recording", meta.Basename))
		recording.Exclude()
		return
	}

	ultrasoundMeta, err := parseUltrasoundMeta(metaPath)
	if err != nil {
		logger.Warn("unreadable ultrasound metadata, excluding",
			slog.String("recording", meta.Basename),
			slog.Any("error", err))
		recording.Exclude()
		return
	}

	ultExt := cfg.Import.UltrasoundExt
	if ultExt == "" {
		ultExt = ".ult"
	}
	ultPath := base + ultExt
	if _, err := os.Stat(ultPath); err != nil {
		logger.Warn("ultrasound data does not exist, excluding",
			slog.String("recording", meta.Basename))
		recording.Exclude()
		return
	}

	modality, err := dataset.NewModality(dataset.ModalityConfig{
		Meta: ultrasoundMeta,
		Files: dataset.FileInfo{
			RecordedDataFile: ultPath,
			RecordedMetaFile: metaPath,
			RecordedPath:     meta.Path,
		},
		TimeOffset: ultrasoundMeta.TimeOffset,
		Reader:     &ultReader{meta: ultrasoundMeta},
	})
	if err != nil {
		logger.Warn("cannot build ultrasound modality, excluding",
			slog.String("recording", meta.Basename),
			slog.Any("error", err))
		recording.Exclude()
		return
	}
	if err := recording.AddModality(modality, false); err != nil {
		logger.Warn("cannot add ultrasound modality",
			slog.String("recording", meta.Basename),
			slog.Any("error", err))
	}
}

// addAAAAudio attaches a lazily read MonoAudio modality. A missing
// wav excludes the recording; without audio there is no time baseline.
func addAAAAudio(recording *dataset.Recording, cfg *config.Config, mains *audio.MainsFilter, logger *slog.Logger) {
	meta := recording.Meta()
	wavExt := cfg.Import.WavExtension
	if wavExt == "" {
		wavExt = ".wav"
	}
	wavPath := filepath.Join(meta.Path, meta.Basename) + wavExt
	if _, err := os.Stat(wavPath); err != nil {
		logger.Warn("audio does not exist, excluding",
			slog.String("recording", meta.Basename))
		recording.Exclude()
		return
	}

	modality, err := dataset.NewModality(dataset.ModalityConfig{
		Meta: dataset.RecordedMeta{Kind: dataset.KindMonoAudio},
		Files: dataset.FileInfo{
			RecordedDataFile: wavPath,
			RecordedPath:     meta.Path,
		},
		Reader: &wavReader{
			mains:          mains,
			mainsFrequency: cfg.Audio.MainsFrequency,
			detectBeep:     cfg.Audio.DetectBeep,
		},
	})
	if err != nil {
		logger.Warn("cannot build audio modality, excluding",
			slog.String("recording", meta.Basename),
			slog.Any("error", err))
		recording.Exclude()
		return
	}
	if err := recording.AddModality(modality, false); err != nil {
		logger.Warn("cannot add audio modality",
			slog.String("recording", meta.Basename),
			slog.Any("error", err))
	}
}

// addAAATextGrid attaches a transcription grid when one exists. A
// missing grid is non-fatal; a placeholder gets created later.
func addAAATextGrid(recording *dataset.Recording, logger *slog.Logger) {
	meta := recording.Meta()
	for _, ext := range []string{".TextGrid", ".textgrid"} {
		path := filepath.Join(meta.Path, meta.Basename) + ext
		if _, err := os.Stat(path); err != nil {
			continue
		}
		grid, err := textgrid.ParseFile(path)
		if err != nil {
			logger.Warn("unreadable TextGrid",
				slog.String("recording", meta.Basename),
				slog.Any("error", err))
			return
		}
		recording.SetGrid(grid)
		return
	}
}
