package metrics

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
)

// DownsampleConfig controls which modalities get downsampled copies.
type DownsampleConfig struct {
	// ModalityPattern selects modalities by substring match on their
	// canonical names.
	ModalityPattern string
	Ratios          []int
	// MatchTimestep restricts downsampling of each modality to the
	// ratio equal to the modality's own timestep. This keeps a
	// downsampled difference metric aligned with what the same metric
	// would look like computed on downsampled source data.
	MatchTimestep bool
}

// downsampleable is satisfied by parameter records that carry a
// timestep and know how to describe a downsampled copy of themselves.
type downsampleable interface {
	dataset.Meta
	TimestepValue() int
	WithDownsampling(ratio int) dataset.Meta
}

// DownsampleMetrics adds downsampled copies of every modality matching
// the pattern. Copies the recording already holds are not recomputed,
// and modalities that are already downsampled are never downsampled
// again.
func DownsampleMetrics(recording *dataset.Recording, cfg DownsampleConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	if recording.Excluded() {
		logger.Info("recording excluded from processing",
			slog.String("recording", recording.Name()))
		return nil
	}
	for _, name := range recording.ModalityNames() {
		if !strings.Contains(name, cfg.ModalityPattern) {
			continue
		}
		modality, _ := recording.Modality(name)
		params, ok := modality.Meta().(downsampleable)
		if !ok {
			logger.Debug("modality cannot be downsampled",
				slog.String("modality", name))
			continue
		}
		if strings.Contains(name, "downsampled by") {
			continue
		}

		var ratios []int
		if cfg.MatchTimestep {
			if slices.Contains(cfg.Ratios, params.TimestepValue()) {
				ratios = []int{params.TimestepValue()}
			}
		} else {
			ratios = cfg.Ratios
		}

		for _, ratio := range ratios {
			meta := params.WithDownsampling(ratio)
			if recording.HasModality(meta.Name()) {
				continue
			}
			downsampled, err := downsampleModality(modality, meta, ratio)
			if err != nil {
				return fmt.Errorf("recording %s: %w", recording.Name(), err)
			}
			if err := recording.AddModality(downsampled, false); err != nil {
				return err
			}
			logger.Info("added modality",
				slog.String("modality", meta.Name()),
				slog.String("recording", recording.Name()))
		}
	}
	return nil
}

// downsampleModality keeps every ratio-th frame and divides the
// sampling rate accordingly.
func downsampleModality(modality *dataset.Modality, meta dataset.Meta, ratio int) (*dataset.Modality, error) {
	if ratio < 2 {
		return nil, fmt.Errorf(
			"%w: downsampling ratio %d < 2", dataset.ErrMetadata, ratio)
	}
	data, err := modality.Data()
	if err != nil {
		return nil, err
	}
	timevector, err := modality.Timevector()
	if err != nil {
		return nil, err
	}
	samplingRate, err := modality.SamplingRate()
	if err != nil {
		return nil, err
	}

	frames := data.Frames()
	frameSize := data.FrameSize()
	outFrames := (frames + ratio - 1) / ratio
	samples := make([]float64, 0, outFrames*frameSize)
	times := make([]float64, 0, outFrames)
	for i := 0; i < frames; i += ratio {
		samples = append(samples, data.Frame(i)...)
		times = append(times, timevector[i])
	}
	shape := append([]int{outFrames}, data.Shape[1:]...)
	array, err := dataset.NewArray(shape, samples)
	if err != nil {
		return nil, err
	}
	series, err := dataset.NewSeries(array, samplingRate/float64(ratio), times)
	if err != nil {
		return nil, err
	}
	return dataset.NewModality(dataset.ModalityConfig{Meta: meta, Series: series})
}
