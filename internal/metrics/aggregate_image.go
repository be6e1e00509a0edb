package metrics

import (
	"fmt"
	"log/slog"
	"sort"

	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
)

// AggregateConfig controls which aggregate images get derived.
type AggregateConfig struct {
	Metrics            []string
	OnInterpolatedData bool
	Interpolate        Interpolator
	ReleaseDataMemory  bool
}

func requestedAggregates(parentName string, cfg AggregateConfig) []AggregateImageParams {
	var params []AggregateImageParams
	for _, metric := range cfg.Metrics {
		p := AggregateImageParams{
			Metric:            metric,
			Parent:            parentName,
			ReleaseDataMemory: cfg.ReleaseDataMemory,
		}
		params = append(params, p)
		if cfg.OnInterpolatedData {
			p.Interpolated = true
			params = append(params, p)
		}
	}
	return params
}

// AddAggregateImages collapses the named modality's time axis into
// per-recording aggregate image statistics. Aggregates the recording
// already holds are not recomputed.
func AddAggregateImages(recording *dataset.Recording, parentName string, cfg AggregateConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	if recording.Excluded() {
		logger.Info("recording excluded from processing",
			slog.String("recording", recording.Name()))
		return nil
	}
	parent, ok := recording.Modality(parentName)
	if !ok {
		logger.Info("data modality not found in recording",
			slog.String("modality", parentName),
			slog.String("recording", recording.Name()))
		return nil
	}

	var missing []AggregateImageParams
	for _, params := range requestedAggregates(parentName, cfg) {
		if !recording.HasStatistic(params.Name()) {
			missing = append(missing, params)
		}
	}
	if len(missing) == 0 {
		logger.Info("nothing to compute for aggregate images",
			slog.String("recording", recording.Name()))
		return nil
	}

	for _, params := range missing {
		image, err := calculateAggregateImage(parent, params, cfg.Interpolate)
		if err != nil {
			return fmt.Errorf("recording %s: %w", recording.Name(), err)
		}
		statistic, err := dataset.NewStatistic(params, dataset.FileInfo{}, image)
		if err != nil {
			return err
		}
		if err := recording.AddStatistic(statistic, false); err != nil {
			return err
		}
		logger.Info("added statistic",
			slog.String("statistic", params.Name()),
			slog.String("recording", recording.Name()))
	}

	if cfg.ReleaseDataMemory {
		if err := parent.SetData(nil); err != nil {
			return err
		}
	}
	return nil
}

// calculateAggregateImage collapses the time axis with the requested
// statistic, leaving an array of the parent's frame shape.
func calculateAggregateImage(parent *dataset.Modality, params AggregateImageParams, interpolate Interpolator) (*dataset.Array, error) {
	data, err := parent.Data()
	if err != nil {
		return nil, err
	}
	if params.Interpolated {
		if interpolate == nil {
			return nil, fmt.Errorf(
				"%w: %q requested on interpolated data but no interpolator is available",
				dataset.ErrMissingData, params.Name())
		}
		if data, err = interpolate(data); err != nil {
			return nil, err
		}
	}
	frames := data.Frames()
	if frames == 0 {
		return nil, fmt.Errorf("%w: no frames to aggregate", dataset.ErrMissingData)
	}
	frameSize := data.FrameSize()
	out := make([]float64, frameSize)

	switch params.Metric {
	case "mean":
		for i := 0; i < frames; i++ {
			for j, v := range data.Frame(i) {
				out[j] += v
			}
		}
		for j := range out {
			out[j] /= float64(frames)
		}
	case "median":
		column := make([]float64, frames)
		for j := 0; j < frameSize; j++ {
			for i := 0; i < frames; i++ {
				column[i] = data.Frame(i)[j]
			}
			sort.Float64s(column)
			if frames%2 == 1 {
				out[j] = column[frames/2]
			} else {
				out[j] = (column[frames/2-1] + column[frames/2]) / 2
			}
		}
	default:
		return nil, fmt.Errorf(
			"%w: unknown aggregate metric %q", dataset.ErrMetadata, params.Metric)
	}

	shape := append([]int{}, data.Shape[1:]...)
	if len(shape) == 0 {
		shape = []int{1}
	}
	return dataset.NewArray(shape, out)
}
