package metrics

import (
	"fmt"
	"log/slog"

	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
)

// DistanceConfig controls which distance matrices get derived.
type DistanceConfig struct {
	Metrics []string
	// AggregateMetric names the per-recording aggregate image the
	// matrix is computed over. Defaults to mean.
	AggregateMetric    string
	OnInterpolatedData bool
	// SliceSize restricts each comparison to a band of that many
	// scanlines; one matrix gets computed per offset in SliceOffsets.
	// Zero SliceSize compares whole images.
	SliceSize         int
	SliceOffsets      []int
	ReleaseDataMemory bool
}

func requestedDistanceMatrices(parentName string, cfg DistanceConfig) []DistanceMatrixParams {
	aggregate := cfg.AggregateMetric
	if aggregate == "" {
		aggregate = "mean"
	}
	offsets := []int{0}
	if cfg.SliceSize > 0 && len(cfg.SliceOffsets) > 0 {
		offsets = cfg.SliceOffsets
	}
	var params []DistanceMatrixParams
	for _, metric := range cfg.Metrics {
		for _, offset := range offsets {
			p := DistanceMatrixParams{
				Metric:            metric,
				Parent:            parentName,
				AggregateMetric:   aggregate,
				SliceSize:         cfg.SliceSize,
				SliceOffset:       offset,
				ReleaseDataMemory: cfg.ReleaseDataMemory,
			}
			params = append(params, p)
			if cfg.OnInterpolatedData {
				p.Interpolated = true
				params = append(params, p)
			}
		}
	}
	return params
}

// AddDistanceMatrices computes pairwise distances between the aggregate
// images of the session's recordings and adds the resulting matrices as
// session statistics. Matrices the session already holds are not
// recomputed. Excluded recordings do not contribute; a non-excluded
// recording without the required aggregate image is an error, because a
// silently missing row would shift every index in the matrix.
func AddDistanceMatrices(session *dataset.Session, parentName string, cfg DistanceConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	var missing []DistanceMatrixParams
	for _, params := range requestedDistanceMatrices(parentName, cfg) {
		if !session.HasStatistic(params.Name()) {
			missing = append(missing, params)
		}
	}
	if len(missing) == 0 {
		logger.Info("nothing to compute for distance matrices",
			slog.String("session", session.Name()))
		return nil
	}

	for _, params := range missing {
		images := make([]*dataset.Array, 0, session.RecordingCount())
		aggregateName := AggregateImageParams{
			Metric:       params.AggregateMetric,
			Parent:       params.Parent,
			Interpolated: params.Interpolated,
		}.Name()
		for _, recording := range session.Recordings() {
			if recording.Excluded() {
				continue
			}
			statistic, ok := recording.Statistic(aggregateName)
			if !ok {
				return fmt.Errorf(
					"%w: recording %q has no %q statistic needed for %q",
					dataset.ErrMissingData, recording.Name(), aggregateName,
					params.Name())
			}
			image, err := statistic.Data()
			if err != nil {
				return err
			}
			if params.SliceSize > 0 {
				image, err = sliceImage(image, params.SliceSize, params.SliceOffset)
				if err != nil {
					return fmt.Errorf("recording %q: %w", recording.Name(), err)
				}
			}
			images = append(images, image)
		}

		matrix, err := calculateDistanceMatrix(images, params.Metric)
		if err != nil {
			return fmt.Errorf("session %s: %w", session.Name(), err)
		}
		statistic, err := dataset.NewStatistic(params, dataset.FileInfo{}, matrix)
		if err != nil {
			return err
		}
		if err := session.AddStatistic(statistic, false); err != nil {
			return err
		}
		logger.Info("added statistic",
			slog.String("statistic", params.Name()),
			slog.String("session", session.Name()))
	}
	return nil
}

// calculateDistanceMatrix computes a symmetric matrix where element
// [i,j] is the distance between the ith and jth image.
func calculateDistanceMatrix(images []*dataset.Array, metric string) (*dataset.Array, error) {
	if metric != "mean_squared_error" {
		return nil, fmt.Errorf(
			"%w: unknown distance metric %q", dataset.ErrMetadata, metric)
	}
	n := len(images)
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			mse, err := meanSquaredError(images[i], images[j])
			if err != nil {
				return nil, fmt.Errorf("images %d and %d: %w", i, j, err)
			}
			out[i*n+j] = mse
			out[j*n+i] = mse
		}
	}
	return dataset.NewArray([]int{n, n}, out)
}

// sliceImage takes size scanlines starting at offset from an aggregate
// image, whose first axis runs across scanlines.
func sliceImage(image *dataset.Array, size, offset int) (*dataset.Array, error) {
	if len(image.Shape) != 2 {
		return nil, fmt.Errorf(
			"%w: slicing needs a 2-dimensional image, got shape %s",
			dataset.ErrDimensionMismatch, dataset.ShapeString(image.Shape))
	}
	scanlines, width := image.Shape[0], image.Shape[1]
	if offset+size > scanlines {
		return nil, fmt.Errorf(
			"%w: slice [%d, %d) outside the image's %d scanlines",
			dataset.ErrDimensionMismatch, offset, offset+size, scanlines)
	}
	data := image.Data[offset*width : (offset+size)*width]
	return dataset.NewArray([]int{size, width}, append([]float64{}, data...))
}

func meanSquaredError(a, b *dataset.Array) (float64, error) {
	if !a.SameShape(b) {
		return 0, fmt.Errorf(
			"%w: shapes %s and %s differ",
			dataset.ErrDimensionMismatch,
			dataset.ShapeString(a.Shape), dataset.ShapeString(b.Shape))
	}
	var sum float64
	for i, v := range a.Data {
		d := v - b.Data[i]
		sum += d * d
	}
	return sum / float64(len(a.Data)), nil
}
