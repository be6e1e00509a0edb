package metrics

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"tonguelab/internal/dataset"
	"tonguelab/internal/logging"
)

// SplineConfig controls which spline metric variants get derived.
type SplineConfig struct {
	Metrics   []SplineMetricKind
	Timesteps []int
	// ExcludeFront and ExcludeBack drop unreliable points from the
	// ends of each spline before any metric runs.
	ExcludeFront      int
	ExcludeBack       int
	ReleaseDataMemory bool
}

func requestedSplineMetrics(parentName string, cfg SplineConfig) []SplineParams {
	var params []SplineParams
	for _, timestep := range cfg.Timesteps {
		for _, metric := range cfg.Metrics {
			params = append(params, SplineParams{
				Metric:            metric,
				Timestep:          timestep,
				Parent:            parentName,
				ExcludeFront:      cfg.ExcludeFront,
				ExcludeBack:       cfg.ExcludeBack,
				ReleaseDataMemory: cfg.ReleaseDataMemory,
			})
		}
	}
	return params
}

// AddSplineMetrics derives the requested spline metrics from the named
// splines modality and adds them to the recording. Variants the
// recording already holds are not recomputed.
func AddSplineMetrics(recording *dataset.Recording, parentName string, cfg SplineConfig, logger *slog.Logger) error {
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

	var missing []SplineParams
	for _, params := range requestedSplineMetrics(parentName, cfg) {
		if !recording.HasModality(params.Name()) {
			missing = append(missing, params)
		}
	}
	if len(missing) == 0 {
		logger.Info("nothing to compute for spline metrics",
			slog.String("recording", recording.Name()))
		return nil
	}

	timevector, err := parent.Timevector()
	if err != nil {
		return err
	}
	if len(timevector) < 2 {
		logger.Warn("not enough splines found",
			slog.String("recording", recording.Name()),
			slog.Int("splines", len(timevector)))
		return nil
	}
	logger.Info("calculating spline metrics",
		slog.String("recording", recording.Name()),
		slog.String("parent", parentName),
		slog.Int("variants", len(missing)))

	for _, params := range missing {
		series, err := calculateSplineMetric(parent, params)
		if err != nil {
			return fmt.Errorf("recording %s: %w", recording.Name(), err)
		}
		modality, err := dataset.NewModality(dataset.ModalityConfig{
			Meta:    params,
			Series:  series,
			Deriver: splineDeriver{params: params},
		})
		if err != nil {
			return err
		}
		if err := recording.AddModality(modality, false); err != nil {
			return err
		}
		logger.Debug("added modality",
			slog.String("modality", params.Name()),
			slog.String("recording", recording.Name()))
	}

	if cfg.ReleaseDataMemory {
		if err := parent.SetData(nil); err != nil {
			return err
		}
	}
	return nil
}

// splineDeriver recomputes a released spline metric from its parent.
type splineDeriver struct {
	params SplineParams
}

func (d splineDeriver) DeriveFrom(parent *dataset.Modality) (*dataset.Series, error) {
	return calculateSplineMetric(parent, d.params)
}

// calculateSplineMetric computes one metric curve. Spline data has
// shape [time, coordinate, point] with coordinate being x and y.
func calculateSplineMetric(parent *dataset.Modality, params SplineParams) (*dataset.Series, error) {
	data, err := parent.Data()
	if err != nil {
		return nil, err
	}
	if len(data.Shape) != 3 {
		return nil, fmt.Errorf(
			"%w: spline data must have shape [time, coordinate, point], got %s",
			dataset.ErrDimensionMismatch, dataset.ShapeString(data.Shape))
	}
	timevector, err := parent.Timevector()
	if err != nil {
		return nil, err
	}
	samplingRate, err := parent.SamplingRate()
	if err != nil {
		return nil, err
	}

	frames := data.Frames()
	coords := data.Shape[1]
	points := data.Shape[2]
	usable := points - params.ExcludeFront - params.ExcludeBack
	if usable < 1 {
		return nil, fmt.Errorf(
			"%w: point exclusion %d+%d leaves no points out of %d",
			dataset.ErrDimensionMismatch,
			params.ExcludeFront, params.ExcludeBack, points)
	}
	if frames <= params.Timestep {
		return nil, fmt.Errorf(
			"%w: %d splines is too short for timestep %d",
			dataset.ErrDimensionMismatch, frames, params.Timestep)
	}

	// point j of frame i, with the excluded ends already skipped.
	point := func(frame []float64, coord, j int) float64 {
		return frame[coord*points+params.ExcludeFront+j]
	}

	curve := make([]float64, frames-params.Timestep)
	for i := range curve {
		current := data.Frame(i)
		next := data.Frame(i + params.Timestep)

		switch params.Metric {
		case SplineL1:
			var sum float64
			for c := 0; c < coords; c++ {
				for j := 0; j < usable; j++ {
					sum += math.Abs(point(current, c, j) - point(next, c, j))
				}
			}
			curve[i] = sum
		case SplineL2:
			var sum float64
			for c := 0; c < coords; c++ {
				for j := 0; j < usable; j++ {
					d := point(current, c, j) - point(next, c, j)
					sum += d * d
				}
			}
			curve[i] = math.Sqrt(sum)
		case APBPD, MPBPD:
			distances := make([]float64, usable)
			for j := 0; j < usable; j++ {
				var sum float64
				for c := 0; c < coords; c++ {
					d := point(current, c, j) - point(next, c, j)
					sum += d * d
				}
				distances[j] = math.Sqrt(sum)
			}
			if params.Metric == APBPD {
				curve[i] = meanFloat(distances)
			} else {
				curve[i] = medianFloat(distances)
			}
		case ANND, MNND:
			nnd := make([]float64, usable)
			for j := 0; j < usable; j++ {
				min := math.Inf(1)
				for k := 0; k < usable; k++ {
					var sum float64
					for c := 0; c < coords; c++ {
						d := point(current, c, j) - point(next, c, k)
						sum += d * d
					}
					if dist := math.Sqrt(sum); dist < min {
						min = dist
					}
				}
				nnd[j] = min
			}
			if params.Metric == ANND {
				curve[i] = meanFloat(nnd)
			} else {
				curve[i] = medianFloat(nnd)
			}
		default:
			return nil, fmt.Errorf(
				"%w: unknown spline metric %q", dataset.ErrMetadata, params.Metric)
		}
	}

	array, err := dataset.NewArray([]int{len(curve)}, curve)
	if err != nil {
		return nil, err
	}
	return dataset.NewSeries(array, samplingRate, stepTimevector(timevector, params.Timestep))
}

func meanFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func medianFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
