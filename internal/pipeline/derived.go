package pipeline

import (
	"log/slog"

	"tonguelab/internal/config"
	"tonguelab/internal/dataset"
	"tonguelab/internal/metrics"
)

// AddDerivedData derives everything the configuration asks for on the
// session. Existing derived data is retained; only missing variants
// are computed.
func (r *Runner) AddDerivedData(session *dataset.Session, cfg *config.Config) error {
	var modalityOps []ModalityOperation

	if pd := cfg.Pipeline.PixelDifference; len(pd.Norms) > 0 {
		pdConfig := metrics.PDConfig{
			Norms:             pd.Norms,
			Timesteps:         pd.Timesteps,
			MaskImages:        pd.MaskImages,
			ReleaseDataMemory: pd.ReleaseDataMemory,
		}
		modalityOps = append(modalityOps, ModalityOperation{
			Label: "PD",
			Run: func(recording *dataset.Recording, logger *slog.Logger) error {
				return metrics.AddPD(
					recording, string(dataset.KindRawUltrasound), pdConfig, logger)
			},
		})
	}

	if aggregate := cfg.Pipeline.AggregateImages; len(aggregate.Metrics) > 0 {
		aggregateConfig := metrics.AggregateConfig{Metrics: aggregate.Metrics}
		modalityOps = append(modalityOps, ModalityOperation{
			Label: "AggregateImage",
			Run: func(recording *dataset.Recording, logger *slog.Logger) error {
				return metrics.AddAggregateImages(
					recording, string(dataset.KindRawUltrasound), aggregateConfig, logger)
			},
		})
	}

	if spline := cfg.Pipeline.SplineMetrics; len(spline.Metrics) > 0 {
		splineConfig := metrics.SplineConfig{
			Timesteps: spline.Timesteps,
		}
		for _, metric := range spline.Metrics {
			splineConfig.Metrics = append(
				splineConfig.Metrics, metrics.SplineMetricKind(metric))
		}
		modalityOps = append(modalityOps, ModalityOperation{
			Label: "SplineMetric",
			Run: func(recording *dataset.Recording, logger *slog.Logger) error {
				return metrics.AddSplineMetrics(
					recording, string(dataset.KindSplines), splineConfig, logger)
			},
		})
	}

	if err := r.ProcessModalities(session, modalityOps); err != nil {
		return err
	}

	var sessionOps []SessionOperation
	if distance := cfg.Pipeline.DistanceMatrices; len(distance.Metrics) > 0 {
		distanceConfig := metrics.DistanceConfig{
			Metrics:      distance.Metrics,
			SliceSize:    distance.SliceSize,
			SliceOffsets: distance.SliceOffsets,
		}
		sessionOps = append(sessionOps, SessionOperation{
			Label: "DistanceMatrix",
			Run: func(session *dataset.Session, logger *slog.Logger) error {
				return metrics.AddDistanceMatrices(
					session, string(dataset.KindRawUltrasound), distanceConfig, logger)
			},
		})
	}
	if err := r.ProcessStatistics(session, sessionOps); err != nil {
		return err
	}

	var lateOps []ModalityOperation
	if downsample := cfg.Pipeline.Downsample; downsample.ModalityPattern != "" {
		downsampleConfig := metrics.DownsampleConfig{
			ModalityPattern: downsample.ModalityPattern,
			Ratios:          downsample.Ratios,
			MatchTimestep:   downsample.MatchTimestep,
		}
		lateOps = append(lateOps, ModalityOperation{
			Label: "Downsample",
			Run: func(recording *dataset.Recording, logger *slog.Logger) error {
				return metrics.DownsampleMetrics(recording, downsampleConfig, logger)
			},
		})
	}
	if peaks := cfg.Pipeline.Peaks; peaks.ModalityPattern != "" {
		peakConfig := metrics.PeakConfig{
			ModalityPattern: peaks.ModalityPattern,
			MinDistance:     peaks.MinDistance,
			MinProminence:   peaks.MinProminence,
		}
		lateOps = append(lateOps, ModalityOperation{
			Label: "Peaks",
			Run: func(recording *dataset.Recording, logger *slog.Logger) error {
				return metrics.AddPeaks(recording, peakConfig, logger)
			},
		})
	}
	return r.ProcessModalities(session, lateOps)
}
