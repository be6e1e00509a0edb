package metrics

import (
	"fmt"
	"slices"

	"tonguelab/internal/dataset"
)

// ImageMask selects which half of an ultrasound frame a metric is
// restricted to.
type ImageMask string

const (
	MaskTop    ImageMask = "top"
	MaskBottom ImageMask = "bottom"
	MaskWhole  ImageMask = "whole"
)

// allMasks in the order masked variants are generated.
var allMasks = []ImageMask{MaskTop, MaskBottom, MaskWhole}

// acceptedNorms are the norms PD knows how to calculate.
var acceptedNorms = []string{
	"l0", "l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "l9", "l10",
	"l_inf",
}

// PDParams is the parameter record of one pixel difference modality.
// The canonical name is a pure function of this record.
type PDParams struct {
	Norm         string
	Timestep     int
	Parent       string
	Mask         ImageMask
	Interpolated bool
	// ReleaseDataMemory releases the parent's sample array after
	// derivation.
	ReleaseDataMemory bool
	DownsampledBy     int
}

func (p PDParams) Name() string {
	return dataset.NameSpec{
		Class:         "PD",
		Metric:        p.Norm,
		Mask:          string(p.Mask),
		Timestep:      p.Timestep,
		Parent:        p.Parent,
		Interpolated:  p.Interpolated,
		DownsampledBy: p.DownsampledBy,
	}.String()
}

func (p PDParams) ParentName() string { return p.Parent }

func (p PDParams) Validate() error {
	if !slices.Contains(acceptedNorms, p.Norm) {
		return fmt.Errorf("%w: unknown norm %q", dataset.ErrMetadata, p.Norm)
	}
	if p.Timestep < 1 {
		return fmt.Errorf("%w: timestep %d < 1", dataset.ErrMetadata, p.Timestep)
	}
	if p.Parent == "" {
		return fmt.Errorf("%w: pixel difference needs a parent modality", dataset.ErrMetadata)
	}
	return nil
}

func (p PDParams) Fields() map[string]any {
	return map[string]any{
		"norm":                p.Norm,
		"timestep":            p.Timestep,
		"parent_name":         p.Parent,
		"image_mask":          string(p.Mask),
		"interpolated":        p.Interpolated,
		"release_data_memory": p.ReleaseDataMemory,
		"downsampled_by":      p.DownsampledBy,
	}
}

func (p PDParams) TimestepValue() int { return p.Timestep }

func (p PDParams) WithDownsampling(ratio int) dataset.Meta {
	p.DownsampledBy = ratio
	return p
}

// SplineMetricKind names one spline-to-spline distance metric.
type SplineMetricKind string

const (
	// SplineL1 and SplineL2 treat the whole spline as one vector.
	SplineL1 SplineMetricKind = "spline_l1"
	SplineL2 SplineMetricKind = "spline_l2"
	// APBPD and MPBPD are the average and median point-by-point
	// distances between consecutive splines.
	APBPD SplineMetricKind = "apbpd"
	MPBPD SplineMetricKind = "mpbpd"
	// ANND and MNND are the average and median nearest neighbour
	// distances, which tolerate splines whose points slide along the
	// tongue surface between frames.
	ANND SplineMetricKind = "annd"
	MNND SplineMetricKind = "mnnd"
)

var acceptedSplineMetrics = []SplineMetricKind{
	SplineL1, SplineL2, APBPD, MPBPD, ANND, MNND,
}

// SplineParams is the parameter record of one spline metric modality.
type SplineParams struct {
	Metric   SplineMetricKind
	Timestep int
	Parent   string
	// ExcludeFront and ExcludeBack drop unreliable points from the
	// ends of each spline before the metric is calculated.
	ExcludeFront      int
	ExcludeBack       int
	ReleaseDataMemory bool
	DownsampledBy     int
}

func (p SplineParams) Name() string {
	return dataset.NameSpec{
		Class:         "SplineMetric",
		Metric:        string(p.Metric),
		Timestep:      p.Timestep,
		Parent:        p.Parent,
		DownsampledBy: p.DownsampledBy,
	}.String()
}

func (p SplineParams) ParentName() string { return p.Parent }

func (p SplineParams) Validate() error {
	if !slices.Contains(acceptedSplineMetrics, p.Metric) {
		return fmt.Errorf("%w: unknown spline metric %q", dataset.ErrMetadata, p.Metric)
	}
	if p.Timestep < 1 {
		return fmt.Errorf("%w: timestep %d < 1", dataset.ErrMetadata, p.Timestep)
	}
	if p.Parent == "" {
		return fmt.Errorf("%w: spline metric needs a parent modality", dataset.ErrMetadata)
	}
	if p.ExcludeFront < 0 || p.ExcludeBack < 0 {
		return fmt.Errorf("%w: negative point exclusion", dataset.ErrMetadata)
	}
	return nil
}

func (p SplineParams) Fields() map[string]any {
	return map[string]any{
		"metric":              string(p.Metric),
		"timestep":            p.Timestep,
		"parent_name":         p.Parent,
		"exclude_front":       p.ExcludeFront,
		"exclude_back":        p.ExcludeBack,
		"release_data_memory": p.ReleaseDataMemory,
		"downsampled_by":      p.DownsampledBy,
	}
}

func (p SplineParams) TimestepValue() int { return p.Timestep }

func (p SplineParams) WithDownsampling(ratio int) dataset.Meta {
	p.DownsampledBy = ratio
	return p
}

// acceptedAggregateMetrics are the statistics an aggregate image can
// be computed with.
var acceptedAggregateMetrics = []string{"mean", "median"}

// AggregateImageParams is the parameter record of one aggregate image
// statistic.
type AggregateImageParams struct {
	Metric            string
	Parent            string
	Interpolated      bool
	ReleaseDataMemory bool
}

func (p AggregateImageParams) Name() string {
	return dataset.NameSpec{
		Class:        "AggregateImage",
		Metric:       p.Metric,
		Parent:       p.Parent,
		Interpolated: p.Interpolated,
	}.String()
}

func (p AggregateImageParams) ParentName() string { return p.Parent }

func (p AggregateImageParams) Validate() error {
	if !slices.Contains(acceptedAggregateMetrics, p.Metric) {
		return fmt.Errorf("%w: unknown aggregate metric %q", dataset.ErrMetadata, p.Metric)
	}
	if p.Parent == "" {
		return fmt.Errorf("%w: aggregate image needs a parent modality", dataset.ErrMetadata)
	}
	return nil
}

func (p AggregateImageParams) Fields() map[string]any {
	return map[string]any{
		"metric":              p.Metric,
		"parent_name":         p.Parent,
		"interpolated":        p.Interpolated,
		"release_data_memory": p.ReleaseDataMemory,
	}
}

// acceptedDistanceMetrics are the pairwise distances a distance matrix
// can be computed with.
var acceptedDistanceMetrics = []string{"mean_squared_error"}

// DistanceMatrixParams is the parameter record of one session-level
// distance matrix statistic.
type DistanceMatrixParams struct {
	Metric string
	Parent string
	// AggregateMetric names the per-recording aggregate image metric
	// the matrix is computed over.
	AggregateMetric string
	Interpolated    bool
	// SliceSize and SliceOffset restrict the comparison to a band of
	// scanlines, which simulates a probe rotated away from its
	// recorded position. Zero SliceSize compares whole images.
	SliceSize         int
	SliceOffset       int
	ReleaseDataMemory bool
}

func (p DistanceMatrixParams) Name() string {
	return dataset.NameSpec{
		Class:        "DistanceMatrix",
		Metric:       p.Metric,
		Parent:       p.Parent,
		Interpolated: p.Interpolated,
		SliceSize:    p.SliceSize,
		SliceOffset:  p.SliceOffset,
	}.String()
}

func (p DistanceMatrixParams) ParentName() string { return p.Parent }

func (p DistanceMatrixParams) Validate() error {
	if !slices.Contains(acceptedDistanceMetrics, p.Metric) {
		return fmt.Errorf("%w: unknown distance metric %q", dataset.ErrMetadata, p.Metric)
	}
	if p.Parent == "" {
		return fmt.Errorf("%w: distance matrix needs a parent modality", dataset.ErrMetadata)
	}
	if !slices.Contains(acceptedAggregateMetrics, p.AggregateMetric) {
		return fmt.Errorf(
			"%w: unknown aggregate metric %q", dataset.ErrMetadata, p.AggregateMetric)
	}
	if p.SliceSize < 0 || p.SliceOffset < 0 {
		return fmt.Errorf(
			"%w: negative slice size or offset", dataset.ErrMetadata)
	}
	if p.SliceSize == 0 && p.SliceOffset > 0 {
		return fmt.Errorf(
			"%w: slice offset %d without a slice size", dataset.ErrMetadata, p.SliceOffset)
	}
	return nil
}

func (p DistanceMatrixParams) Fields() map[string]any {
	return map[string]any{
		"metric":              p.Metric,
		"parent_name":         p.Parent,
		"aggregate_metric":    p.AggregateMetric,
		"interpolated":        p.Interpolated,
		"slice_size":          p.SliceSize,
		"slice_offset":        p.SliceOffset,
		"release_data_memory": p.ReleaseDataMemory,
	}
}
