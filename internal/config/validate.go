package config

import (
	"fmt"
	"strings"
)

var knownDataSources = map[string]struct{}{
	"AAA":       {},
	"RASL_3D4D": {},
	"tonguelab": {},
}

// Validate checks configuration values that would otherwise fail deep
// inside a processing run.
func (c *Config) Validate() error {
	if _, ok := knownDataSources[c.Import.DataSource]; !ok {
		return fmt.Errorf(
			"config: unknown data source %q (known: AAA, RASL_3D4D, tonguelab)",
			c.Import.DataSource)
	}

	switch c.Audio.MainsFrequency {
	case 50, 60:
	default:
		return fmt.Errorf(
			"config: mains_frequency must be 50 or 60, got %g",
			c.Audio.MainsFrequency)
	}

	if c.Time.Epsilon < 0 {
		return fmt.Errorf("config: epsilon must not be negative, got %g", c.Time.Epsilon)
	}

	for _, ts := range c.Pipeline.PixelDifference.Timesteps {
		if ts < 1 {
			return fmt.Errorf("config: pixel_difference timestep must be positive, got %d", ts)
		}
	}
	for _, ts := range c.Pipeline.SplineMetrics.Timesteps {
		if ts < 1 {
			return fmt.Errorf("config: spline_metrics timestep must be positive, got %d", ts)
		}
	}
	distance := c.Pipeline.DistanceMatrices
	if distance.SliceSize < 0 {
		return fmt.Errorf(
			"config: distance_matrices slice_size must not be negative, got %d",
			distance.SliceSize)
	}
	for _, offset := range distance.SliceOffsets {
		if offset < 0 {
			return fmt.Errorf(
				"config: distance_matrices slice_offset must not be negative, got %d", offset)
		}
	}
	if distance.SliceSize == 0 && len(distance.SliceOffsets) > 0 {
		return fmt.Errorf("config: distance_matrices slice_offsets need a slice_size")
	}
	for _, ratio := range c.Pipeline.Downsample.Ratios {
		if ratio < 2 {
			return fmt.Errorf("config: downsample ratio must be at least 2, got %d", ratio)
		}
	}
	if c.Pipeline.Peaks.MinDistance < 1 {
		return fmt.Errorf(
			"config: peaks min_distance must be positive, got %d",
			c.Pipeline.Peaks.MinDistance)
	}

	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format != "" && format != "console" && format != "json" {
		return fmt.Errorf("config: log format must be console or json, got %q", c.Logging.Format)
	}

	return nil
}
