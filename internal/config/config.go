package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Import contains configuration for reading recorded sessions.
type Import struct {
	DataSource        string   `toml:"data_source"`
	ExcludedPrompts   []string `toml:"excluded_prompts"`
	ExcludedFiles     []string `toml:"excluded_files"`
	WavExtension      string   `toml:"wav_extension"`
	UltrasoundExt     string   `toml:"ultrasound_extension"`
	PromptExtension   string   `toml:"prompt_extension"`
	UltrasoundMetaExt string   `toml:"ultrasound_meta_extension"`
}

// Audio contains configuration for audio preprocessing.
type Audio struct {
	MainsFrequency float64 `toml:"mains_frequency"`
	DetectBeep     bool    `toml:"detect_beep"`
}

// Time contains timestamp comparison configuration.
type Time struct {
	// Epsilon is the tolerance used when cross-referencing independently
	// derived time vectors. Zero means "use the data's own precision".
	Epsilon float64 `toml:"epsilon"`
}

// PixelDifference contains default parameters for PD derivation.
type PixelDifference struct {
	Norms              []string `toml:"norms"`
	Timesteps          []int    `toml:"timesteps"`
	MaskImages         bool     `toml:"mask_images"`
	OnInterpolatedData bool     `toml:"on_interpolated_data"`
	ReleaseDataMemory  bool     `toml:"release_data_memory"`
}

// SplineMetrics contains default parameters for spline metric derivation.
type SplineMetrics struct {
	Metrics   []string `toml:"metrics"`
	Timesteps []int    `toml:"timesteps"`
}

// AggregateImages contains default parameters for aggregate image derivation.
type AggregateImages struct {
	Metrics []string `toml:"metrics"`
}

// DistanceMatrices contains default parameters for session distance matrices.
type DistanceMatrices struct {
	Metrics []string `toml:"metrics"`
	// SliceSize restricts each comparison to a band of that many
	// scanlines; one matrix is computed per offset in SliceOffsets.
	SliceSize    int   `toml:"slice_size"`
	SliceOffsets []int `toml:"slice_offsets"`
}

// Downsample contains default parameters for metric downsampling.
type Downsample struct {
	ModalityPattern string `toml:"modality_pattern"`
	Ratios          []int  `toml:"ratios"`
	MatchTimestep   bool   `toml:"match_timestep"`
}

// Peaks contains default parameters for peak annotation.
type Peaks struct {
	ModalityPattern string  `toml:"modality_pattern"`
	MinDistance     int     `toml:"min_distance"`
	MinProminence   float64 `toml:"min_prominence"`
}

// Pipeline groups the default derivation parameters.
type Pipeline struct {
	PixelDifference  PixelDifference  `toml:"pixel_difference"`
	SplineMetrics    SplineMetrics    `toml:"spline_metrics"`
	AggregateImages  AggregateImages  `toml:"aggregate_images"`
	DistanceMatrices DistanceMatrices `toml:"distance_matrices"`
	Downsample       Downsample       `toml:"downsample"`
	Peaks            Peaks            `toml:"peaks"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tonguelab.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Import   Import   `toml:"import"`
	Audio    Audio    `toml:"audio"`
	Time     Time     `toml:"time"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tonguelab/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tonguelab.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir != "" {
		if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
			return err
		}
	}
	if c.Paths.OutputDir != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return err
		}
	}
	if c.Paths.LogDir != "" {
		if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
			return err
		}
	}
	c.Import.DataSource = strings.TrimSpace(c.Import.DataSource)
	return nil
}

// EnsureDirectories creates required directories for a processing run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
