package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"tonguelab/internal/config"
	"tonguelab/internal/logging"
)

// commandContext lazily loads configuration and builds the logger so
// commands that never need either stay cheap.
type commandContext struct {
	configFlag *string

	cfg        *config.Config
	configPath string
	loaded     bool

	logger *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.loaded {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.configPath = resolvedPath
	c.loaded = true
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	outputs := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "tonguelab.log"))
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Color:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	c.logger = logger
	return logger, nil
}

// databasePath picks the session database location: an explicit flag
// wins, then the configured output directory, then the session
// directory itself.
func (c *commandContext) databasePath(flagValue, sessionDir string) (string, error) {
	if flagValue != "" {
		return config.ExpandPath(flagValue)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.Paths.OutputDir != "" {
		return filepath.Join(cfg.Paths.OutputDir, "sessions.db"), nil
	}
	if sessionDir != "" {
		return filepath.Join(sessionDir, "tonguelab.db"), nil
	}
	return "", fmt.Errorf("no database path: set paths.output_dir or pass --database")
}
