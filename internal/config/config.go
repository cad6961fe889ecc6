// Package config provides configuration management for sketchcad using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files and environment variable
// overrides with the SKETCHCAD_ prefix. It manages solver tolerances,
// profile extraction, spatial query, preview server, and watch settings.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Solver  SolverConfig  `yaml:"solver"`
	Profile ProfileConfig `yaml:"profile"`
	Spatial SpatialConfig `yaml:"spatial"`
	Preview PreviewConfig `yaml:"preview"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
}

// SolverConfig tunes the Newton iteration.
type SolverConfig struct {
	ResidualTol   float64 `yaml:"residual_tol"`
	MaxIterations int     `yaml:"max_iterations"`
	Rcond         float64 `yaml:"rcond"`
}

// ProfileConfig tunes closed-region extraction.
type ProfileConfig struct {
	MergeTol   float64 `yaml:"merge_tol"`
	ArcSamples int     `yaml:"arc_samples"`
}

// SpatialConfig tunes the query layer.
type SpatialConfig struct {
	SnapRadius float64 `yaml:"snap_radius"`
	GridCell   float64 `yaml:"grid_cell"`
}

// PreviewConfig configures the viewport preview server.
type PreviewConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig configures the document file watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Solver: SolverConfig{
			ResidualTol:   1e-9,
			MaxIterations: 50,
			Rcond:         1e-10,
		},
		Profile: ProfileConfig{
			MergeTol:   1e-6,
			ArcSamples: 32,
		},
		Spatial: SpatialConfig{
			SnapRadius: 8,
			GridCell:   32,
		},
		Preview: PreviewConfig{
			Host: "localhost",
			Port: 8321,
		},
		Watch: WatchConfig{
			DebounceMs: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from viper state layered over the defaults.
func Load() (*Config, error) {
	config := Default()
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Viper's zero-value handling can clobber defaults when keys are
	// absent from the file; restore them explicitly.
	if config.Solver.ResidualTol == 0 {
		config.Solver.ResidualTol = 1e-9
	}
	if config.Solver.MaxIterations == 0 {
		config.Solver.MaxIterations = 50
	}
	if config.Solver.Rcond == 0 {
		config.Solver.Rcond = 1e-10
	}
	if config.Profile.MergeTol == 0 {
		config.Profile.MergeTol = 1e-6
	}
	if config.Profile.ArcSamples == 0 {
		config.Profile.ArcSamples = 32
	}
	if config.Spatial.SnapRadius == 0 {
		config.Spatial.SnapRadius = 8
	}
	if config.Spatial.GridCell == 0 {
		config.Spatial.GridCell = 32
	}
	if config.Preview.Host == "" {
		config.Preview.Host = "localhost"
	}
	if config.Preview.Port == 0 {
		config.Preview.Port = 8321
	}
	if config.Watch.DebounceMs == 0 {
		config.Watch.DebounceMs = 100
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Solver.ResidualTol <= 0 {
		return fmt.Errorf("solver.residual_tol must be positive, got %g", c.Solver.ResidualTol)
	}
	if c.Solver.MaxIterations < 1 || c.Solver.MaxIterations > 10000 {
		return fmt.Errorf("solver.max_iterations must be in [1, 10000], got %d", c.Solver.MaxIterations)
	}
	if c.Solver.Rcond <= 0 || c.Solver.Rcond >= 1 {
		return fmt.Errorf("solver.rcond must be in (0, 1), got %g", c.Solver.Rcond)
	}
	if c.Profile.MergeTol <= 0 {
		return fmt.Errorf("profile.merge_tol must be positive, got %g", c.Profile.MergeTol)
	}
	if c.Profile.ArcSamples < 4 {
		return fmt.Errorf("profile.arc_samples must be at least 4, got %d", c.Profile.ArcSamples)
	}
	if c.Spatial.SnapRadius <= 0 {
		return fmt.Errorf("spatial.snap_radius must be positive, got %g", c.Spatial.SnapRadius)
	}
	if c.Spatial.GridCell <= 0 {
		return fmt.Errorf("spatial.grid_cell must be positive, got %g", c.Spatial.GridCell)
	}
	if c.Preview.Port < 1 || c.Preview.Port > 65535 {
		return fmt.Errorf("preview.port must be in [1, 65535], got %d", c.Preview.Port)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMs)
	}
	return nil
}
