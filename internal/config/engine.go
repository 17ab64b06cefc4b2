// Package config loads engine tuning from JSON files. Fields are pointers so
// a partial file overrides only the values it names; everything else keeps
// the shipped defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/terrain.profile/internal/terrain"
)

// Default tuning values.
const (
	DefaultSampleCount    = 100
	DefaultToleranceM     = 1.0
	DefaultIndexCellSizeM = 1.0
	DefaultHysteresisBand = 0.1
)

// EngineConfig holds the tunable parameters of the profile and LOD engine.
// The schema matches the /api/params endpoint so the same JSON serves both
// startup configuration and runtime updates.
type EngineConfig struct {
	// Profile params
	SampleCount *int     `json:"sample_count,omitempty"`
	ToleranceM  *float64 `json:"tolerance_m,omitempty"`

	// Spatial index params
	IndexCellSizeM *float64 `json:"index_cell_size_m,omitempty"`

	// LOD params
	LODLevels      []terrain.LODLevel `json:"lod_levels,omitempty"`
	HysteresisBand *float64           `json:"hysteresis_band,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultEngineConfig returns a config populated with the shipped defaults.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		SampleCount:    ptrInt(DefaultSampleCount),
		ToleranceM:     ptrFloat64(DefaultToleranceM),
		IndexCellSizeM: ptrFloat64(DefaultIndexCellSizeM),
		LODLevels:      terrain.DefaultLODLevels(),
		HysteresisBand: ptrFloat64(DefaultHysteresisBand),
	}
}

// LoadEngineConfig loads a config file and merges it over the defaults, so
// partial configs are safe. The path must name a .json file under 1MB.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded EngineConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := DefaultEngineConfig()
	cfg.Merge(&loaded)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge overlays the non-nil fields of other onto c.
func (c *EngineConfig) Merge(other *EngineConfig) {
	if other == nil {
		return
	}
	if other.SampleCount != nil {
		c.SampleCount = other.SampleCount
	}
	if other.ToleranceM != nil {
		c.ToleranceM = other.ToleranceM
	}
	if other.IndexCellSizeM != nil {
		c.IndexCellSizeM = other.IndexCellSizeM
	}
	if other.LODLevels != nil {
		c.LODLevels = other.LODLevels
	}
	if other.HysteresisBand != nil {
		c.HysteresisBand = other.HysteresisBand
	}
}

// Validate checks the merged config for values the engine would reject.
func (c *EngineConfig) Validate() error {
	if c.SampleCount != nil && *c.SampleCount < terrain.MinSampleCount {
		return fmt.Errorf("sample_count %d below minimum %d", *c.SampleCount, terrain.MinSampleCount)
	}
	if c.ToleranceM != nil && *c.ToleranceM <= 0 {
		return fmt.Errorf("tolerance_m must be positive, got %g", *c.ToleranceM)
	}
	if c.IndexCellSizeM != nil && *c.IndexCellSizeM <= 0 {
		return fmt.Errorf("index_cell_size_m must be positive, got %g", *c.IndexCellSizeM)
	}
	if c.HysteresisBand != nil && (*c.HysteresisBand < 0 || *c.HysteresisBand >= 1) {
		return fmt.Errorf("hysteresis_band must be in [0, 1), got %g", *c.HysteresisBand)
	}
	if c.LODLevels != nil {
		if err := terrain.ValidateLevels(c.LODLevels); err != nil {
			return fmt.Errorf("lod_levels: %w", err)
		}
	}
	return nil
}
