// Package config loads engine configuration from an optional YAML file,
// falling back to defaults when no file exists.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dupescan/dupescan/internal/types"
)

// ConfigDirName is the per-collection configuration directory.
const ConfigDirName = ".dupescan"

// ConfigFileName is the configuration file inside ConfigDirName.
const ConfigFileName = "config.yaml"

// Config holds all engine settings.
type Config struct {
	// DatabasePath is where the relation store lives. Relative paths are
	// resolved against the directory the config was loaded from.
	DatabasePath string `yaml:"database_path"`

	// Threshold is the default maximum Hamming distance for a match.
	Threshold int `yaml:"threshold"`

	// Workers bounds search concurrency. Zero means one per CPU.
	Workers int `yaml:"workers"`

	// FingerprintBits is the expected fingerprint width.
	FingerprintBits int `yaml:"fingerprint_bits"`

	// Prefilter enables the multi-index-hashing layer for large
	// collections.
	Prefilter bool `yaml:"prefilter"`

	// PrefilterSlices is the slice count for the prefilter.
	PrefilterSlices int `yaml:"prefilter_slices"`

	// PrefilterMinItems is the collection size at which the prefilter
	// takes over from the tree.
	PrefilterMinItems int `yaml:"prefilter_min_items"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:      filepath.Join(ConfigDirName, "dupescan.db"),
		Threshold:         10,
		Workers:           0,
		FingerprintBits:   types.FingerprintBits,
		Prefilter:         false,
		PrefilterSlices:   8,
		PrefilterMinItems: 50000,
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold cannot be negative (got %d)", c.Threshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative (got %d)", c.Workers)
	}
	if c.FingerprintBits <= 0 || c.FingerprintBits%8 != 0 {
		return fmt.Errorf("fingerprint_bits must be a positive multiple of 8 (got %d)", c.FingerprintBits)
	}
	if c.Threshold > c.FingerprintBits {
		return fmt.Errorf("threshold %d exceeds fingerprint width %d", c.Threshold, c.FingerprintBits)
	}
	if c.PrefilterSlices < 2 {
		return fmt.Errorf("prefilter_slices must be at least 2 (got %d)", c.PrefilterSlices)
	}
	if c.FingerprintBits%c.PrefilterSlices != 0 {
		return fmt.Errorf("fingerprint_bits %d is not divisible by prefilter_slices %d",
			c.FingerprintBits, c.PrefilterSlices)
	}
	if c.PrefilterMinItems < 0 {
		return fmt.Errorf("prefilter_min_items cannot be negative (got %d)", c.PrefilterMinItems)
	}
	return nil
}

// Load reads the config file at path. A missing file yields defaults;
// a malformed or invalid file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if !filepath.IsAbs(cfg.DatabasePath) {
		cfg.DatabasePath = filepath.Join(filepath.Dir(path), cfg.DatabasePath)
	}
	return cfg, nil
}

// LoadFromDir loads .dupescan/config.yaml under dir.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, ConfigDirName, ConfigFileName))
}
