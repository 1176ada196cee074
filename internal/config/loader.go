package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.contentpipe/config.json
// Project: .contentpipe/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".contentpipe", "config.json")
	projectPath := filepath.Join(".contentpipe", "config.json")

	return Load(globalPath, projectPath)
}

// fileConfig mirrors Config with optional scalars, so a partial file
// overrides only the keys it actually sets.
type fileConfig struct {
	Workspace        *string                `json:"workspace"`
	Database         *string                `json:"database"`
	MaxIterations    *int                   `json:"max_iterations"`
	Concurrency      *int                   `json:"concurrency"`
	QualityThreshold *int                   `json:"quality_threshold"`
	Stages           []StageConfig          `json:"stages"`
	Agents           map[string]AgentConfig `json:"agents"`
}

// mergeConfigFile reads a JSON config file and merges it into the base
// config. Missing files are silently skipped. Malformed JSON returns an
// error.
func mergeConfigFile(base *Config, path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Parse JSON
	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	// Apply scalar overrides
	if loaded.Workspace != nil {
		base.Workspace = *loaded.Workspace
	}
	if loaded.Database != nil {
		base.Database = *loaded.Database
	}
	if loaded.MaxIterations != nil {
		base.MaxIterations = *loaded.MaxIterations
	}
	if loaded.Concurrency != nil {
		base.Concurrency = *loaded.Concurrency
	}
	if loaded.QualityThreshold != nil {
		base.QualityThreshold = *loaded.QualityThreshold
	}

	// Stages replace as a unit: the list describes one dependency graph,
	// and splicing entries from different layers would produce a graph
	// nobody wrote.
	if len(loaded.Stages) > 0 {
		base.Stages = loaded.Stages
	}

	// Merge agents per key
	for key, a := range loaded.Agents {
		base.Agents[key] = a
	}

	return nil
}
