// Package config loads and validates pipeline and CLI configuration for
// cobolsharp-go.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the cobolsharp-go pipeline and CLI.
type Config struct {
	// FixedGotoOverhead is the fixed cost charged once a join is structured
	// as a labeled goto instead of duplicated code (spec §4.6 cost_goto).
	FixedGotoOverhead int `yaml:"fixed_goto_overhead" env:"COBOLSHARP_FIXED_GOTO_OVERHEAD"`

	// DuplicationMultiplier scales the per-predecessor cost of duplicating
	// the post-join subtree (spec §4.6 cost_dup).
	DuplicationMultiplier int `yaml:"duplication_multiplier" env:"COBOLSHARP_DUPLICATION_MULTIPLIER"`

	// TabSize is the tab width, mirroring the original implementation's -t
	// flag. It is validated and carried here, but no stage reads it: tabs
	// in the input are not expanded and no column spans are computed.
	TabSize int `yaml:"tab_size" env:"COBOLSHARP_TAB_SIZE"`

	// SourceEncoding names the COBOL source file encoding.
	SourceEncoding string `yaml:"source_encoding" env:"COBOLSHARP_SOURCE_ENCODING"`

	// TreatCrossSectionGotoAsFatal upgrades CrossSectionGoto from a warning
	// to a fatal error (spec §9 Open Question c).
	TreatCrossSectionGotoAsFatal bool `yaml:"cross_section_goto_fatal" env:"COBOLSHARP_CROSS_SECTION_GOTO_FATAL"`

	// EmitDiagnosticAnnotations attaches loop/branch decision rationale to
	// the IR when set (spec §6 downstream interface debug flag).
	EmitDiagnosticAnnotations bool `yaml:"emit_diagnostic_annotations" env:"COBOLSHARP_EMIT_DIAGNOSTICS"`

	// DestDir, if set, writes rendered output alongside the source's base
	// name into this directory instead of next to the source file.
	DestDir string `yaml:"dest_dir" env:"COBOLSHARP_DEST_DIR"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose" env:"COBOLSHARP_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults matching spec §4.6
// and §6.
func DefaultConfig() *Config {
	return &Config{
		FixedGotoOverhead:     3,
		DuplicationMultiplier: 1,
		TabSize:               4,
		SourceEncoding:        "iso-8859-1",
		Verbose:               false,
	}
}

func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cobolsharp/config.yaml"
	}
	return filepath.Join(home, ".cobolsharp", "config.yaml")
}

func projectConfigFilePath() string {
	return ".cobolsharp/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
//  1. Environment variables
//  2. Project-level config (./.cobolsharp/config.yaml)
//  3. Global config (~/.cobolsharp/config.yaml)
//  4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(globalConfigFilePath()); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing global config: %w", err)
		}
	}

	if data, err := os.ReadFile(projectConfigFilePath()); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path, then
// applies environment overrides on top of it.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COBOLSHARP_FIXED_GOTO_OVERHEAD"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.FixedGotoOverhead = i
		}
	}
	if v := os.Getenv("COBOLSHARP_DUPLICATION_MULTIPLIER"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.DuplicationMultiplier = i
		}
	}
	if v := os.Getenv("COBOLSHARP_TAB_SIZE"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.TabSize = i
		}
	}
	if v := os.Getenv("COBOLSHARP_SOURCE_ENCODING"); v != "" {
		cfg.SourceEncoding = v
	}
	if v := os.Getenv("COBOLSHARP_CROSS_SECTION_GOTO_FATAL"); v != "" {
		cfg.TreatCrossSectionGotoAsFatal = v == "true" || v == "1" || v == "yes"
	}
	if v := os.Getenv("COBOLSHARP_EMIT_DIAGNOSTICS"); v != "" {
		cfg.EmitDiagnosticAnnotations = v == "true" || v == "1" || v == "yes"
	}
	if v := os.Getenv("COBOLSHARP_DEST_DIR"); v != "" {
		cfg.DestDir = v
	}
	if v := os.Getenv("COBOLSHARP_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1" || v == "yes"
	}
}

// Validate checks that the configuration has valid required fields.
func (c *Config) Validate() error {
	if c.FixedGotoOverhead < 0 {
		return fmt.Errorf("fixed_goto_overhead must be non-negative")
	}
	if c.DuplicationMultiplier < 0 {
		return fmt.Errorf("duplication_multiplier must be non-negative")
	}
	if c.TabSize <= 0 {
		return fmt.Errorf("tab_size must be positive")
	}
	if c.SourceEncoding == "" {
		return fmt.Errorf("source_encoding must not be empty")
	}
	return nil
}

func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
