// Package config loads ohbsim configuration: scenario definitions consumed by
// the simulation engine, and tool settings for the CLI and MCP server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/policylab/ohbsim/internal/logging"
	"gopkg.in/yaml.v3"
)

// Settings contains tool-level settings that are independent of any scenario.
type Settings struct {
	// ConfigDir is the directory holding base_config.yaml and scenarios/.
	ConfigDir string `json:"config_dir" yaml:"config_dir"`

	// OutputDir receives exported results and the transition trace.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// DatabasePath is the SQLite run store location. Supports ${VAR} and ~.
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// Seed fixes the random source for distribution draws. Zero picks one per run.
	Seed int64 `json:"seed" yaml:"seed"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig configures ohbsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" and "trace" also write transitions.jsonl to the output dir.
	Level string `json:"level" yaml:"level"`
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		ConfigDir:    "config",
		OutputDir:    "output",
		DatabasePath: filepath.Join("~", ".ohbsim", "runs.db"),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadSettings loads settings from the default locations and environment variables.
// Order: defaults -> ~/.ohbsim/config.yaml -> environment variables
func LoadSettings() (*Settings, error) {
	settings := DefaultSettings()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(homeDir, ".ohbsim", "config.yaml")
		if _, statErr := os.Stat(path); statErr == nil {
			fileSettings, loadErr := LoadSettingsFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading settings file: %w", loadErr)
			}
			settings = fileSettings
		}
	}

	applyEnvOverrides(settings)

	return settings, nil
}

// LoadSettingsFromFile loads settings from a specific YAML file.
func LoadSettingsFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}

	settings.DatabasePath = expandEnvVars(settings.DatabasePath)
	settings.OutputDir = expandEnvVars(settings.OutputDir)

	return settings, nil
}

// Validate checks that the settings are valid.
func (s *Settings) Validate() error {
	if s.ConfigDir == "" {
		return fmt.Errorf("config_dir must not be empty")
	}
	if s.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if !logging.ValidLevel(s.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", s.Logging.Level)
	}
	return nil
}

// ResolvedDatabasePath expands a leading ~ in DatabasePath.
func (s *Settings) ResolvedDatabasePath() (string, error) {
	p := s.DatabasePath
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], string(filepath.Separator))), nil
}

// applyEnvOverrides applies OHBSIM_* environment variable overrides.
func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("OHBSIM_CONFIG_DIR"); v != "" {
		s.ConfigDir = v
	}
	if v := os.Getenv("OHBSIM_OUTPUT_DIR"); v != "" {
		s.OutputDir = v
	}
	if v := os.Getenv("OHBSIM_DB"); v != "" {
		s.DatabasePath = v
	}
	if v := os.Getenv("OHBSIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.Seed = n
		}
	}
	if v := os.Getenv("OHBSIM_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
