package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.ConfigDir != "config" {
		t.Errorf("ConfigDir = %q, want config", s.ConfigDir)
	}
	if s.OutputDir != "output" {
		t.Errorf("OutputDir = %q, want output", s.OutputDir)
	}
	if s.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", s.Logging.Level)
	}
	if s.Seed != 0 {
		t.Errorf("Seed = %d, want 0", s.Seed)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadSettingsFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
config_dir: /srv/ohbsim/config
output_dir: /srv/ohbsim/out
seed: 42
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test settings: %v", err)
	}

	s, err := LoadSettingsFromFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFromFile failed: %v", err)
	}

	if s.ConfigDir != "/srv/ohbsim/config" {
		t.Errorf("ConfigDir = %q", s.ConfigDir)
	}
	if s.Seed != 42 {
		t.Errorf("Seed = %d, want 42", s.Seed)
	}
	if s.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", s.Logging.Level)
	}
	if s.DatabasePath != DefaultSettings().DatabasePath {
		t.Errorf("DatabasePath = %q, want default to survive partial file", s.DatabasePath)
	}
}

func TestLoadSettingsFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	t.Setenv("OHBSIM_TEST_DATA", "/data")

	if err := os.WriteFile(path, []byte("database_path: ${OHBSIM_TEST_DATA}/runs.db\n"), 0600); err != nil {
		t.Fatalf("failed to write test settings: %v", err)
	}

	s, err := LoadSettingsFromFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFromFile failed: %v", err)
	}
	if s.DatabasePath != "/data/runs.db" {
		t.Errorf("DatabasePath = %q, want /data/runs.db", s.DatabasePath)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OHBSIM_CONFIG_DIR", "/etc/ohbsim")
	t.Setenv("OHBSIM_DB", "/tmp/x.db")
	t.Setenv("OHBSIM_SEED", "7")
	t.Setenv("OHBSIM_LOG_LEVEL", "trace")

	s := DefaultSettings()
	applyEnvOverrides(s)

	if s.ConfigDir != "/etc/ohbsim" || s.DatabasePath != "/tmp/x.db" {
		t.Errorf("overrides not applied: %+v", s)
	}
	if s.Seed != 7 {
		t.Errorf("Seed = %d, want 7", s.Seed)
	}
	if s.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q, want trace", s.Logging.Level)
	}
}

func TestEnvOverrides_BadSeedIgnored(t *testing.T) {
	t.Setenv("OHBSIM_SEED", "not-a-number")
	s := DefaultSettings()
	applyEnvOverrides(s)
	if s.Seed != 0 {
		t.Errorf("Seed = %d, want 0", s.Seed)
	}
}

func TestSettingsValidate_InvalidLogLevel(t *testing.T) {
	s := DefaultSettings()
	s.Logging.Level = "verbose"
	err := s.Validate()
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Validate() = %v, want invalid log level error", err)
	}
}

func TestSettingsValidate_EmptyPaths(t *testing.T) {
	s := DefaultSettings()
	s.ConfigDir = ""
	if err := s.Validate(); err == nil {
		t.Error("expected error for empty config_dir")
	}
}

func TestResolvedDatabasePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	s := DefaultSettings()
	got, err := s.ResolvedDatabasePath()
	if err != nil {
		t.Fatalf("ResolvedDatabasePath() error = %v", err)
	}
	if want := filepath.Join(home, ".ohbsim", "runs.db"); got != want {
		t.Errorf("ResolvedDatabasePath() = %q, want %q", got, want)
	}

	s.DatabasePath = "/abs/runs.db"
	if got, _ := s.ResolvedDatabasePath(); got != "/abs/runs.db" {
		t.Errorf("ResolvedDatabasePath() = %q, want unchanged absolute path", got)
	}
}

func TestLoadSettingsFromFile_NotFound(t *testing.T) {
	if _, err := LoadSettingsFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadSettingsFromFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("seed: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettingsFromFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
