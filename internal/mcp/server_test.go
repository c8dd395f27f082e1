package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/policylab/ohbsim/internal/ratelimit"
)

const testBaseConfig = `
simulation:
  start_date: "2025-04-01"
  end_date: "2025-06-30"
  time_interval: MONTHLY
  seasonal_fallback: false
  seed: 3
states:
  eligible: {}
  re_enrollment_eligible: {}
  applied: {}
  enrolled_inactive: {reset_on_fiscal_year: true}
  active_claimant: {reset_on_fiscal_year: true}
flows:
  new_applications: {source: eligible, target: applied}
  new_re_enrollment_applications: {source: re_enrollment_eligible, target: applied}
  new_enrollments: {source: applied, target: enrolled_inactive}
  new_re_enrollment: {source: applied, target: enrolled_inactive}
  new_first_claimants: {source: enrolled_inactive, target: active_claimant}
flow_rates:
  new_applications: 0.1
  new_enrollments: 0.8
  new_first_claimants: 0.5
claim_costs:
  new_first_claimants: {average_cost: "100.00", program_share: "0.9"}
regions:
  - {region_id: north, region_name: North}
population_segments:
  - segment_id: s1
    cohort_type: seniors
    age_min: 65
    age_max: 74
    age_bracket_name: "65-74"
    region_id: north
    population_size: 1000
`

const testQuarterlyScenario = `
simulation:
  time_interval: QUARTERLY
`

const testBrokenScenario = `
population_segments:
  - segment_id: s1
    cohort_type: seniors
    age_min: 65
    age_max: 74
    region_id: nowhere
    population_size: 0
`

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll(%s): %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

// setupTestServer creates a server over a temporary config dir holding a base
// configuration and two scenarios. Rate limits are generous unless limits is
// given.
func setupTestServer(t *testing.T, limits map[string]ratelimit.Limit) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))

	configDir := filepath.Join(tmpDir, "config")
	writeTestFile(t, filepath.Join(configDir, "base_config.yaml"), testBaseConfig)
	writeTestFile(t, filepath.Join(configDir, "scenarios", "quarterly.yaml"), testQuarterlyScenario)
	writeTestFile(t, filepath.Join(configDir, "scenarios", "broken.yaml"), testBrokenScenario)

	if limits == nil {
		limits = map[string]ratelimit.Limit{}
	}
	server, err := NewServer(&Config{
		Name:         "test-server",
		Version:      "v1.0.0",
		ConfigDir:    configDir,
		DatabasePath: filepath.Join(tmpDir, "db", "runs.db"),
		AuditDir:     filepath.Join(tmpDir, "audit"),
		Limits:       limits,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, tmpDir
}

func TestNewServer(t *testing.T) {
	server, tmpDir := setupTestServer(t, nil)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.runs == nil {
		t.Error("Server.runs is nil")
	}
	if server.auditLogger == nil {
		t.Error("Server.auditLogger is nil with AuditDir set")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "db", "runs.db")); err != nil {
		t.Errorf("run store not created: %v", err)
	}
}

func TestNewServer_DefaultLimits(t *testing.T) {
	tmpDir := t.TempDir()
	server, err := NewServer(&Config{
		Name:         "test-server",
		Version:      "v1.0.0",
		ConfigDir:    tmpDir,
		DatabasePath: filepath.Join(tmpDir, "runs.db"),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	for tool := range DefaultLimits {
		if _, ok := server.toolLimiters[tool]; !ok {
			t.Errorf("no limiter for %s", tool)
		}
	}
	if server.auditLogger != nil {
		t.Error("auditLogger should be nil without AuditDir")
	}
}

func TestNewServer_BadDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "file")
	writeTestFile(t, blocker, "not a directory")

	_, err := NewServer(&Config{
		Name:         "test-server",
		ConfigDir:    tmpDir,
		DatabasePath: filepath.Join(blocker, "runs.db"),
	})
	if err == nil {
		t.Fatal("NewServer() with unusable database path: want error")
	}
}
