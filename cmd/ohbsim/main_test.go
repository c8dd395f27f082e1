package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testBaseConfig = `
simulation:
  start_date: "2025-04-01"
  end_date: "2025-06-30"
  time_interval: MONTHLY
  seasonal_fallback: false
  seed: 5
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

// testEnv is an isolated HOME, config dir, output dir and database.
type testEnv struct {
	configDir string
	outputDir string
	dbPath    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))
	for _, v := range []string{"OHBSIM_CONFIG_DIR", "OHBSIM_OUTPUT_DIR", "OHBSIM_DB", "OHBSIM_SEED", "OHBSIM_LOG_LEVEL"} {
		t.Setenv(v, "")
	}

	env := testEnv{
		configDir: filepath.Join(tmpDir, "config"),
		outputDir: filepath.Join(tmpDir, "output"),
		dbPath:    filepath.Join(tmpDir, "db", "runs.db"),
	}
	writeTestFile(t, filepath.Join(env.configDir, "base_config.yaml"), testBaseConfig)
	writeTestFile(t, filepath.Join(env.configDir, "scenarios", "quarterly.yaml"), "simulation:\n  time_interval: QUARTERLY\n  end_date: \"2025-12-31\"\n")
	writeTestFile(t, filepath.Join(env.configDir, "scenarios", "broken.yaml"), "regions: []\n")
	return env
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// execute runs the root command with the environment's directories and
// returns stdout.
func (e testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append(args, "--config-dir", e.configDir, "--db", e.dbPath))
	err := root.Execute()
	return out.String(), err
}

func decodeJSON(t *testing.T, data string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), v); err != nil {
		t.Fatalf("invalid JSON output %q: %v", data, err)
	}
}

func TestVersionCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var got map[string]string
	decodeJSON(t, out, &got)
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestScenariosCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "scenarios")
	if err != nil {
		t.Fatalf("scenarios failed: %v", err)
	}
	for _, name := range []string{"broken", "quarterly"} {
		if !strings.Contains(out, "- "+name) {
			t.Errorf("output missing scenario %q:\n%s", name, out)
		}
	}

	out, err = env.execute(t, "scenarios", "--json")
	if err != nil {
		t.Fatalf("scenarios --json failed: %v", err)
	}
	var got struct {
		Scenarios []string `json:"scenarios"`
		Count     int      `json:"count"`
	}
	decodeJSON(t, out, &got)
	if got.Count != 2 {
		t.Errorf("count = %d, want 2", got.Count)
	}
}

func TestValidateCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "validate", "quarterly")
	if err != nil {
		t.Fatalf("validate quarterly failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "valid") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = env.execute(t, "validate", "broken", "--json")
	if err == nil {
		t.Fatal("validate broken: want error")
	}
	var got struct {
		Valid    bool     `json:"valid"`
		Problems []string `json:"problems"`
	}
	decodeJSON(t, out, &got)
	if got.Valid || len(got.Problems) == 0 {
		t.Errorf("validate broken = %+v, want problems", got)
	}
}

func TestRunCmd_ExportsAndSaves(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "run", "--output-dir", env.outputDir, "--save", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var res runResult
	decodeJSON(t, out, &res)
	if res.RunID == "" {
		t.Fatal("run_id is empty with --save")
	}
	if res.Seed != 5 {
		t.Errorf("seed = %d, want 5", res.Seed)
	}
	if res.Summary.Periods != 3 || res.Summary.FinalPeriod != "2025-06" {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(res.Files) != 1 || !strings.HasSuffix(res.Files[0], ".json") {
		t.Fatalf("files = %v, want one JSON document", res.Files)
	}
	if _, err := os.Stat(res.Files[0]); err != nil {
		t.Errorf("export not written: %v", err)
	}

	out, err = env.execute(t, "runs", "list", "--json")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	var list struct {
		Count int `json:"count"`
		Runs  []struct {
			ID string `json:"id"`
		} `json:"runs"`
	}
	decodeJSON(t, out, &list)
	if list.Count != 1 || list.Runs[0].ID != res.RunID {
		t.Fatalf("runs list = %+v, want the saved run", list)
	}

	out, err = env.execute(t, "runs", "show", res.RunID, "--json",
		"--type", "state", "--id", "eligible", "--period", "INITIAL",
		"--region", "ALL", "--cohort", "ALL", "--age-bracket", "ALL", "--segment", "ALL")
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	var show struct {
		Count   int `json:"count"`
		Records []struct {
			Value float64 `json:"value"`
		} `json:"records"`
	}
	decodeJSON(t, out, &show)
	if show.Count != 1 || show.Records[0].Value != 1000 {
		t.Errorf("runs show = %+v, want INITIAL eligible 1000", show)
	}

	csvDir := filepath.Join(t.TempDir(), "csv")
	out, err = env.execute(t, "runs", "export", res.RunID, "--format", "csv", "--output-dir", csvDir, "--json")
	if err != nil {
		t.Fatalf("runs export failed: %v", err)
	}
	var exp struct {
		Files []string `json:"files"`
	}
	decodeJSON(t, out, &exp)
	if len(exp.Files) != 4 {
		t.Errorf("csv files = %v, want one per metric type", exp.Files)
	}

	if _, err := env.execute(t, "runs", "delete", res.RunID); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	if _, err := env.execute(t, "runs", "show", res.RunID); err == nil {
		t.Error("runs show after delete: want error")
	}
}

func TestRunCmd_OverridesAndArchive(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "run", "--scenario", "quarterly", "--seed", "99",
		"--format", "archive", "--output-dir", env.outputDir, "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var res runResult
	decodeJSON(t, out, &res)
	if res.Seed != 99 {
		t.Errorf("seed = %d, want 99", res.Seed)
	}
	if res.Summary.FinalPeriod != "2025-Q4" {
		t.Errorf("final period = %q, want 2025-Q4", res.Summary.FinalPeriod)
	}
	if res.RunID != "" {
		t.Errorf("run_id = %q without --save", res.RunID)
	}
	if len(res.Files) != 1 || !strings.HasSuffix(res.Files[0], ".json.gz") {
		t.Errorf("files = %v, want one archive", res.Files)
	}
}

func TestRunCmd_BadFlags(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"run", "--format", "xml"}},
		{"negative keep", []string{"run", "--keep", "-1"}},
		{"bad max age", []string{"run", "--max-age", "soon"}},
		{"missing scenario", []string{"run", "--scenario", "nope"}},
		{"invalid scenario", []string{"run", "--scenario", "broken", "--format", "none"}},
		{"bad log level", []string{"run", "--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.execute(t, tt.args...); err == nil {
				t.Errorf("%v: want error", tt.args)
			}
		})
	}
}

func TestRunCmd_TextSummary(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "run", "--format", "none")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{"(base configuration)", "Periods:    3 (final 2025-06)", "Enrollment rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
