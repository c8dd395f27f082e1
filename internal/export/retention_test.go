package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// exports returns n one-file exports, newest first, one day apart.
func exports(n int) []Export {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Export, n)
	for i := range out {
		created := now.Add(-time.Duration(i) * 24 * time.Hour)
		stem := FilePrefix + "base-" + created.Format("20060102-150405")
		out[i] = Export{
			Stem:      stem,
			Kind:      KindJSON,
			Paths:     []string{filepath.Join("out", stem+ExtJSON)},
			Size:      100,
			CreatedAt: created,
		}
	}
	return out
}

func TestCountPolicy(t *testing.T) {
	if got := (&CountPolicy{MaxCount: 2}).Apply(exports(5)); len(got) != 2 {
		t.Errorf("Apply() kept %d, want 2", len(got))
	}
	if got := (&CountPolicy{MaxCount: 10}).Apply(exports(3)); len(got) != 3 {
		t.Errorf("Apply() kept %d, want 3", len(got))
	}
}

func TestAgePolicy(t *testing.T) {
	p := &AgePolicy{MaxAge: 36 * time.Hour, now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }}
	if got := p.Apply(exports(5)); len(got) != 2 {
		t.Errorf("Apply() kept %d, want 2", len(got))
	}
}

func TestSizePolicy(t *testing.T) {
	if got := (&SizePolicy{MaxTotalBytes: 250}).Apply(exports(5)); len(got) != 2 {
		t.Errorf("Apply() kept %d, want 2", len(got))
	}
	if got := (&SizePolicy{MaxTotalBytes: 10}).Apply(exports(3)); len(got) != 1 {
		t.Errorf("Apply() kept %d, want 1 (newest always kept)", len(got))
	}
}

func TestCompositePolicy(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	p := &CompositePolicy{Policies: []RetentionPolicy{
		&CountPolicy{MaxCount: 1},
		&AgePolicy{MaxAge: 60 * time.Hour, now: now},
	}}
	if got := p.Apply(exports(5)); len(got) != 3 {
		t.Errorf("Apply() kept %d, want 3", len(got))
	}
}

func writeExportFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListExports_GroupsCSVFiles(t *testing.T) {
	dir := t.TempDir()
	writeExportFiles(t, dir,
		"ohbsim-simple_scenario-20250101-000000_flow.csv",
		"ohbsim-simple_scenario-20250101-000000_state.csv",
		"ohbsim-simple_scenario-20250101-000000.json",
		"ohbsim-base-20250102-000000.json.gz",
		"notes.txt",
		"ohbsim.csv",
	)

	got, err := ListExports(dir)
	if err != nil {
		t.Fatalf("ListExports() error = %v", err)
	}
	want := []struct {
		stem, kind string
		files      int
	}{
		{"ohbsim-base-20250102-000000", KindArchive, 1},
		{"ohbsim-simple_scenario-20250101-000000", KindCSV, 2},
		{"ohbsim-simple_scenario-20250101-000000", KindJSON, 1},
	}
	if len(got) != len(want) {
		t.Fatalf("ListExports() = %d exports, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Stem != w.stem || got[i].Kind != w.kind || len(got[i].Paths) != w.files {
			t.Errorf("export %d = %s %s %d files, want %s %s %d files",
				i, got[i].Stem, got[i].Kind, len(got[i].Paths), w.stem, w.kind, w.files)
		}
	}
	if got[1].Size != 6 {
		t.Errorf("CSV export size = %d, want the sum of its files (6)", got[2].Size)
	}
}

func TestListExports_OrdersByStampAcrossScenarios(t *testing.T) {
	dir := t.TempDir()
	writeExportFiles(t, dir,
		"ohbsim-zeta-20250101-000000.json",
		"ohbsim-alpha-20250301-000000.json",
	)

	got, err := ListExports(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Stem != "ohbsim-alpha-20250301-000000" {
		t.Errorf("ListExports() newest = %+v, want the alpha export", got)
	}
}

func TestApplyRetention(t *testing.T) {
	dir := t.TempDir()
	writeExportFiles(t, dir,
		"ohbsim-base-20250101-000000.json",
		"ohbsim-base-20250102-000000_flow.csv",
		"ohbsim-base-20250102-000000_state.csv",
		"ohbsim-base-20250103-000000.json",
		"notes.txt",
	)

	deleted, err := ApplyRetention(dir, &CountPolicy{MaxCount: 1})
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if len(deleted) != 3 {
		t.Errorf("deleted %d files, want 3 (one JSON and both CSV files): %v", len(deleted), deleted)
	}
	left, err := ListExports(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Stem != "ohbsim-base-20250103-000000" {
		t.Errorf("left = %+v, want only the newest export", left)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-export file was removed")
	}
}

func TestPrunable(t *testing.T) {
	dir := t.TempDir()
	writeExportFiles(t, dir,
		"ohbsim-base-20250101-000000.json",
		"ohbsim-base-20250102-000000.json",
	)

	drop, err := Prunable(dir, &CountPolicy{MaxCount: 1})
	if err != nil {
		t.Fatalf("Prunable() error = %v", err)
	}
	if len(drop) != 1 || drop[0].Stem != "ohbsim-base-20250101-000000" {
		t.Errorf("Prunable() = %+v, want the older export", drop)
	}
	if _, err := os.Stat(drop[0].Paths[0]); err != nil {
		t.Error("Prunable() must not delete anything")
	}
}

func TestListExports_MissingDir(t *testing.T) {
	got, err := ListExports(filepath.Join(t.TempDir(), "absent"))
	if err != nil || got != nil {
		t.Errorf("ListExports() = %v, %v; want nil, nil", got, err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"", 0, true},
		{"5x", 0, true},
		{"d", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
