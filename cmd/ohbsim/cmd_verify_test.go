package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerifyCmd(t *testing.T) {
	env := newTestEnv(t)

	formats := map[string]string{"json": ".json", "archive": ".json.gz"}
	for format, ext := range formats {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), format)
			out, err := env.execute(t, "run", "--format", format, "--output-dir", dir, "--json")
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			var res runResult
			decodeJSON(t, out, &res)
			if len(res.Files) != 1 || !strings.HasSuffix(res.Files[0], ext) {
				t.Fatalf("files = %v, want one %s file", res.Files, ext)
			}

			out, err = env.execute(t, "verify", res.Files[0], "--json")
			if err != nil {
				t.Fatalf("verify failed: %v\n%s", err, out)
			}
			var got verifyResult
			decodeJSON(t, out, &got)
			if !got.Valid || got.Format != format || got.Records == 0 {
				t.Errorf("verify = %+v, want a valid %s file with records", got, format)
			}
		})
	}
}

func TestVerifyCmd_CSV(t *testing.T) {
	env := newTestEnv(t)
	dir := filepath.Join(t.TempDir(), "csv")

	out, err := env.execute(t, "run", "--format", "csv", "--output-dir", dir, "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var res runResult
	decodeJSON(t, out, &res)
	if len(res.Files) == 0 {
		t.Fatal("no CSV files written")
	}

	out, err = env.execute(t, "verify", res.Files[0])
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "OK: CSV parsed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestVerifyCmd_CorruptedArchive(t *testing.T) {
	env := newTestEnv(t)
	dir := filepath.Join(t.TempDir(), "archive")

	out, err := env.execute(t, "run", "--format", "archive", "--output-dir", dir, "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var res runResult
	decodeJSON(t, out, &res)

	data, err := os.ReadFile(res.Files[0])
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(res.Files[0], data, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err = env.execute(t, "verify", res.Files[0], "--json")
	if err == nil {
		t.Fatal("verify of corrupted archive: want error")
	}
	var got verifyResult
	decodeJSON(t, out, &got)
	if got.Valid || got.Error == "" {
		t.Errorf("verify = %+v, want invalid with an error", got)
	}
}

func TestVerifyCmd_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.execute(t, "verify", filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("verify of missing file: want error")
	}
}

func TestRunsCheckCmd(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.execute(t, "run", "--format", "none", "--save"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	out, err := env.execute(t, "runs", "check", "--json")
	if err != nil {
		t.Fatalf("runs check failed: %v", err)
	}
	var got struct {
		Path string `json:"path"`
		OK   bool   `json:"ok"`
	}
	decodeJSON(t, out, &got)
	if !got.OK || got.Path != env.dbPath {
		t.Errorf("runs check = %+v, want ok for %s", got, env.dbPath)
	}
}
