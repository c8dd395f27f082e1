package export

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestWriteReadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results"+ExtArchive)
	doc := sampleDocument()
	if err := WriteArchive(path, doc, map[string]string{"run_id": "r1"}); err != nil {
		t.Fatalf("WriteArchive() error = %v", err)
	}

	format, err := DetectFormat(path)
	if err != nil {
		t.Fatalf("DetectFormat() error = %v", err)
	}
	if format != FormatArchive {
		t.Errorf("DetectFormat() = %d, want %d", format, FormatArchive)
	}

	header, err := ReadArchiveHeader(path)
	if err != nil {
		t.Fatalf("ReadArchiveHeader() error = %v", err)
	}
	if header.RecordCount != len(doc.Records) || header.Scenario != "baseline" || header.Metadata["run_id"] != "r1" {
		t.Errorf("header = %+v", header)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("Checksum = %q, want sha256 prefix", header.Checksum)
	}

	if err := VerifyChecksum(path); err != nil {
		t.Errorf("VerifyChecksum() error = %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(got.Records, doc.Records) {
		t.Error("archive records differ from the written document")
	}
}

func TestReadArchive_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results"+ExtArchive)
	if err := WriteArchive(path, sampleDocument(), nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-5] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := VerifyChecksum(path); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("VerifyChecksum() error = %v, want checksum mismatch", err)
	}
	if _, err := ReadArchive(path); err == nil {
		t.Error("ReadArchive() on corrupted file: want error")
	}
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain json", "{\n  \"version\": 1\n}\n", FormatJSON, false},
		{"single line json", `{"version":1,"records":[]}`, FormatJSON, false},
		{"empty", "", 0, true},
		{"csv", "type,id\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			got, err := DetectFormat(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectFormat() = %d, want %d", got, tt.want)
			}
		})
	}
}
