// Package export writes simulation results to disk as a JSON document,
// per-type CSV files or a checksummed compressed archive, and reads them back.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/metrics"
)

// DocumentVersion is the version written into every results document.
const DocumentVersion = 1

// FilePrefix starts every exported file name.
const FilePrefix = "ohbsim-"

// Parameters are the run settings recorded alongside the metrics.
type Parameters struct {
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Interval        string `json:"interval"`
	FiscalYearStart string `json:"fiscal_year_start"`
	Seed            int64  `json:"seed"`
}

// Document is the JSON structure of a results file.
type Document struct {
	Version    int              `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	Scenario   string           `json:"scenario"`
	Revision   string           `json:"revision"`
	RunID      string           `json:"run_id,omitempty"`
	Parameters Parameters       `json:"parameters"`
	Records    []metrics.Record `json:"records"`
}

// NewDocument builds a document for a finished run.
func NewDocument(scenario, revision string, p config.SimulationParameters, records []metrics.Record) *Document {
	return &Document{
		Version:   DocumentVersion,
		CreatedAt: time.Now().UTC(),
		Scenario:  scenario,
		Revision:  revision,
		Parameters: Parameters{
			StartDate:       p.StartDate.Format(time.DateOnly),
			EndDate:         p.EndDate.Format(time.DateOnly),
			Interval:        p.Interval.String(),
			FiscalYearStart: fmt.Sprintf("%02d-%02d", p.FiscalYearStartMonth, p.FiscalYearStartDay),
			Seed:            p.Seed,
		},
		Records: records,
	}
}

// WriteJSON writes doc as indented JSON, creating parent directories.
func WriteJSON(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}

// ReadJSON reads a plain JSON results document.
func ReadJSON(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening results file: %w", err)
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported results version: %d", doc.Version)
	}
	return &doc, nil
}

// Read loads a results document in either format.
func Read(path string) (*Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatArchive {
		return ReadArchive(path)
	}
	return ReadJSON(path)
}

// GeneratePath returns a timestamped file name for scenario in dir.
func GeneratePath(dir, scenario, ext string, now time.Time) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(scenario)
	if name == "" {
		name = "base"
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s-%s%s", FilePrefix, name, now.Format("20060102-150405"), ext))
}
