package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/policylab/ohbsim/internal/metrics"
)

// CSVHeader is the column layout of every CSV file.
var CSVHeader = []string{"type", "id", "period", "region", "cohort", "age_bracket", "segment", "value"}

// WriteCSV writes one CSV file per metric type into dir, named
// <base>_<type>.csv, and returns the paths written in type order.
func WriteCSV(dir, base string, records []metrics.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	byType := make(map[string][]metrics.Record)
	for _, r := range records {
		byType[r.Type] = append(byType[r.Type], r)
	}
	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)

	paths := make([]string, 0, len(types))
	for _, typ := range types {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", base, typ))
		if err := writeCSVFile(path, byType[typ]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, records []metrics.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Type, r.ID, r.Period, r.Region, r.Cohort, r.AgeBracket, r.Segment,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV reads records from a file written by WriteCSV.
func ReadCSV(path string) ([]metrics.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: missing header", filepath.Base(path))
	}

	out := make([]metrics.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(CSVHeader) {
			return nil, fmt.Errorf("%s line %d: %d columns, want %d", filepath.Base(path), i+2, len(row), len(CSVHeader))
		}
		v, err := strconv.ParseFloat(row[7], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad value %q: %w", filepath.Base(path), i+2, row[7], err)
		}
		out = append(out, metrics.Record{
			Type:   row[0],
			ID:     row[1],
			Period: row[2],
			Dimensions: metrics.Dimensions{
				Region:     row[3],
				Cohort:     row[4],
				AgeBracket: row[5],
				Segment:    row[6],
			},
			Value: v,
		})
	}
	return out, nil
}
