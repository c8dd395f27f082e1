package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Export kinds.
const (
	KindJSON    = "json"
	KindArchive = "archive"
	KindCSV     = "csv"
)

// stampLen is the length of the "20060102-150405" suffix of every stem.
const stampLen = len("20060102-150405")

// Export is one run's output on disk: a results document, an archive, or
// the CSV files written together. Every file of an export shares the stem
// ohbsim-<scenario>-<stamp>.
type Export struct {
	Stem      string
	Kind      string
	Paths     []string
	Size      int64
	CreatedAt time.Time
}

// stamp is the export's timestamp suffix; it orders exports across scenarios.
func (e Export) stamp() string {
	if len(e.Stem) < stampLen {
		return ""
	}
	return e.Stem[len(e.Stem)-stampLen:]
}

// RetentionPolicy decides which exports to keep. Exports arrive newest first.
type RetentionPolicy interface {
	Apply(exports []Export) (keep []Export)
}

// CountPolicy keeps the MaxCount newest exports.
type CountPolicy struct {
	MaxCount int
}

func (p *CountPolicy) Apply(exports []Export) []Export {
	return exports[:min(len(exports), p.MaxCount)]
}

// AgePolicy keeps exports written within MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	now    func() time.Time
}

func (p *AgePolicy) Apply(exports []Export) []Export {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Export
	for _, e := range exports {
		if e.CreatedAt.After(cutoff) {
			keep = append(keep, e)
		}
	}
	return keep
}

// SizePolicy keeps the newest exports while their combined size stays within
// MaxTotalBytes. The newest export is kept whatever its size.
type SizePolicy struct {
	MaxTotalBytes int64
}

func (p *SizePolicy) Apply(exports []Export) []Export {
	var total int64
	for i, e := range exports {
		total += e.Size
		if total > p.MaxTotalBytes && i > 0 {
			return exports[:i]
		}
	}
	return exports
}

// CompositePolicy keeps an export if any of its policies does.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

func (p *CompositePolicy) Apply(exports []Export) []Export {
	kept := make(map[string]bool)
	for _, policy := range p.Policies {
		for _, e := range policy.Apply(exports) {
			kept[e.Kind+":"+e.Stem] = true
		}
	}
	var result []Export
	for _, e := range exports {
		if kept[e.Kind+":"+e.Stem] {
			result = append(result, e)
		}
	}
	return result
}

// splitExportName returns the stem and kind of an exported file name, or
// ok false for files that are not exports.
func splitExportName(name string) (stem, kind string, ok bool) {
	if !strings.HasPrefix(name, FilePrefix) {
		return "", "", false
	}
	switch {
	case strings.HasSuffix(name, ExtArchive):
		return strings.TrimSuffix(name, ExtArchive), KindArchive, true
	case strings.HasSuffix(name, ExtJSON):
		return strings.TrimSuffix(name, ExtJSON), KindJSON, true
	case strings.HasSuffix(name, ".csv"):
		// <stem>_<metric type>.csv
		i := strings.LastIndex(name, "_")
		if i < 0 {
			return "", "", false
		}
		return name[:i], KindCSV, true
	}
	return "", "", false
}

// ListExports groups the exported files in dir into exports, newest first.
// A missing directory yields none.
func ListExports(dir string) ([]Export, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output directory: %w", err)
	}

	byKey := make(map[string]*Export)
	var order []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem, kind, ok := splitExportName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key := kind + ":" + stem
		ex, seen := byKey[key]
		if !seen {
			ex = &Export{Stem: stem, Kind: kind}
			byKey[key] = ex
			order = append(order, key)
		}
		ex.Paths = append(ex.Paths, filepath.Join(dir, e.Name()))
		ex.Size += info.Size()
		if info.ModTime().After(ex.CreatedAt) {
			ex.CreatedAt = info.ModTime()
		}
	}

	exports := make([]Export, 0, len(order))
	for _, key := range order {
		exports = append(exports, *byKey[key])
	}
	sort.Slice(exports, func(i, j int) bool {
		if a, b := exports[i].stamp(), exports[j].stamp(); a != b {
			return a > b
		}
		if exports[i].Stem != exports[j].Stem {
			return exports[i].Stem > exports[j].Stem
		}
		return exports[i].Kind < exports[j].Kind
	})
	return exports, nil
}

// Prunable returns the exports in dir that policy does not keep.
func Prunable(dir string, policy RetentionPolicy) ([]Export, error) {
	exports, err := ListExports(dir)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool)
	for _, e := range policy.Apply(exports) {
		keep[e.Kind+":"+e.Stem] = true
	}
	var drop []Export
	for _, e := range exports {
		if !keep[e.Kind+":"+e.Stem] {
			drop = append(drop, e)
		}
	}
	return drop, nil
}

// ApplyRetention deletes every file of the exports policy does not keep and
// returns the removed paths.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	drop, err := Prunable(dir, policy)
	if err != nil {
		return nil, err
	}
	for _, e := range drop {
		for _, path := range e.Paths {
			if err := os.Remove(path); err != nil {
				return deleted, fmt.Errorf("removing %s: %w", filepath.Base(path), err)
			}
			deleted = append(deleted, path)
		}
	}
	return deleted, nil
}

// ParseDuration parses durations like "30d", "2w" or "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	day := 24 * time.Hour
	switch unit {
	case 'd':
		return time.Duration(n) * day, nil
	case 'w':
		return time.Duration(n) * 7 * day, nil
	default:
		return 0, fmt.Errorf("unknown duration unit %q in %q", string(unit), s)
	}
}
