// Package store persists completed simulation runs and their metric records
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/metrics"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// timeLayout has fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run describes one saved simulation run.
type Run struct {
	ID          string    `json:"id"`
	Scenario    string    `json:"scenario"`
	Revision    string    `json:"revision"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Interval    string    `json:"interval"`
	FiscalMonth int       `json:"fiscal_year_start_month,omitempty"`
	FiscalDay   int       `json:"fiscal_year_start_day,omitempty"`
	Seed        int64     `json:"seed"`
	Periods     int       `json:"periods"`
	Records     int       `json:"records"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRun describes a finished run of scenario with parameters p. ID and
// CreatedAt are filled in by SaveRun.
func NewRun(scenario, revision string, p config.SimulationParameters, periods int) Run {
	return Run{
		Scenario:    scenario,
		Revision:    revision,
		StartDate:   p.StartDate.Format(calendar.DateLayout),
		EndDate:     p.EndDate.Format(calendar.DateLayout),
		Interval:    p.Interval.String(),
		FiscalMonth: p.FiscalYearStartMonth,
		FiscalDay:   p.FiscalYearStartDay,
		Seed:        p.Seed,
		Periods:     periods,
	}
}

// SQLiteRunStore keeps runs and their metrics in a SQLite database.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens or creates the database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// SaveRun stores run and its records in one transaction. An empty run.ID is
// filled in; a zero CreatedAt is set to now. It returns the stored run.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run, records []metrics.Record) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Records = len(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, revision, start_date, end_date, time_interval, fiscal_month, fiscal_day, seed, periods, records, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Revision, run.StartDate, run.EndDate, run.Interval,
		run.FiscalMonth, run.FiscalDay, run.Seed, run.Periods, run.Records, run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return run, fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metrics (run_id, seq, type, metric_id, period, region, cohort, age_bracket, segment, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return run, fmt.Errorf("failed to prepare metric insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.Type, r.ID, r.Period,
			r.Region, r.Cohort, r.AgeBracket, r.Segment, r.Value); err != nil {
			return run, fmt.Errorf("failed to insert metric %s/%s/%s: %w", r.Type, r.ID, r.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return run, nil
}

const runColumns = `id, scenario, revision, start_date, end_date, time_interval, fiscal_month, fiscal_day, seed, periods, records, created_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var created string
	if err := row.Scan(&r.ID, &r.Scenario, &r.Revision, &r.StartDate, &r.EndDate, &r.Interval,
		&r.FiscalMonth, &r.FiscalDay, &r.Seed, &r.Periods, &r.Records, &created); err != nil {
		return r, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return r, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
	}
	r.CreatedAt = t
	return r, nil
}

// ListRuns returns saved runs, newest first. A non-empty scenario filters
// by scenario name.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run or ErrRunNotFound.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &r, nil
}

// LoadMetrics returns the records of a run that match f, in the order they
// were saved.
func (s *SQLiteRunStore) LoadMetrics(ctx context.Context, runID string, f metrics.Filter) ([]metrics.Record, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"run_id = ?"}
	args := []any{runID}
	for _, c := range []struct{ column, value string }{
		{"type", f.Type},
		{"metric_id", f.ID},
		{"period", f.Period},
		{"region", f.Region},
		{"cohort", f.Cohort},
		{"age_bracket", f.AgeBracket},
		{"segment", f.Segment},
	} {
		if c.value != "" {
			where = append(where, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, metric_id, period, region, cohort, age_bracket, segment, value
		FROM metrics WHERE `+strings.Join(where, " AND ")+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var out []metrics.Record
	for rows.Next() {
		var r metrics.Record
		if err := rows.Scan(&r.Type, &r.ID, &r.Period, &r.Region, &r.Cohort, &r.AgeBracket, &r.Segment, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its metrics.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Check runs the SQLite integrity and foreign key checks.
func (s *SQLiteRunStore) Check(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ValidateIntegrity(ctx, s.db)
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
