package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

// ErrNotFound means no run with the requested id was recorded.
var ErrNotFound = errors.New("run not found")

type StepRecord struct {
	Ordinal  int
	Step     string
	Severity string
	State    string
	Reason   string
	Err      string
	Duration time.Duration
}

type RunRecord struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Outcome  string
	Domain   string
	SSLMode  string
	Image    string
	Err      string
	Steps    []StepRecord
}

// RunRepo records pipeline reports. It satisfies asfactl.Recorder.
type RunRepo struct {
	DB *sql.DB
}

var _ asfactl.Recorder = (*RunRepo)(nil)

func (r *RunRepo) Record(ctx context.Context, rep asfactl.Report) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, outcome, domain, ssl_mode, image, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, formatTime(rep.Started), formatTime(rep.Finished), string(rep.Outcome),
		rep.Config.Domain, string(rep.Config.SSLMode), rep.Config.Image, errString(rep.Err),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, s := range rep.Steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, ordinal, step, severity, state, reason, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, s.Ordinal, s.ID, s.Severity.String(), string(s.State), s.Reason,
			errString(s.Err), s.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

// List returns the most recent runs first, without their steps.
func (r *RunRepo) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, started_at, finished_at, outcome, domain, ssl_mode, image, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// Get returns one run with its steps in ordinal order.
func (r *RunRepo) Get(ctx context.Context, id string) (RunRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, outcome, domain, ssl_mode, image, error
		 FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT ordinal, step, severity, state, reason, error, duration_ms
		 FROM run_steps WHERE run_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s StepRecord
		var stepErr sql.NullString
		var ms int64
		if err := rows.Scan(&s.Ordinal, &s.Step, &s.Severity, &s.State, &s.Reason, &stepErr, &ms); err != nil {
			return RunRecord{}, fmt.Errorf("scan step: %w", err)
		}
		s.Err = stepErr.String
		s.Duration = time.Duration(ms) * time.Millisecond
		rec.Steps = append(rec.Steps, s)
	}
	return rec, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var started, finished string
	var runErr sql.NullString
	if err := row.Scan(&rec.ID, &started, &finished, &rec.Outcome, &rec.Domain, &rec.SSLMode, &rec.Image, &runErr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if rec.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return rec, fmt.Errorf("parse started_at: %w", err)
	}
	if rec.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return rec, fmt.Errorf("parse finished_at: %w", err)
	}
	rec.Err = runErr.String
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func errString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
