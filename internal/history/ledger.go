// Package history keeps a durable ledger of review runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"glossary-review/internal/domain"
)

const runsTable = "runs"

var runColumns = []string{
	"id", "directory", "rounds_planned", "rounds_completed", "items",
	"outcome", "message", "result_file", "started_at", "finished_at",
}

// Ledger records one row per job.
type Ledger struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id               TEXT PRIMARY KEY,
		directory        TEXT NOT NULL,
		rounds_planned   INTEGER NOT NULL,
		rounds_completed INTEGER NOT NULL DEFAULT 0,
		items            INTEGER NOT NULL DEFAULT 0,
		outcome          TEXT DEFAULT '',
		message          TEXT DEFAULT '',
		result_file      TEXT DEFAULT '',
		started_at       DATETIME NOT NULL,
		finished_at      DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}

	return &Ledger{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Begin inserts the row for a starting job.
func (l *Ledger) Begin(ctx context.Context, run domain.RunRecord) error {
	query, args, err := l.sb.Insert(runsTable).
		Columns("id", "directory", "rounds_planned", "items", "result_file", "started_at").
		Values(run.ID, run.Directory, run.RoundsPlanned, run.Items, run.ResultFile, run.StartedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Finish records how a job ended.
func (l *Ledger) Finish(ctx context.Context, run domain.RunRecord) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	query, args, err := l.sb.Update(runsTable).
		Set("rounds_completed", run.RoundsCompleted).
		Set("items", run.Items).
		Set("outcome", string(run.Outcome)).
		Set("message", run.Message).
		Set("result_file", run.ResultFile).
		Set("finished_at", finished).
		Where(squirrel.Eq{"id": run.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// Get returns one run by id.
func (l *Ledger) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	query, args, err := l.sb.Select(runColumns...).From(runsTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.RunRecord{}, err
	}
	run, err := scanRun(l.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return run, err
}

// List returns up to limit runs, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	builder := l.sb.Select(runColumns...).From(runsTable).OrderBy("started_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []domain.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.RunRecord, error) {
	var (
		run      domain.RunRecord
		outcome  string
		finished sql.NullTime
	)
	err := s.Scan(
		&run.ID, &run.Directory, &run.RoundsPlanned, &run.RoundsCompleted, &run.Items,
		&outcome, &run.Message, &run.ResultFile, &run.StartedAt, &finished,
	)
	if err != nil {
		return domain.RunRecord{}, err
	}
	run.Outcome = domain.JobOutcome(outcome)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
