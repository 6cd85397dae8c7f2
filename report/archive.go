package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run is not in the archive.
var ErrNotFound = errors.New("run not found")

// Archive stores past run reports in sqlite so they can be queried after the
// per-run JSON files rotate away.
type Archive struct {
	conn *sql.DB
}

// OpenArchive opens (or creates) the archive database.
func OpenArchive(path string) (*Archive, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	a := &Archive{conn: conn}
	if err := a.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

func (a *Archive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		replies_sent INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		fallbacks INTEGER NOT NULL DEFAULT 0,
		crisis_ignored INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := a.conn.Exec(schema)
	return err
}

// Save inserts or replaces a run in the archive.
func (a *Archive) Save(ctx context.Context, run *Run) error {
	reportJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	query := `
	INSERT INTO runs (id, started_at, finished_at, replies_sent, processed, fallbacks, crisis_ignored, errors, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		replies_sent = excluded.replies_sent,
		processed = excluded.processed,
		fallbacks = excluded.fallbacks,
		crisis_ignored = excluded.crisis_ignored,
		errors = excluded.errors,
		report_json = excluded.report_json
	`

	_, err = a.conn.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Counts.RepliesSent,
		run.Counts.Processed,
		run.Counts.Fallbacks,
		run.Counts.CrisisIgnored,
		run.Counts.GeminiErrors+run.Counts.YouTubeErrors,
		string(reportJSON),
	)
	return err
}

// Get retrieves a run by id.
func (a *Archive) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT report_json FROM runs WHERE id = ?`

	var reportJSON string
	err := a.conn.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run := &Run{}
	if err := json.Unmarshal([]byte(reportJSON), run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return run, nil
}

// Recent returns the most recent runs, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT report_json FROM runs ORDER BY started_at DESC LIMIT ?`

	rows, err := a.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, err
		}
		run := &Run{}
		if err := json.Unmarshal([]byte(reportJSON), run); err != nil {
			return nil, fmt.Errorf("unmarshal run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
