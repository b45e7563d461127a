package study

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	trials       INTEGER NOT NULL DEFAULT 0,
	failures     INTEGER NOT NULL DEFAULT 0,
	summary      TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// RunRecord is one row of the study run log.
type RunRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Trials      int             `json:"trials"`
	Failures    int             `json:"failures"`
	Summary     []MethodSummary `json:"summary,omitempty"`
}

// History is a sqlite-backed log of study runs.
type History struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenHistory opens the run log at path, creating the schema if needed. Use
// ":memory:" for an ephemeral log.
func OpenHistory(path string, logger *zap.Logger) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("study: failed to open history database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("study: failed to ping history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("study: failed to initialize history schema: %w", err)
	}
	return &History{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

// CreateRun records the start of a run.
func (h *History) CreateRun(ctx context.Context, id, name string, startedAt time.Time) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, started_at) VALUES (?, ?, ?)`,
		id, name, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("study: failed to record run start: %w", err)
	}
	return nil
}

// CompleteRun records the completion of a run along with its summary.
func (h *History) CompleteRun(ctx context.Context, result *Result) error {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("study: failed to marshal run summary: %w", err)
	}

	res, err := h.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = ?, trials = ?, failures = ?, summary = ? WHERE id = ?`,
		result.CompletedAt.UTC(), len(result.Trials), result.Failures(), string(summary), result.ID,
	)
	if err != nil {
		return fmt.Errorf("study: failed to record run completion: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("study: run not found in history: %s", result.ID)
	}
	return nil
}

// GetRun retrieves one run record by id.
func (h *History) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rec := &RunRecord{}
	var completedAt sql.NullTime
	var summary sql.NullString

	err := h.db.QueryRowContext(ctx,
		`SELECT id, name, started_at, completed_at, trials, failures, summary
		 FROM runs WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &rec.StartedAt, &completedAt, &rec.Trials, &rec.Failures, &summary)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("study: run not found in history: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("study: failed to get run: %w", err)
	}

	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	if summary.Valid && summary.String != "" {
		if err := json.Unmarshal([]byte(summary.String), &rec.Summary); err != nil {
			return nil, fmt.Errorf("study: failed to unmarshal run summary: %w", err)
		}
	}
	return rec, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (h *History) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, name, started_at, completed_at, trials, failures
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("study: failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		var completedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.StartedAt, &completedAt,
			&rec.Trials, &rec.Failures); err != nil {
			return nil, fmt.Errorf("study: failed to scan run row: %w", err)
		}
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("study: failed to iterate runs: %w", err)
	}
	return records, nil
}
