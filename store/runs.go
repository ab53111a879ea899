package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one ingestion of one source.
type Run struct {
	RunID      uuid.UUID `json:"run_id"`
	Source     string    `json:"source"`
	From       time.Time `json:"window_from"`
	To         time.Time `json:"window_to"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Discovered int       `json:"discovered"`
	Archived   int       `json:"archived"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      *string   `json:"error,omitempty"`
}

// NewRun starts a run record with a fresh id.
func NewRun(source string, from, to time.Time) *Run {
	return &Run{
		RunID:     uuid.New(),
		Source:    source,
		From:      from,
		To:        to,
		StartedAt: time.Now().UTC(),
	}
}

// RecordRun stores a finished run. Recording the same run id again replaces
// it.
func (idx *Index) RecordRun(run *Run) error {
	query := `
		INSERT OR REPLACE INTO runs (
			run_id, source, window_from, window_to, started_at, finished_at,
			discovered, archived, skipped, failed, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := idx.db.Exec(query,
		run.RunID.String(),
		run.Source,
		formatTime(&run.From),
		formatTime(&run.To),
		formatTime(&run.StartedAt),
		formatTime(&run.FinishedAt),
		run.Discovered,
		run.Archived,
		run.Skipped,
		run.Failed,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns lists a source's runs, most recent first. A limit of zero lists
// them all.
func (idx *Index) ListRuns(source string, limit int) ([]Run, error) {
	query := `
		SELECT run_id, source, window_from, window_to, started_at, finished_at,
		       discovered, archived, skipped, failed, error
		FROM runs
		WHERE source = ?
		ORDER BY started_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := idx.db.Query(query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var runIDStr, src, from, to, startedAt, finishedAt string
		var runErr sql.NullString
		var run Run

		err := rows.Scan(
			&runIDStr, &src, &from, &to, &startedAt, &finishedAt,
			&run.Discovered, &run.Archived, &run.Skipped, &run.Failed, &runErr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.RunID, err = uuid.Parse(runIDStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run ID: %w", err)
		}
		run.Source = src
		run.From = parseTime(from)
		run.To = parseTime(to)
		run.StartedAt = parseTime(startedAt)
		run.FinishedAt = parseTime(finishedAt)
		if runErr.Valid {
			run.Error = &runErr.String
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	return runs, nil
}
