// Package history keeps a SQLite log of finished transcription runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"whisperdesk/internal/domain"
)

// Entry is one finished run.
type Entry struct {
	RunID            string              `json:"runId"`
	InputPath        string              `json:"inputPath"`
	OutputPath       string              `json:"outputPath"`
	Format           domain.OutputFormat `json:"format"`
	Language         string              `json:"language"`
	Translate        bool                `json:"translate"`
	MediaDuration    domain.Ticks        `json:"mediaDuration"`
	ProcessingTime   domain.Ticks        `json:"processingTime"`
	Stopped          bool                `json:"stopped"`
	Failed           bool                `json:"failed"`
	Error            string              `json:"error,omitempty"`
	SuggestedRestart int64               `json:"suggestedRestart"`
	HasRestart       bool                `json:"hasRestart"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// Store handles the runs table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	input_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	format INTEGER NOT NULL,
	language TEXT NOT NULL,
	translate INTEGER NOT NULL,
	media_ticks INTEGER NOT NULL,
	processing_ticks INTEGER NOT NULL,
	stopped INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	error TEXT NOT NULL,
	restart_second INTEGER,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Open creates the database at path and its schema when missing.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// One connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record inserts one finished run. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	var restart sql.NullInt64
	if e.HasRestart {
		restart = sql.NullInt64{Int64: e.SuggestedRestart, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO runs (run_id, input_path, output_path, format, language, translate,
		media_ticks, processing_ticks, stopped, failed, error, restart_second, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.RunID, e.InputPath, e.OutputPath, int(e.Format), e.Language, e.Translate,
		int64(e.MediaDuration), int64(e.ProcessingTime), e.Stopped, e.Failed, e.Error, restart, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: record run %s: %w", e.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, input_path, output_path, format, language, translate,
		media_ticks, processing_ticks, stopped, failed, error, restart_second, created_at
	FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			format  int
			media   int64
			proc    int64
			restart sql.NullInt64
		)
		if err := rows.Scan(&e.RunID, &e.InputPath, &e.OutputPath, &format, &e.Language, &e.Translate,
			&media, &proc, &e.Stopped, &e.Failed, &e.Error, &restart, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		e.Format = domain.OutputFormat(format)
		e.MediaDuration = domain.Ticks(media)
		e.ProcessingTime = domain.Ticks(proc)
		if restart.Valid {
			e.SuggestedRestart = restart.Int64
			e.HasRestart = true
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
