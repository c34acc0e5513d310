package postgres

import (
	"context"
	"fmt"
)

// schema creates the document tables. scope carries the secondary key
// each kind is listed by (workspace, run id, or target id).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS task_results (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS submission_requests (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS submission_events (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_targets_scope ON targets (scope)`,
	`CREATE INDEX IF NOT EXISTS idx_task_results_scope ON task_results (scope)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_scope ON logs (scope)`,
	`CREATE INDEX IF NOT EXISTS idx_submission_events_scope ON submission_events (scope)`,
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
