// Package postgres provides a Postgres-backed Store implementation.
// Entities are stored as JSONB documents keyed by ID, which keeps the
// schema stable while the entity shapes evolve.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundpilot/outreach/internal/outreach"
)

// ErrNotFound is returned for lookups of unknown IDs.
var ErrNotFound = errors.New("not found")

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string
	MaxConns int32
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements outreach.Store on Postgres.
type Store struct {
	pool dbConn
}

// New connects a pool and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool dbConn) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) upsertDoc(ctx context.Context, table, id, scope string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", table, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, scope, doc) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET scope = EXCLUDED.scope, doc = EXCLUDED.doc`, table)
	if _, err := s.pool.Exec(ctx, query, id, scope, payload); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func (s *Store) appendDoc(ctx context.Context, table, id, scope string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", table, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, scope, doc) VALUES ($1, $2, $3)`, table)
	if _, err := s.pool.Exec(ctx, query, id, scope, payload); err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return nil
}

func (s *Store) getDoc(ctx context.Context, table, id string, out any) error {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, table)
	var payload []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
		}
		return fmt.Errorf("get %s: %w", table, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", table, err)
	}
	return nil
}

func listDocs[T any](ctx context.Context, s *Store, table, scope, order string) ([]T, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE ($1 = '' OR scope = $1) ORDER BY %s`, table, order)
	rows, err := s.pool.Query(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var item T
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", table, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// GetTarget fetches a target by ID.
func (s *Store) GetTarget(ctx context.Context, id string) (outreach.Target, error) {
	var t outreach.Target
	if err := s.getDoc(ctx, "targets", id, &t); err != nil {
		return outreach.Target{}, err
	}
	return t, nil
}

// ListTargets returns all targets in a workspace ordered by ID.
func (s *Store) ListTargets(ctx context.Context, workspace string) ([]outreach.Target, error) {
	return listDocs[outreach.Target](ctx, s, "targets", workspace, "id")
}

// UpsertTarget inserts or replaces a target.
func (s *Store) UpsertTarget(ctx context.Context, target outreach.Target) error {
	if target.ID == "" {
		return errors.New("target id is required")
	}
	return s.upsertDoc(ctx, "targets", target.ID, target.Workspace, target)
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (outreach.Run, error) {
	var r outreach.Run
	if err := s.getDoc(ctx, "runs", id, &r); err != nil {
		return outreach.Run{}, err
	}
	return r, nil
}

// UpsertRun inserts or replaces a run.
func (s *Store) UpsertRun(ctx context.Context, run outreach.Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	return s.upsertDoc(ctx, "runs", run.ID, run.Workspace, run)
}

// AppendTaskResult appends an immutable task result row.
func (s *Store) AppendTaskResult(ctx context.Context, result outreach.TaskResult) error {
	if result.ID == "" {
		return errors.New("task result id is required")
	}
	return s.appendDoc(ctx, "task_results", result.ID, result.RunID, result)
}

// ListTaskResults returns task results for a run in ID order.
func (s *Store) ListTaskResults(ctx context.Context, runID string) ([]outreach.TaskResult, error) {
	return listDocs[outreach.TaskResult](ctx, s, "task_results", runID, "id")
}

// AppendLog appends a run log entry.
func (s *Store) AppendLog(ctx context.Context, entry outreach.LogEntry) error {
	if entry.ID == "" {
		return errors.New("log id is required")
	}
	return s.appendDoc(ctx, "logs", entry.ID, entry.RunID, entry)
}

// GetSubmissionRequest fetches a submission request by ID.
func (s *Store) GetSubmissionRequest(ctx context.Context, id string) (outreach.SubmissionRequest, error) {
	var r outreach.SubmissionRequest
	if err := s.getDoc(ctx, "submission_requests", id, &r); err != nil {
		return outreach.SubmissionRequest{}, err
	}
	return r, nil
}

// UpsertSubmissionRequest inserts or replaces a submission request.
func (s *Store) UpsertSubmissionRequest(ctx context.Context, req outreach.SubmissionRequest) error {
	if req.ID == "" {
		return errors.New("submission request id is required")
	}
	return s.upsertDoc(ctx, "submission_requests", req.ID, req.RunID, req)
}

// AppendSubmissionEvent appends an immutable submission event.
func (s *Store) AppendSubmissionEvent(ctx context.Context, event outreach.SubmissionEvent) error {
	if event.ID == "" {
		return errors.New("submission event id is required")
	}
	return s.appendDoc(ctx, "submission_events", event.ID, event.TargetID, event)
}

// ListSubmissionEvents returns events for a target, most recent first.
// UUID7 IDs sort by creation time, so descending ID order is
// descending time order.
func (s *Store) ListSubmissionEvents(ctx context.Context, targetID string) ([]outreach.SubmissionEvent, error) {
	return listDocs[outreach.SubmissionEvent](ctx, s, "submission_events", targetID, "id DESC")
}

// Persist is a no-op: every write above is immediately durable.
func (s *Store) Persist(context.Context) error {
	return nil
}
