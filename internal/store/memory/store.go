// Package memory provides an in-memory Store for development and
// testing.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fundpilot/outreach/internal/outreach"
)

// ErrNotFound is returned for lookups of unknown IDs.
var ErrNotFound = errors.New("not found")

// Store keeps every entity kind in maps guarded by one mutex. Persist
// optionally snapshots the whole store to a JSON file so dev runs
// survive restarts.
type Store struct {
	mu           sync.RWMutex
	snapshotPath string

	targets     map[string]outreach.Target
	runs        map[string]outreach.Run
	taskResults []outreach.TaskResult
	logs        []outreach.LogEntry
	requests    map[string]outreach.SubmissionRequest
	events      []outreach.SubmissionEvent
}

// New constructs an empty Store. snapshotPath may be empty, in which
// case Persist is a no-op.
func New(snapshotPath string) *Store {
	return &Store{
		snapshotPath: snapshotPath,
		targets:      make(map[string]outreach.Target),
		runs:         make(map[string]outreach.Run),
		requests:     make(map[string]outreach.SubmissionRequest),
	}
}

// GetTarget fetches a target by ID.
func (s *Store) GetTarget(_ context.Context, id string) (outreach.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return outreach.Target{}, fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// ListTargets returns all targets in a workspace, ordered by ID.
func (s *Store) ListTargets(_ context.Context, workspace string) ([]outreach.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outreach.Target
	for _, t := range s.targets {
		if workspace == "" || t.Workspace == workspace {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertTarget inserts or replaces a target.
func (s *Store) UpsertTarget(_ context.Context, target outreach.Target) error {
	if target.ID == "" {
		return errors.New("target id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[target.ID] = target
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(_ context.Context, id string) (outreach.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return outreach.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// UpsertRun inserts or replaces a run.
func (s *Store) UpsertRun(_ context.Context, run outreach.Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// AppendTaskResult appends an immutable task result row.
func (s *Store) AppendTaskResult(_ context.Context, result outreach.TaskResult) error {
	if result.ID == "" {
		return errors.New("task result id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskResults = append(s.taskResults, result)
	return nil
}

// ListTaskResults returns task results for a run in insertion order.
func (s *Store) ListTaskResults(_ context.Context, runID string) ([]outreach.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outreach.TaskResult
	for _, tr := range s.taskResults {
		if tr.RunID == runID {
			out = append(out, tr)
		}
	}
	return out, nil
}

// AppendLog appends a run log entry.
func (s *Store) AppendLog(_ context.Context, entry outreach.LogEntry) error {
	if entry.ID == "" {
		return errors.New("log id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// ListLogs returns log entries for a run in insertion order.
func (s *Store) ListLogs(_ context.Context, runID string) ([]outreach.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outreach.LogEntry
	for _, l := range s.logs {
		if l.RunID == runID {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetSubmissionRequest fetches a submission request by ID.
func (s *Store) GetSubmissionRequest(_ context.Context, id string) (outreach.SubmissionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return outreach.SubmissionRequest{}, fmt.Errorf("submission request %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// UpsertSubmissionRequest inserts or replaces a submission request.
func (s *Store) UpsertSubmissionRequest(_ context.Context, req outreach.SubmissionRequest) error {
	if req.ID == "" {
		return errors.New("submission request id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

// ListSubmissionRequests returns requests for a run, ordered by ID.
func (s *Store) ListSubmissionRequests(_ context.Context, runID string) ([]outreach.SubmissionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outreach.SubmissionRequest
	for _, r := range s.requests {
		if runID == "" || r.RunID == runID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AppendSubmissionEvent appends an immutable submission event.
func (s *Store) AppendSubmissionEvent(_ context.Context, event outreach.SubmissionEvent) error {
	if event.ID == "" {
		return errors.New("submission event id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListSubmissionEvents returns events for a target, most recent first.
func (s *Store) ListSubmissionEvents(_ context.Context, targetID string) ([]outreach.SubmissionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outreach.SubmissionEvent
	for _, e := range s.events {
		if targetID == "" || e.TargetID == targetID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

type snapshot struct {
	Targets     []outreach.Target            `json:"targets"`
	Runs        []outreach.Run               `json:"runs"`
	TaskResults []outreach.TaskResult        `json:"task_results"`
	Logs        []outreach.LogEntry          `json:"logs"`
	Requests    []outreach.SubmissionRequest `json:"submission_requests"`
	Events      []outreach.SubmissionEvent   `json:"submission_events"`
}

// Persist snapshots the store to disk when a snapshot path is
// configured.
func (s *Store) Persist(_ context.Context) error {
	if s.snapshotPath == "" {
		return nil
	}
	s.mu.RLock()
	snap := snapshot{
		TaskResults: append([]outreach.TaskResult(nil), s.taskResults...),
		Logs:        append([]outreach.LogEntry(nil), s.logs...),
		Events:      append([]outreach.SubmissionEvent(nil), s.events...),
	}
	for _, t := range s.targets {
		snap.Targets = append(snap.Targets, t)
	}
	for _, r := range s.runs {
		snap.Runs = append(snap.Runs, r)
	}
	for _, r := range s.requests {
		snap.Requests = append(snap.Requests, r)
	}
	s.mu.RUnlock()

	sort.Slice(snap.Targets, func(i, j int) bool { return snap.Targets[i].ID < snap.Targets[j].ID })
	sort.Slice(snap.Runs, func(i, j int) bool { return snap.Runs[i].ID < snap.Runs[j].ID })
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].ID < snap.Requests[j].ID })

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(s.snapshotPath, payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
