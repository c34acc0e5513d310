package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fundpilot/outreach/internal/outreach"
)

func TestTargetRoundTrip(t *testing.T) {
	t.Parallel()

	s := New("")
	ctx := context.Background()

	_, err := s.GetTarget(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	target := outreach.Target{ID: "t1", Workspace: "ws-1", Name: "Fund One", Stage: outreach.StageLead}
	require.NoError(t, s.UpsertTarget(ctx, target))

	got, err := s.GetTarget(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, target, got)

	// Upsert replaces.
	target.Stage = outreach.StageReview
	require.NoError(t, s.UpsertTarget(ctx, target))
	got, err = s.GetTarget(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, outreach.StageReview, got.Stage)

	require.Error(t, s.UpsertTarget(ctx, outreach.Target{}))
}

func TestListTargets_FiltersByWorkspace(t *testing.T) {
	t.Parallel()

	s := New("")
	ctx := context.Background()
	require.NoError(t, s.UpsertTarget(ctx, outreach.Target{ID: "b", Workspace: "ws-1"}))
	require.NoError(t, s.UpsertTarget(ctx, outreach.Target{ID: "a", Workspace: "ws-1"}))
	require.NoError(t, s.UpsertTarget(ctx, outreach.Target{ID: "c", Workspace: "ws-2"}))

	targets, err := s.ListTargets(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "a", targets[0].ID)
	require.Equal(t, "b", targets[1].ID)

	all, err := s.ListTargets(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestTaskResultsAndLogs_ScopedByRun(t *testing.T) {
	t.Parallel()

	s := New("")
	ctx := context.Background()
	require.NoError(t, s.AppendTaskResult(ctx, outreach.TaskResult{ID: "tr1", RunID: "r1"}))
	require.NoError(t, s.AppendTaskResult(ctx, outreach.TaskResult{ID: "tr2", RunID: "r2"}))
	require.NoError(t, s.AppendLog(ctx, outreach.LogEntry{ID: "l1", RunID: "r1"}))

	results, err := s.ListTaskResults(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "tr1", results[0].ID)

	logs, err := s.ListLogs(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, logs, 1)

	require.Error(t, s.AppendTaskResult(ctx, outreach.TaskResult{RunID: "r1"}))
}

func TestSubmissionEvents_MostRecentFirst(t *testing.T) {
	t.Parallel()

	s := New("")
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.AppendSubmissionEvent(ctx, outreach.SubmissionEvent{
			ID:       id,
			TargetID: "t1",
			At:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.ListSubmissionEvents(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "e3", events[0].ID)
	require.Equal(t, "e1", events[2].ID)
}

func TestPersist_WritesSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshots", "store.json")
	s := New(path)
	ctx := context.Background()
	require.NoError(t, s.UpsertTarget(ctx, outreach.Target{ID: "t1", Name: "Fund"}))
	require.NoError(t, s.UpsertRun(ctx, outreach.Run{ID: "r1"}))

	require.NoError(t, s.Persist(ctx))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap struct {
		Targets []outreach.Target `json:"targets"`
		Runs    []outreach.Run    `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Len(t, snap.Targets, 1)
	require.Len(t, snap.Runs, 1)
	require.Equal(t, "Fund", snap.Targets[0].Name)
}

func TestPersist_NoopWithoutPath(t *testing.T) {
	t.Parallel()

	s := New("")
	require.NoError(t, s.Persist(context.Background()))
}
