package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fundpilot/outreach/internal/outreach"
	memstore "github.com/fundpilot/outreach/internal/store/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

// flakyAgent fails a fixed number of times before succeeding.
type flakyAgent struct {
	name     string
	failures int
	calls    int
}

func (a *flakyAgent) Name() string { return a.name }

func (a *flakyAgent) Execute(_ context.Context, _ *outreach.AgentContext) (outreach.AgentOutput, error) {
	a.calls++
	if a.calls <= a.failures {
		return outreach.AgentOutput{}, errors.New("transient failure")
	}
	return outreach.AgentOutput{
		Confidence: 0.8,
		Summary:    "done",
		Output:     map[string]any{"value": a.calls},
	}, nil
}

func newTestExecutor(t *testing.T, maxAttempts int) (*Executor, *memstore.Store) {
	t.Helper()
	store := memstore.New("")
	exec := New(store, fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}, &seqIDs{}, Config{
		MaxAttempts: maxAttempts,
		BackoffBase: time.Millisecond,
		BackoffCap:  4 * time.Millisecond,
	}, nil)
	return exec, store
}

func testAgentContext() *outreach.AgentContext {
	return &outreach.AgentContext{
		Run:      outreach.Run{ID: "run-1"},
		Target:   outreach.Target{ID: "target-1"},
		Previous: map[string]outreach.AgentOutput{},
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t, 2)
	agent := &flakyAgent{name: "ResearchAgent"}

	output, result, err := exec.Run(context.Background(), agent, testAgentContext())
	require.NoError(t, err)
	require.Equal(t, 1, agent.calls)
	require.Equal(t, "done", output.Summary)

	require.Equal(t, outreach.TaskCompleted, result.Status)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, "run-1", result.RunID)
	require.Equal(t, "target-1", result.TargetID)
	require.Equal(t, "ResearchAgent", result.Name)

	recorded, err := store.ListTaskResults(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, recorded, 1)
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	// Any failure count below the attempt bound must still succeed.
	for failures := 1; failures <= 3; failures++ {
		exec, store := newTestExecutor(t, 4)
		agent := &flakyAgent{name: "MappingAgent", failures: failures}

		_, result, err := exec.Run(context.Background(), agent, testAgentContext())
		require.NoError(t, err, "failures=%d", failures)
		require.Equal(t, failures+1, agent.calls)
		require.Equal(t, outreach.TaskCompleted, result.Status)
		require.Equal(t, failures+1, result.Attempts)

		recorded, err := store.ListTaskResults(context.Background(), "run-1")
		require.NoError(t, err)
		require.Len(t, recorded, 1, "exactly one result per attempt-set")
	}
}

func TestRun_ExhaustionRecordsFailedResult(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t, 2)
	agent := &flakyAgent{name: "OutreachAgent", failures: 99}

	_, result, err := exec.Run(context.Background(), agent, testAgentContext())
	require.Error(t, err)
	require.Contains(t, err.Error(), "task OutreachAgent")
	require.Equal(t, 2, agent.calls)

	require.Equal(t, outreach.TaskFailed, result.Status)
	require.Equal(t, 2, result.Attempts)
	require.Equal(t, "failed after 2 attempts", result.Summary)
	require.Equal(t, "transient failure", result.Output["error"])

	recorded, err := store.ListTaskResults(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, recorded, 1)
}

func TestRun_BackoffHonorsCancellation(t *testing.T) {
	t.Parallel()

	store := memstore.New("")
	exec := New(store, fixedClock{now: time.Now()}, &seqIDs{}, Config{
		MaxAttempts: 3,
		BackoffBase: time.Minute,
		BackoffCap:  time.Minute,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	agent := &flakyAgent{name: "TrackingAgent", failures: 99}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, result, err := exec.Run(ctx, agent, testAgentContext())
	require.Error(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
	require.Equal(t, outreach.TaskFailed, result.Status)
	require.Equal(t, 1, agent.calls)
	// The result reflects the one attempt actually made, not the bound.
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, "failed after 1 attempts", result.Summary)
}

func TestNew_ClampsAttemptBound(t *testing.T) {
	t.Parallel()

	exec, _ := newTestExecutor(t, 0)
	agent := &flakyAgent{name: "QualityAssuranceAgent", failures: 99}

	_, _, err := exec.Run(context.Background(), agent, testAgentContext())
	require.Error(t, err)
	require.Equal(t, 1, agent.calls)
}
