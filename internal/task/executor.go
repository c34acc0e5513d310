// Package task provides the bounded-retry wrapper around pipeline
// agents.
package task

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fundpilot/outreach/internal/metrics"
	"github.com/fundpilot/outreach/internal/outreach"
)

// Config controls Executor behavior.
type Config struct {
	// MaxAttempts bounds retries per task. Values below 1 are raised
	// to 1.
	MaxAttempts int
	// BackoffBase is the per-attempt backoff unit; the wait before
	// attempt n+1 is min(BackoffCap, BackoffBase*n).
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Executor runs a named unit of work with bounded retries and records
// exactly one TaskResult per attempt-set.
type Executor struct {
	store  outreach.Store
	clock  outreach.Clock
	ids    outreach.IDGenerator
	cfg    Config
	logger *zap.Logger
}

// New constructs an Executor.
func New(store outreach.Store, clock outreach.Clock, ids outreach.IDGenerator, cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 300 * time.Millisecond
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 1200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{store: store, clock: clock, ids: ids, cfg: cfg, logger: logger}
}

// Run executes the agent up to the configured attempt bound. On
// success the recorded result carries the attempt number consumed; on
// exhaustion a failed result is recorded and the last error is
// returned. A returned error is the only way a pipeline step aborts
// the remainder of a target's processing.
func (e *Executor) Run(ctx context.Context, agent outreach.Agent, ac *outreach.AgentContext) (outreach.AgentOutput, outreach.TaskResult, error) {
	started := e.clock.Now()
	var lastErr error

	attempts := 0
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		output, err := agent.Execute(ctx, ac)
		if err == nil {
			metrics.TaskAttempt(agent.Name(), "success")
			result, recErr := e.record(ctx, agent.Name(), ac, outreach.TaskResult{
				Status:     outreach.TaskCompleted,
				Started:    started,
				Finished:   e.clock.Now(),
				Attempts:   attempt,
				Confidence: output.Confidence,
				Summary:    output.Summary,
				Output:     output.Output,
			})
			if recErr != nil {
				return outreach.AgentOutput{}, outreach.TaskResult{}, recErr
			}
			return output, result, nil
		}

		lastErr = err
		metrics.TaskAttempt(agent.Name(), "failure")
		e.logger.Warn("task attempt failed",
			zap.String("task", agent.Name()),
			zap.String("target_id", ac.Target.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < e.cfg.MaxAttempts {
			if werr := e.wait(ctx, attempt); werr != nil {
				lastErr = werr
				break
			}
		}
	}

	// attempts is the count actually consumed; a canceled backoff can
	// end the attempt-set before the configured bound.
	result, recErr := e.record(ctx, agent.Name(), ac, outreach.TaskResult{
		Status:   outreach.TaskFailed,
		Started:  started,
		Finished: e.clock.Now(),
		Attempts: attempts,
		Summary:  fmt.Sprintf("failed after %d attempts", attempts),
		Output:   map[string]any{"error": lastErr.Error()},
	})
	if recErr != nil {
		return outreach.AgentOutput{}, outreach.TaskResult{}, recErr
	}
	return outreach.AgentOutput{}, result, fmt.Errorf("task %s: %w", agent.Name(), lastErr)
}

func (e *Executor) record(ctx context.Context, name string, ac *outreach.AgentContext, result outreach.TaskResult) (outreach.TaskResult, error) {
	id, err := e.ids.NewID()
	if err != nil {
		return outreach.TaskResult{}, fmt.Errorf("task result id: %w", err)
	}
	result.ID = id
	result.RunID = ac.Run.ID
	result.TargetID = ac.Target.ID
	result.Name = name
	if err := e.store.AppendTaskResult(ctx, result); err != nil {
		return outreach.TaskResult{}, fmt.Errorf("append task result: %w", err)
	}
	return result, nil
}

// wait sleeps the capped linear backoff, honoring cancellation.
func (e *Executor) wait(ctx context.Context, attempt int) error {
	delay := e.cfg.BackoffBase * time.Duration(attempt)
	if delay > e.cfg.BackoffCap {
		delay = e.cfg.BackoffCap
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backoff canceled: %w", ctx.Err())
	}
}
