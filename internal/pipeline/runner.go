package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fundpilot/outreach/internal/metrics"
	"github.com/fundpilot/outreach/internal/outreach"
	"github.com/fundpilot/outreach/internal/qualify"
	"github.com/fundpilot/outreach/internal/task"
)

// Gate failure reasons surfaced on the target's status.
const (
	reasonBelowThreshold = "Below submission threshold"
	reasonQABlocked      = "QA blocked due to missing fields"
	reasonQueued         = "queued for human approval"
)

// Config controls Runner behavior.
type Config struct {
	Workspace             string
	MaxSubmissionAttempts int
	// CompletionTopic names the publisher topic for run completion
	// events. Empty disables publishing.
	CompletionTopic string
}

// Runner owns the per-run pipeline state machine. Targets are
// processed strictly one at a time and steps strictly in sequence, so
// per-target log ordering is deterministic and no target's state is
// mutated concurrently.
type Runner struct {
	store     outreach.Store
	executor  *task.Executor
	agents    []outreach.Agent
	sender    outreach.SenderProfile
	clock     outreach.Clock
	ids       outreach.IDGenerator
	publisher outreach.Publisher
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Runner. The agent slice must be in pipeline order;
// publisher may be nil.
func New(
	store outreach.Store,
	executor *task.Executor,
	agents []outreach.Agent,
	sender outreach.SenderProfile,
	clock outreach.Clock,
	ids outreach.IDGenerator,
	publisher outreach.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if cfg.MaxSubmissionAttempts < 1 {
		cfg.MaxSubmissionAttempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:     store,
		executor:  executor,
		agents:    agents,
		sender:    sender,
		clock:     clock,
		ids:       ids,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateRun is the sole upward entry point: it creates a Run record,
// drives every selected target through the pipeline, and returns the
// completed run. A single target's fatal failure never aborts the
// run; store failures do.
func (r *Runner) CreateRun(ctx context.Context, initiator, workspace string, targetIDs []string, mode outreach.RunMode) (outreach.Run, error) {
	if workspace == "" {
		workspace = r.cfg.Workspace
	}
	targets, err := r.resolveTargets(ctx, workspace, targetIDs)
	if err != nil {
		return outreach.Run{}, err
	}

	runID, err := r.ids.NewID()
	if err != nil {
		return outreach.Run{}, fmt.Errorf("run id: %w", err)
	}
	run := outreach.Run{
		ID:        runID,
		Workspace: workspace,
		Initiator: initiator,
		Mode:      mode,
		Status:    outreach.RunStatusRunning,
		Started:   r.clock.Now(),
		Counters:  outreach.RunCounters{TotalFirms: len(targets)},
	}
	if err := r.saveRun(ctx, &run); err != nil {
		return outreach.Run{}, err
	}
	metrics.RunStarted(string(mode))
	r.logRun(ctx, &run, "", outreach.LogInfo,
		fmt.Sprintf("run started by %s over %d targets (%s)", initiator, len(targets), mode))

	for _, target := range targets {
		r.processTarget(ctx, &run, target)
		if err := r.saveRun(ctx, &run); err != nil {
			return outreach.Run{}, err
		}
	}

	now := r.clock.Now()
	run.Status = outreach.RunStatusCompleted
	run.Completed = &now
	if err := r.saveRun(ctx, &run); err != nil {
		return outreach.Run{}, err
	}
	r.logRun(ctx, &run, "", outreach.LogInfo, fmt.Sprintf(
		"run completed: %d processed, %d success, %d failed",
		run.Counters.ProcessedFirms, run.Counters.SuccessCount, run.Counters.FailedCount))
	r.publishCompletion(ctx, run)
	return run, nil
}

// processTarget walks one target through the ordered pipeline. Fatal
// step failures are contained here: the target moves to review and
// the run continues.
func (r *Runner) processTarget(ctx context.Context, run *outreach.Run, target outreach.Target) {
	ac := &outreach.AgentContext{
		Run:      *run,
		Target:   target,
		Sender:   r.sender,
		Previous: make(map[string]outreach.AgentOutput),
	}

	outcome, err := r.runSteps(ctx, run, ac)
	if err != nil {
		r.logRun(ctx, run, target.ID, outreach.LogError,
			fmt.Sprintf("target %s failed: %v", target.Name, err))
		r.demoteTarget(ctx, ac, fmt.Sprintf("Processing error: %v", err))
		run.Counters.ProcessedFirms++
		run.Counters.FailedCount++
		metrics.TargetProcessed("errored")
		return
	}

	run.Counters.ProcessedFirms++
	if outcome {
		run.Counters.SuccessCount++
		metrics.TargetProcessed("success")
	} else {
		run.Counters.FailedCount++
		metrics.TargetProcessed("gated")
	}
}

// runSteps returns true when the target passed both gates and a
// submission request was queued.
func (r *Runner) runSteps(ctx context.Context, run *outreach.Run, ac *outreach.AgentContext) (bool, error) {
	for _, agent := range r.agents {
		output, result, err := r.executor.Run(ctx, agent, ac)
		if err != nil {
			return false, err
		}
		run.TaskResultIDs = append(run.TaskResultIDs, result.ID)
		ac.Previous[agent.Name()] = output

		switch agent.Name() {
		case TaskResearch:
			if err := r.applyAssessment(ctx, ac, output); err != nil {
				return false, err
			}
			if recommended, _ := output.Output["recommended"].(bool); !recommended {
				// Gate 1: qualification threshold.
				r.logRun(ctx, run, ac.Target.ID, outreach.LogWarn,
					fmt.Sprintf("%s below threshold, moved to review", ac.Target.Name))
				r.demoteTarget(ctx, ac, reasonBelowThreshold)
				return false, nil
			}
		case TaskQA:
			if canProceed, _ := output.Output["can_proceed"].(bool); !canProceed {
				// Gate 2: quality check.
				r.logRun(ctx, run, ac.Target.ID, outreach.LogWarn,
					fmt.Sprintf("%s blocked by QA, moved to review", ac.Target.Name))
				r.demoteTarget(ctx, ac, reasonQABlocked)
				return false, nil
			}
		}
	}

	if err := r.queueSubmission(ctx, run, ac); err != nil {
		return false, err
	}
	return true, nil
}

// applyAssessment copies the qualifier's inferences onto the target
// and re-stages it.
func (r *Runner) applyAssessment(ctx context.Context, ac *outreach.AgentContext, output outreach.AgentOutput) error {
	assessment, ok := output.Output["assessment"].(qualify.Assessment)
	if !ok {
		return fmt.Errorf("research output missing assessment")
	}
	t := &ac.Target
	t.Geography = assessment.Geography
	t.Category = assessment.Category
	t.Sectors = assessment.Sectors
	t.StageFocus = assessment.StageFocus
	t.GeographyFocus = assessment.GeographyFocus
	t.CheckSize = assessment.CheckSize
	t.Score = assessment.Score
	t.Confidence = assessment.Confidence
	if assessment.FormURL != "" {
		t.FormURL = assessment.FormURL
	}
	t.Stage = assessment.NextStage
	t.StatusReason = fmt.Sprintf("research scored %.3f", assessment.Score)
	t.LastTouched = r.clock.Now()
	return r.saveTarget(ctx, *t)
}

// demoteTarget moves the target to review with the given reason. Best
// effort: a store failure here is logged, not propagated, so the run
// keeps its per-target containment.
func (r *Runner) demoteTarget(ctx context.Context, ac *outreach.AgentContext, reason string) {
	t := &ac.Target
	t.Stage = outreach.StageReview
	t.StatusReason = reason
	t.Notes = append(t.Notes, reason)
	t.LastTouched = r.clock.Now()
	if err := r.saveTarget(ctx, *t); err != nil {
		r.logger.Error("demote target failed",
			zap.String("target_id", t.ID), zap.Error(err))
	}
}

// queueSubmission builds and persists the submission request for a
// target that passed both gates, with field-by-field fallbacks to the
// target's own identity.
func (r *Runner) queueSubmission(ctx context.Context, run *outreach.Run, ac *outreach.AgentContext) error {
	payload := payloadFromPrevious(ac)
	if payload.CompanyName == "" {
		payload.CompanyName = ac.Target.Name
	}
	if payload.CompanyWebsite == "" {
		payload.CompanyWebsite = ac.Target.Website
	}
	if message, ok := ac.Previous[TaskOutreach]; ok {
		if m, _ := message.Output["message"].(string); m != "" && payload.CompanySummary == "" {
			payload.CompanySummary = m
		}
	}

	reqID, err := r.ids.NewID()
	if err != nil {
		return fmt.Errorf("submission request id: %w", err)
	}
	req := outreach.SubmissionRequest{
		ID:          reqID,
		RunID:       run.ID,
		TargetID:    ac.Target.ID,
		TargetName:  ac.Target.Name,
		Website:     ac.Target.Website,
		FormURL:     ac.Target.FormURL,
		Payload:     payload,
		Status:      outreach.SubmissionPendingApproval,
		Mode:        run.Mode,
		MaxAttempts: r.cfg.MaxSubmissionAttempts,
		CreatedAt:   r.clock.Now(),
	}
	if err := r.store.UpsertSubmissionRequest(ctx, req); err != nil {
		return fmt.Errorf("upsert submission request: %w", err)
	}

	eventID, err := r.ids.NewID()
	if err != nil {
		return fmt.Errorf("submission event id: %w", err)
	}
	event := outreach.SubmissionEvent{
		ID:        eventID,
		TargetID:  ac.Target.ID,
		RequestID: req.ID,
		Channel:   "form",
		Status:    outreach.SubmissionQueued,
		Proof:     outreach.ProofNone,
		Note:      reasonQueued,
		At:        r.clock.Now(),
	}
	if err := r.store.AppendSubmissionEvent(ctx, event); err != nil {
		return fmt.Errorf("append submission event: %w", err)
	}

	t := &ac.Target
	t.Stage = outreach.StageFormFilled
	t.StatusReason = reasonQueued
	t.LastTouched = r.clock.Now()
	if err := r.saveTarget(ctx, *t); err != nil {
		return err
	}
	r.logRun(ctx, run, t.ID, outreach.LogInfo,
		fmt.Sprintf("submission request %s queued for %s", req.ID, t.Name))
	return nil
}

func (r *Runner) resolveTargets(ctx context.Context, workspace string, targetIDs []string) ([]outreach.Target, error) {
	if len(targetIDs) == 0 {
		targets, err := r.store.ListTargets(ctx, workspace)
		if err != nil {
			return nil, fmt.Errorf("list targets: %w", err)
		}
		return targets, nil
	}
	targets := make([]outreach.Target, 0, len(targetIDs))
	for _, id := range targetIDs {
		t, err := r.store.GetTarget(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// saveRun upserts and flushes the run. Persistence failures here are
// unrecoverable for the run and propagate to the caller.
func (r *Runner) saveRun(ctx context.Context, run *outreach.Run) error {
	if err := r.store.UpsertRun(ctx, *run); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	if err := r.store.Persist(ctx); err != nil {
		return fmt.Errorf("persist run: %w", err)
	}
	return nil
}

func (r *Runner) saveTarget(ctx context.Context, target outreach.Target) error {
	if err := r.store.UpsertTarget(ctx, target); err != nil {
		return fmt.Errorf("upsert target: %w", err)
	}
	if err := r.store.Persist(ctx); err != nil {
		return fmt.Errorf("persist target: %w", err)
	}
	return nil
}

// logRun writes a leveled entry to both the store and the process
// logger. Store-side log failures are demoted to process-log warnings.
func (r *Runner) logRun(ctx context.Context, run *outreach.Run, targetID string, level outreach.LogLevel, message string) {
	fields := []zap.Field{zap.String("run_id", run.ID)}
	if targetID != "" {
		fields = append(fields, zap.String("target_id", targetID))
	}
	switch level {
	case outreach.LogError:
		r.logger.Error(message, fields...)
	case outreach.LogWarn:
		r.logger.Warn(message, fields...)
	default:
		r.logger.Info(message, fields...)
	}

	id, err := r.ids.NewID()
	if err != nil {
		r.logger.Warn("log id generation failed", zap.Error(err))
		return
	}
	entry := outreach.LogEntry{
		ID:       id,
		RunID:    run.ID,
		TargetID: targetID,
		Level:    level,
		Message:  message,
		At:       r.clock.Now(),
	}
	if err := r.store.AppendLog(ctx, entry); err != nil {
		r.logger.Warn("append run log failed", zap.Error(err))
		return
	}
	run.LogIDs = append(run.LogIDs, id)
}

func (r *Runner) publishCompletion(ctx context.Context, run outreach.Run) {
	if r.publisher == nil || r.cfg.CompletionTopic == "" {
		return
	}
	payload := map[string]any{
		"run_id":    run.ID,
		"mode":      string(run.Mode),
		"total":     run.Counters.TotalFirms,
		"processed": run.Counters.ProcessedFirms,
		"success":   run.Counters.SuccessCount,
		"failed":    run.Counters.FailedCount,
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.CompletionTopic, payload); err != nil {
		r.logger.Warn("publish run completion failed",
			zap.String("run_id", run.ID), zap.Error(err))
	}
}
