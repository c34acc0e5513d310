package submit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fundpilot/outreach/internal/metrics"
	"github.com/fundpilot/outreach/internal/outreach"
)

var (
	captchaPattern = regexp.MustCompile(`(?i)(captcha|verify you are not a robot|are you a human|bot check)`)
	successPattern = regexp.MustCompile(`(?i)(thank|received|success)`)
)

// blockedCaptcha is the terminal reason for CAPTCHA walls; blocked
// submissions are never retried.
const blockedCaptcha = "CAPTCHA Blocked"

// Config controls Executor behavior. The two capability flags are
// independent: automation may be enabled without the final click.
type Config struct {
	Enabled          bool
	FinalSubmitClick bool
	NavTimeout       time.Duration
	Settle           time.Duration
	// EvidencePrefix prefixes blob paths for captured screenshots.
	EvidencePrefix string
}

// Outcome classifies one submission attempt.
type Outcome struct {
	Status            outreach.SubmissionStatus
	Proof             outreach.ProofLevel
	BlockedReason     string
	EvidencePath      string
	Note              string
	DiscoveredAt      *time.Time
	FilledAt          *time.Time
	SubmittedAt       *time.Time
	SubmittedVerified bool
	Simulated         bool
}

// Executor attempts prepared submissions through whatever automation
// tier is actually present, degrading to simulated results rather
// than failing.
type Executor struct {
	automator Automator
	evidence  outreach.BlobStore
	store     outreach.Store
	clock     outreach.Clock
	ids       outreach.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Executor. automator, evidence and store may each
// be nil; a nil automator behaves like a disabled capability.
func New(
	automator Automator,
	evidence outreach.BlobStore,
	store outreach.Store,
	clock outreach.Clock,
	ids outreach.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Executor {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		automator: automator,
		evidence:  evidence,
		store:     store,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// CanRetry reports whether a request may be attempted (again). Blocked
// requests are terminal regardless of remaining attempts; a CAPTCHA
// wall cannot be passed unattended. Verified submissions are done.
func CanRetry(req outreach.SubmissionRequest) error {
	switch req.Status {
	case outreach.SubmissionBlocked:
		return fmt.Errorf("request %s is blocked and will not be retried", req.ID)
	case outreach.SubmissionSubmitted:
		return fmt.Errorf("request %s was already submitted", req.ID)
	}
	if req.Attempts >= req.MaxAttempts {
		return fmt.Errorf("request %s exhausted its %d attempts", req.ID, req.MaxAttempts)
	}
	return nil
}

// Execute attempts the submission and records a SubmissionEvent plus
// the updated request when a store is configured. The attempt itself
// never fails; only store writes return an error.
func (e *Executor) Execute(ctx context.Context, req outreach.SubmissionRequest) (Outcome, error) {
	outcome := e.attempt(ctx, req)
	metrics.SubmissionRecorded(string(outcome.Status))
	if err := e.record(ctx, req, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// attempt walks the automation tiers for one request.
func (e *Executor) attempt(ctx context.Context, req outreach.SubmissionRequest) Outcome {
	if !e.cfg.Enabled || e.automator == nil {
		return e.simulate(req)
	}

	target := req.FormURL
	if target == "" {
		target = req.Website
	}

	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavTimeout)
	defer cancel()

	session, err := e.automator.Open(navCtx, target)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return e.simulate(req)
		}
		return e.errored(err)
	}
	defer session.Close()

	text, err := session.Text(navCtx)
	if err != nil {
		return e.classifyFailure(req, err)
	}
	if captchaPattern.MatchString(text) {
		return Outcome{
			Status:        outreach.SubmissionBlocked,
			Proof:         outreach.ProofNone,
			BlockedReason: blockedCaptcha,
		}
	}

	discovered := e.clock.Now()
	hasForm, err := session.HasForm(navCtx)
	if err != nil {
		return e.classifyFailure(req, err)
	}
	if !hasForm {
		return Outcome{
			Status:       outreach.SubmissionNoFormFound,
			Proof:        outreach.ProofNone,
			DiscoveredAt: &discovered,
		}
	}

	if err := e.fillFields(navCtx, session, req.Payload); err != nil {
		return e.classifyFailure(req, err)
	}
	filled := e.clock.Now()

	evidencePath := e.captureEvidence(ctx, session, req)

	if !e.cfg.FinalSubmitClick {
		return e.preSubmitOutcome(req, discovered, filled, evidencePath)
	}
	return e.finalSubmit(navCtx, session, req, discovered, filled, evidencePath)
}

// simulate returns the no-backend result tier.
func (e *Executor) simulate(req outreach.SubmissionRequest) Outcome {
	if req.Mode == outreach.ModeDryRun {
		discovered := e.clock.Now()
		filled := e.clock.Now()
		return Outcome{
			Status:       outreach.SubmissionFormFilled,
			Proof:        outreach.ProofNone,
			DiscoveredAt: &discovered,
			FilledAt:     &filled,
			Note:         "simulated: automation disabled",
			Simulated:    true,
		}
	}
	return Outcome{
		Status:    outreach.SubmissionNeedsReview,
		Proof:     outreach.ProofNone,
		Note:      "simulated: automation disabled",
		Simulated: true,
	}
}

func (e *Executor) errored(err error) Outcome {
	return Outcome{
		Status: outreach.SubmissionErrored,
		Proof:  outreach.ProofNone,
		Note:   err.Error(),
	}
}

// classifyFailure treats backend-absence errors like a missing
// backend; anything else is an errored attempt.
func (e *Executor) classifyFailure(req outreach.SubmissionRequest, err error) Outcome {
	if errors.Is(err, ErrUnavailable) {
		return e.simulate(req)
	}
	return e.errored(err)
}

// fieldValues orders payload values by the form-field name/id
// substrings that select them. First match wins per field.
func fieldValues(payload outreach.SubmissionPayload) []struct {
	keys  []string
	value string
} {
	return []struct {
		keys  []string
		value string
	}{
		{[]string{"email"}, payload.ContactEmail},
		{[]string{"phone", "tel"}, payload.ContactPhone},
		{[]string{"company", "firm", "organization"}, payload.CompanyName},
		{[]string{"website", "url", "site"}, payload.CompanyWebsite},
		{[]string{"deck", "presentation"}, payload.DeckURL},
		{[]string{"message", "summary", "description", "about", "pitch"}, payload.CompanySummary},
		{[]string{"name"}, payload.ContactName},
	}
}

// fillFields best-effort matches form controls against the payload.
// Individual fill failures are skipped; the evidence screenshot shows
// what actually landed.
func (e *Executor) fillFields(ctx context.Context, session Session, payload outreach.SubmissionPayload) error {
	fields, err := session.Fields(ctx)
	if err != nil {
		return fmt.Errorf("enumerate fields: %w", err)
	}
	used := make(map[int]bool)
	for _, fv := range fieldValues(payload) {
		if fv.value == "" {
			continue
		}
		for i, field := range fields {
			if used[i] || !matchesField(field, fv.keys) {
				continue
			}
			if err := session.Fill(ctx, field, fv.value); err != nil {
				e.logger.Debug("field fill failed",
					zap.String("field", field.Name), zap.Error(err))
				continue
			}
			used[i] = true
			break
		}
	}
	return nil
}

func matchesField(field Field, keys []string) bool {
	name := strings.ToLower(field.Name)
	id := strings.ToLower(field.ID)
	for _, key := range keys {
		if strings.Contains(name, key) || strings.Contains(id, key) {
			return true
		}
	}
	return false
}

// captureEvidence takes a pre-submission screenshot. Capture failure
// is non-fatal and simply yields no evidence path.
func (e *Executor) captureEvidence(ctx context.Context, session Session, req outreach.SubmissionRequest) string {
	if e.evidence == nil {
		return ""
	}
	shot, err := session.Screenshot(ctx)
	if err != nil {
		e.logger.Warn("screenshot capture failed",
			zap.String("request_id", req.ID), zap.Error(err))
		return ""
	}
	path := fmt.Sprintf("%s/%s/%d.png",
		strings.Trim(e.cfg.EvidencePrefix, "/"), req.TargetID, e.clock.Now().UnixMilli())
	uri, err := e.evidence.PutObject(ctx, path, "image/png", shot)
	if err != nil {
		e.logger.Warn("evidence upload failed",
			zap.String("request_id", req.ID), zap.Error(err))
		return ""
	}
	return uri
}

func (e *Executor) preSubmitOutcome(req outreach.SubmissionRequest, discovered, filled time.Time, evidencePath string) Outcome {
	proof := outreach.ProofNone
	if evidencePath != "" {
		proof = outreach.ProofPreSubmitScreenshot
	}
	if req.Mode == outreach.ModeDryRun {
		return Outcome{
			Status:       outreach.SubmissionFormFilled,
			Proof:        proof,
			EvidencePath: evidencePath,
			DiscoveredAt: &discovered,
			FilledAt:     &filled,
		}
	}
	return Outcome{
		Status:       outreach.SubmissionNeedsReview,
		Proof:        proof,
		EvidencePath: evidencePath,
		DiscoveredAt: &discovered,
		FilledAt:     &filled,
		Note:         "final submit disabled",
	}
}

// finalSubmit clicks the submit control and verifies the result text.
func (e *Executor) finalSubmit(ctx context.Context, session Session, req outreach.SubmissionRequest, discovered, filled time.Time, evidencePath string) Outcome {
	hasSubmit, err := session.HasSubmit(ctx)
	if err != nil {
		return e.classifyFailure(req, err)
	}
	if !hasSubmit {
		return Outcome{
			Status:       outreach.SubmissionNeedsReview,
			Proof:        proofFor(evidencePath),
			EvidencePath: evidencePath,
			DiscoveredAt: &discovered,
			FilledAt:     &filled,
			Note:         "no submit control found",
		}
	}

	if err := session.ClickSubmit(ctx); err != nil {
		return e.classifyFailure(req, err)
	}
	if e.cfg.Settle > 0 {
		select {
		case <-time.After(e.cfg.Settle):
		case <-ctx.Done():
		}
	}

	after, err := session.Text(ctx)
	if err == nil && successPattern.MatchString(after) {
		submitted := e.clock.Now()
		return Outcome{
			Status:            outreach.SubmissionSubmitted,
			Proof:             outreach.ProofSubmittedConfirmation,
			EvidencePath:      evidencePath,
			DiscoveredAt:      &discovered,
			FilledAt:          &filled,
			SubmittedAt:       &submitted,
			SubmittedVerified: true,
		}
	}
	// Submit was attempted but confirmation could not be verified.
	return Outcome{
		Status:       outreach.SubmissionNeedsReview,
		Proof:        proofFor(evidencePath),
		EvidencePath: evidencePath,
		DiscoveredAt: &discovered,
		FilledAt:     &filled,
		Note:         "submission not confirmed",
	}
}

func proofFor(evidencePath string) outreach.ProofLevel {
	if evidencePath != "" {
		return outreach.ProofPreSubmitScreenshot
	}
	return outreach.ProofNone
}

// record appends the submission event and advances the request and
// target, when a store is configured.
func (e *Executor) record(ctx context.Context, req outreach.SubmissionRequest, outcome Outcome) error {
	if e.store == nil {
		return nil
	}
	eventID, err := e.ids.NewID()
	if err != nil {
		return fmt.Errorf("submission event id: %w", err)
	}
	event := outreach.SubmissionEvent{
		ID:            eventID,
		TargetID:      req.TargetID,
		RequestID:     req.ID,
		Channel:       "form",
		Status:        outcome.Status,
		Proof:         outcome.Proof,
		DiscoveredAt:  outcome.DiscoveredAt,
		FilledAt:      outcome.FilledAt,
		SubmittedAt:   outcome.SubmittedAt,
		BlockedReason: outcome.BlockedReason,
		EvidencePath:  outcome.EvidencePath,
		Note:          outcome.Note,
		At:            e.clock.Now(),
	}
	if err := e.store.AppendSubmissionEvent(ctx, event); err != nil {
		return fmt.Errorf("append submission event: %w", err)
	}

	req.Attempts++
	req.Status = outcome.Status
	if err := e.store.UpsertSubmissionRequest(ctx, req); err != nil {
		return fmt.Errorf("upsert submission request: %w", err)
	}

	if outcome.SubmittedVerified {
		target, err := e.store.GetTarget(ctx, req.TargetID)
		if err == nil {
			target.Stage = outreach.StageSubmitted
			target.StatusReason = "submission confirmed"
			target.LastTouched = e.clock.Now()
			if err := e.store.UpsertTarget(ctx, target); err != nil {
				return fmt.Errorf("upsert target: %w", err)
			}
		}
	}
	if err := e.store.Persist(ctx); err != nil {
		return fmt.Errorf("persist submission: %w", err)
	}
	return nil
}
