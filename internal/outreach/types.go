// Package outreach defines core types shared across the pipeline subsystems.
package outreach

import "time"

// Stage represents a target's position in the outreach pipeline.
type Stage string

// Pipeline stages. The order is indicative, not strictly linear:
// review is a side branch reachable from any gate failure, and
// won/lost are terminal dispositions set outside this engine.
const (
	StageLead           Stage = "lead"
	StageResearching    Stage = "researching"
	StageQualified      Stage = "qualified"
	StageFormDiscovered Stage = "form_discovered"
	StageFormFilled     Stage = "form_filled"
	StageSubmitted      Stage = "submitted"
	StageReview         Stage = "review"
	StageWon            Stage = "won"
	StageLost           Stage = "lost"
)

// RunMode distinguishes rehearsal runs from live ones.
type RunMode string

// Run modes.
const (
	ModeDryRun     RunMode = "dry_run"
	ModeProduction RunMode = "production"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

// Run status values persisted in the store.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
)

// Target is a contactable organization being researched.
// Targets are never deleted, only re-staged.
type Target struct {
	ID             string    `json:"id"`
	Workspace      string    `json:"workspace"`
	Name           string    `json:"name"`
	Website        string    `json:"website"`
	Geography      string    `json:"geography"`
	Category       string    `json:"category"`
	Sectors        []string  `json:"sectors"`
	StageFocus     []string  `json:"stage_focus"`
	GeographyFocus []string  `json:"geography_focus"`
	CheckSize      string    `json:"check_size"`
	Stage          Stage     `json:"stage"`
	StatusReason   string    `json:"status_reason"`
	Score          float64   `json:"score"`
	Confidence     float64   `json:"confidence"`
	FormURL        string    `json:"form_url,omitempty"`
	Notes          []string  `json:"notes,omitempty"`
	ContactName    string    `json:"contact_name,omitempty"`
	ContactEmail   string    `json:"contact_email,omitempty"`
	LastTouched    time.Time `json:"last_touched"`
}

// RunCounters tracks per-run aggregates. Both success and failed are
// monotonically non-decreasing and processed == success + failed at
// every observation point.
type RunCounters struct {
	TotalFirms     int `json:"total_firms"`
	ProcessedFirms int `json:"processed_firms"`
	SuccessCount   int `json:"success_count"`
	FailedCount    int `json:"failed_count"`
}

// Run is one execution of the pipeline over a set of targets.
type Run struct {
	ID            string      `json:"id"`
	Workspace     string      `json:"workspace"`
	Initiator     string      `json:"initiator"`
	Mode          RunMode     `json:"mode"`
	Status        RunStatus   `json:"status"`
	Started       time.Time   `json:"started_at"`
	Completed     *time.Time  `json:"completed_at,omitempty"`
	Counters      RunCounters `json:"counters"`
	TaskResultIDs []string    `json:"task_result_ids"`
	LogIDs        []string    `json:"log_ids"`
}

// TaskStatus is the terminal state of one named pipeline step.
type TaskStatus string

// Task result statuses.
const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskResult is the outcome of one named step for one target within
// one run. Immutable once written; one record per attempt-set.
type TaskResult struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	TargetID   string         `json:"target_id"`
	Name       string         `json:"name"`
	Status     TaskStatus     `json:"status"`
	Started    time.Time      `json:"started_at"`
	Finished   time.Time      `json:"finished_at"`
	Attempts   int            `json:"attempts"`
	Confidence float64        `json:"confidence"`
	Summary    string         `json:"summary"`
	Output     map[string]any `json:"output,omitempty"`
}

// LogLevel grades run log entries.
type LogLevel string

// Log levels.
const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is a structured run-scoped log line persisted in the store.
type LogEntry struct {
	ID       string    `json:"id"`
	RunID    string    `json:"run_id"`
	TargetID string    `json:"target_id,omitempty"`
	Level    LogLevel  `json:"level"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// SubmissionStatus is the lifecycle state of a submission request.
type SubmissionStatus string

// Submission request / event statuses.
const (
	SubmissionPendingApproval SubmissionStatus = "pending_approval"
	SubmissionQueued          SubmissionStatus = "queued"
	SubmissionFormFilled      SubmissionStatus = "form_filled"
	SubmissionSubmitted       SubmissionStatus = "submitted"
	SubmissionNeedsReview     SubmissionStatus = "needs_review"
	SubmissionBlocked         SubmissionStatus = "blocked"
	SubmissionNoFormFound     SubmissionStatus = "no_form_found"
	SubmissionErrored         SubmissionStatus = "errored"
)

// SubmissionPayload carries the prepared field values for a form fill.
type SubmissionPayload struct {
	ContactName    string `json:"contact_name"`
	ContactEmail   string `json:"contact_email"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
	CompanySummary string `json:"company_summary,omitempty"`
	DeckURL        string `json:"deck_url,omitempty"`
	DataRoomURL    string `json:"data_room_url,omitempty"`
}

// SubmissionRequest is a prepared, not-yet-executed submission.
// At most one request exists per qualifying target per run.
type SubmissionRequest struct {
	ID          string            `json:"id"`
	RunID       string            `json:"run_id"`
	TargetID    string            `json:"target_id"`
	TargetName  string            `json:"target_name"`
	Website     string            `json:"website"`
	FormURL     string            `json:"form_url,omitempty"`
	Payload     SubmissionPayload `json:"payload"`
	Status      SubmissionStatus  `json:"status"`
	Mode        RunMode           `json:"mode"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ProofLevel grades the evidence captured for a submission attempt.
type ProofLevel string

// Proof levels, weakest first.
const (
	ProofNone                  ProofLevel = "none"
	ProofPreSubmitScreenshot   ProofLevel = "pre_submit_screenshot"
	ProofSubmittedConfirmation ProofLevel = "submitted_confirmation"
)

// SubmissionEvent records one attempted or simulated submission.
// Events are append-only and reported most-recent-first.
type SubmissionEvent struct {
	ID            string           `json:"id"`
	TargetID      string           `json:"target_id"`
	RequestID     string           `json:"request_id,omitempty"`
	Channel       string           `json:"channel"`
	Status        SubmissionStatus `json:"status"`
	Proof         ProofLevel       `json:"proof"`
	DiscoveredAt  *time.Time       `json:"discovered_at,omitempty"`
	FilledAt      *time.Time       `json:"filled_at,omitempty"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	BlockedReason string           `json:"blocked_reason,omitempty"`
	EvidencePath  string           `json:"evidence_path,omitempty"`
	Note          string           `json:"note,omitempty"`
	At            time.Time        `json:"at"`
}

// Page is one fetched page during a site crawl. Ephemeral; never
// persisted.
type Page struct {
	URL       string   `json:"url"`
	Text      string   `json:"text"`
	FormScore int      `json:"form_score"`
	Links     []string `json:"links"`
}

// HasForm reports whether the page's form score clears the signal
// threshold.
func (p Page) HasForm() bool {
	return p.FormScore >= 4
}

// FormVerdict is the crawl-level conclusion about a submission form.
type FormVerdict string

// Form discovery verdicts.
const (
	FormDiscovered FormVerdict = "discovered"
	FormNotFound   FormVerdict = "not_found"
	FormUnknown    FormVerdict = "unknown"
)

// SenderProfile describes the party on whose behalf submissions are
// prepared. Used by the qualifier to score fit.
type SenderProfile struct {
	ContactName    string
	ContactEmail   string
	ContactPhone   string
	CompanyName    string
	CompanyWebsite string
	CompanySummary string
	DeckURL        string
	DataRoomURL    string
	Round          string
	ProfileText    string
}
