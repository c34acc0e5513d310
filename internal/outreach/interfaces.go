package outreach

import (
	"context"
	"time"
)

// Store persists pipeline entities. Implementations must serialize
// concurrent writers; the engine calls Persist after every meaningful
// state transition.
type Store interface {
	GetTarget(ctx context.Context, id string) (Target, error)
	ListTargets(ctx context.Context, workspace string) ([]Target, error)
	UpsertTarget(ctx context.Context, target Target) error

	GetRun(ctx context.Context, id string) (Run, error)
	UpsertRun(ctx context.Context, run Run) error

	AppendTaskResult(ctx context.Context, result TaskResult) error
	AppendLog(ctx context.Context, entry LogEntry) error

	GetSubmissionRequest(ctx context.Context, id string) (SubmissionRequest, error)
	UpsertSubmissionRequest(ctx context.Context, req SubmissionRequest) error

	AppendSubmissionEvent(ctx context.Context, event SubmissionEvent) error
	ListSubmissionEvents(ctx context.Context, targetID string) ([]SubmissionEvent, error)

	Persist(ctx context.Context) error
}

// BlobStore writes evidence artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes pipeline events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// FetchResult is the outcome of a single bounded page fetch.
type FetchResult struct {
	URL        string
	StatusCode int
	HTML       string
	Duration   time.Duration
}

// Fetcher retrieves a single page's HTML. Non-HTML and non-2xx
// responses are errors; the crawler folds every error into "page
// unavailable".
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// AgentContext is the input handed to each pipeline agent.
type AgentContext struct {
	Run      Run
	Target   Target
	Sender   SenderProfile
	Previous map[string]AgentOutput
}

// AgentOutput is the structured result of one agent execution.
type AgentOutput struct {
	Confidence float64
	Summary    string
	Output     map[string]any
}

// Agent is a named pipeline capability. Implementations may be
// heuristic or backed by a real inference service.
type Agent interface {
	Name() string
	Execute(ctx context.Context, ac *AgentContext) (AgentOutput, error)
}
