// Package pipeline drives targets through the staged outreach
// pipeline.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fundpilot/outreach/internal/crawler"
	"github.com/fundpilot/outreach/internal/outreach"
	"github.com/fundpilot/outreach/internal/qualify"
)

// Pipeline task names, in execution order.
const (
	TaskResearch = "ResearchAgent"
	TaskMapping  = "MappingAgent"
	TaskQA       = "QualityAssuranceAgent"
	TaskOutreach = "OutreachAgent"
	TaskTracking = "TrackingAgent"
)

// ResearchAgent crawls the target website and qualifies it. Its
// output drives the first pipeline gate.
type ResearchAgent struct {
	crawler   *crawler.Crawler
	qualifier *qualify.Qualifier
}

// NewResearchAgent constructs a ResearchAgent.
func NewResearchAgent(c *crawler.Crawler, q *qualify.Qualifier) *ResearchAgent {
	return &ResearchAgent{crawler: c, qualifier: q}
}

// Name implements outreach.Agent.
func (a *ResearchAgent) Name() string { return TaskResearch }

// Execute crawls and qualifies. It never fails on unreachable sites;
// the qualifier degrades to the target's existing attributes.
func (a *ResearchAgent) Execute(ctx context.Context, ac *outreach.AgentContext) (outreach.AgentOutput, error) {
	crawl := a.crawler.Crawl(ctx, ac.Target.Website)
	assessment := a.qualifier.Qualify(ac.Target, crawl)

	return outreach.AgentOutput{
		Confidence: assessment.Confidence,
		Summary: fmt.Sprintf("crawled %d pages, score %.3f, form %s",
			crawl.PagesCrawled, assessment.Score, assessment.FormVerdict),
		Output: map[string]any{
			"assessment":    assessment,
			"recommended":   assessment.Qualifies,
			"score":         assessment.Score,
			"pages_crawled": crawl.PagesCrawled,
			"form_verdict":  string(assessment.FormVerdict),
			"form_url":      assessment.FormURL,
		},
	}, nil
}

// MappingAgent maps the target and sender profile onto the submission
// payload fields.
type MappingAgent struct {
	sender outreach.SenderProfile
}

// NewMappingAgent constructs a MappingAgent.
func NewMappingAgent(sender outreach.SenderProfile) *MappingAgent {
	return &MappingAgent{sender: sender}
}

// Name implements outreach.Agent.
func (a *MappingAgent) Name() string { return TaskMapping }

// Execute builds the field mapping used for the submission request.
func (a *MappingAgent) Execute(_ context.Context, ac *outreach.AgentContext) (outreach.AgentOutput, error) {
	payload := outreach.SubmissionPayload{
		ContactName:    a.sender.ContactName,
		ContactEmail:   a.sender.ContactEmail,
		ContactPhone:   a.sender.ContactPhone,
		CompanyName:    a.sender.CompanyName,
		CompanyWebsite: a.sender.CompanyWebsite,
		CompanySummary: a.sender.CompanySummary,
		DeckURL:        a.sender.DeckURL,
		DataRoomURL:    a.sender.DataRoomURL,
	}

	personalization := ""
	if len(ac.Target.Sectors) > 0 {
		personalization = fmt.Sprintf("Noted %s focus on %s.",
			ac.Target.Name, strings.Join(ac.Target.Sectors, ", "))
	}

	return outreach.AgentOutput{
		Confidence: 0.8,
		Summary:    fmt.Sprintf("mapped submission fields for %s", ac.Target.Name),
		Output: map[string]any{
			"payload":         payload,
			"form_url":        ac.Target.FormURL,
			"personalization": personalization,
		},
	}, nil
}

// QAAgent verifies the mapped payload carries everything a submission
// needs. Its output drives the second pipeline gate.
type QAAgent struct{}

// NewQAAgent constructs a QAAgent.
func NewQAAgent() *QAAgent { return &QAAgent{} }

// Name implements outreach.Agent.
func (a *QAAgent) Name() string { return TaskQA }

// Execute checks required fields, falling back to the target's own
// name and website where the mapping omitted them.
func (a *QAAgent) Execute(_ context.Context, ac *outreach.AgentContext) (outreach.AgentOutput, error) {
	payload := payloadFromPrevious(ac)

	var missing []string
	if payload.ContactEmail == "" {
		missing = append(missing, "contact_email")
	}
	if payload.CompanyName == "" && ac.Target.Name == "" {
		missing = append(missing, "company_name")
	}
	if payload.CompanyWebsite == "" && ac.Target.Website == "" {
		missing = append(missing, "company_website")
	}

	canProceed := len(missing) == 0
	summary := "all required fields present"
	if !canProceed {
		summary = "missing fields: " + strings.Join(missing, ", ")
	}
	return outreach.AgentOutput{
		Confidence: 0.9,
		Summary:    summary,
		Output: map[string]any{
			"can_proceed":    canProceed,
			"missing_fields": missing,
		},
	}, nil
}

// OutreachAgent composes the intro note attached to the submission.
type OutreachAgent struct {
	sender outreach.SenderProfile
}

// NewOutreachAgent constructs an OutreachAgent.
func NewOutreachAgent(sender outreach.SenderProfile) *OutreachAgent {
	return &OutreachAgent{sender: sender}
}

// Name implements outreach.Agent.
func (a *OutreachAgent) Name() string { return TaskOutreach }

// Execute prepares the outreach message.
func (a *OutreachAgent) Execute(_ context.Context, ac *outreach.AgentContext) (outreach.AgentOutput, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s team,", ac.Target.Name)
	fmt.Fprintf(&b, " %s is raising a %s round.", a.sender.CompanyName, a.sender.Round)
	if summary := a.sender.CompanySummary; summary != "" {
		fmt.Fprintf(&b, " %s", summary)
	}
	if prev, ok := ac.Previous[TaskMapping]; ok {
		if p, _ := prev.Output["personalization"].(string); p != "" {
			fmt.Fprintf(&b, " %s", p)
		}
	}
	return outreach.AgentOutput{
		Confidence: 0.75,
		Summary:    fmt.Sprintf("prepared outreach note for %s", ac.Target.Name),
		Output:     map[string]any{"message": b.String()},
	}, nil
}

// TrackingAgent registers the prepared submission for follow-up.
type TrackingAgent struct{}

// NewTrackingAgent constructs a TrackingAgent.
func NewTrackingAgent() *TrackingAgent { return &TrackingAgent{} }

// Name implements outreach.Agent.
func (a *TrackingAgent) Name() string { return TaskTracking }

// Execute records the tracking registration.
func (a *TrackingAgent) Execute(_ context.Context, ac *outreach.AgentContext) (outreach.AgentOutput, error) {
	return outreach.AgentOutput{
		Confidence: 1,
		Summary:    fmt.Sprintf("registered %s for submission tracking", ac.Target.Name),
		Output: map[string]any{
			"registered": true,
			"channel":    "form",
		},
	}, nil
}

// payloadFromPrevious recovers the mapped payload from the mapping
// agent's output, tolerating its absence.
func payloadFromPrevious(ac *outreach.AgentContext) outreach.SubmissionPayload {
	prev, ok := ac.Previous[TaskMapping]
	if !ok {
		return outreach.SubmissionPayload{}
	}
	payload, _ := prev.Output["payload"].(outreach.SubmissionPayload)
	return payload
}
