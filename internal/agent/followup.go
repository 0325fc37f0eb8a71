package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredlabs/alfred/internal/confidence"
	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/extract"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/notion"
)

var commitmentPhrases = []string{
	"i'll", "i will", "will send", "will get back", "will share",
	"by tomorrow", "by monday", "by friday", "by eod", "by end of",
}

// FollowupAgent turns commitments spotted in conversation highlights into
// follow-up tasks so they are not forgotten.
type FollowupAgent struct {
	model     *confidence.Model
	extractor extract.Extractor
	tasks     TaskWriter
}

// NewFollowupAgent creates a follow-up agent.
func NewFollowupAgent(model *confidence.Model, extractor extract.Extractor, tasks TaskWriter) *FollowupAgent {
	return &FollowupAgent{model: model, extractor: extractor, tasks: tasks}
}

// Type implements Agent.
func (a *FollowupAgent) Type() string { return TypeFollowup }

// Evaluate scans thread highlights for commitment language and asks the
// extraction boundary to structure each hit into a candidate follow-up.
func (a *FollowupAgent) Evaluate(ctx context.Context, snap *Snapshot) ([]*decision.Decision, error) {
	if snap.MessagingSummary == nil {
		return nil, nil
	}

	var out []*decision.Decision
	for _, t := range snap.MessagingSummary.Threads {
		for _, h := range t.Highlights {
			if !looksLikeCommitment(h) {
				continue
			}

			cand, err := a.extractor.Extract(ctx, commitmentPrompt(t, h))
			if err != nil {
				return nil, fmt.Errorf("followup evaluate: %w", err)
			}
			if cand == nil || strings.TrimSpace(cand.Title) == "" {
				continue
			}

			ctxStr := ThreadContext(t) + " " + h
			score, degraded := a.model.Score(ctx, TypeFollowup, string(decision.ActionCreateFollowup), ctxStr, a.heuristic(t, h))

			d := decision.New(TypeFollowup, decision.Action{
				Kind: decision.ActionCreateFollowup,
				CreateFollowup: &decision.CreateFollowup{
					Title:    cand.Title,
					Source:   fmt.Sprintf("%s/%s", t.Platform, t.ThreadID),
					Due:      cand.Due,
					Priority: "medium",
				},
			}, cand.Rationale, ctxStr, score, degraded)
			d.Alternatives = []string{"ignore the commitment", "note it in the daily briefing only"}
			out = append(out, d)
		}
	}
	return out, nil
}

func (a *FollowupAgent) heuristic(t ThreadSummary, highlight string) float64 {
	score := 0.3
	lower := strings.ToLower(highlight)
	if !t.IsGroup {
		score += 0.2
	}
	if strings.Contains(lower, "i'll") || strings.Contains(lower, "i will") {
		score += 0.2
	}
	if strings.Contains(lower, "by ") {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Execute records the follow-up through the persistence boundary. The
// content hash keeps repeated scans from duplicating the same commitment.
func (a *FollowupAgent) Execute(ctx context.Context, d *decision.Decision) (*ExecutionResult, error) {
	cf := d.Action.CreateFollowup
	if cf == nil {
		return nil, fmt.Errorf("followup execute: decision %s carries no followup", d.ID)
	}
	_, err := a.tasks.CreateTask(ctx, &notion.Task{
		Title:    cf.Title,
		Body:     "Follow-up from " + cf.Source,
		Priority: cf.Priority,
		Status:   "open",
		Due:      cf.Due,
	})
	if err != nil {
		return &ExecutionResult{DecisionID: d.ID, Success: false, Detail: err.Error()}, err
	}
	return &ExecutionResult{DecisionID: d.ID, Success: true, Detail: "follow-up created"}, nil
}

// Learn is a no-op for the follow-up agent.
func (a *FollowupAgent) Learn(ev feedback.Event) {}

func looksLikeCommitment(highlight string) bool {
	lower := strings.ToLower(highlight)
	for _, p := range commitmentPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func commitmentPrompt(t ThreadSummary, highlight string) string {
	return fmt.Sprintf("Extract the commitment from this message in %s on %s:\n%s",
		t.ThreadName, t.Platform, highlight)
}
