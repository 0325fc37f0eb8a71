package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alfredlabs/alfred/internal/confidence"
	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/extract"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/threads"
)

// DraftDelivery hands an approved draft reply to the outside world. The
// actual transport (messaging adapter, clipboard, notification) is an
// external collaborator.
type DraftDelivery interface {
	Deliver(ctx context.Context, platform, threadID, body string) error
}

// NoopDelivery discards drafts. Used when no delivery channel is wired.
type NoopDelivery struct{}

// Deliver implements DraftDelivery.
func (NoopDelivery) Deliver(ctx context.Context, platform, threadID, body string) error {
	return nil
}

// ThreadClasses is the read accessor into the thread classifier.
type ThreadClasses interface {
	ClassFor(ctx context.Context, platform, threadID string) (threads.Classification, error)
}

// CommunicationAgent drafts replies to threads that look like they are
// waiting on the user.
type CommunicationAgent struct {
	model     *confidence.Model
	extractor extract.Extractor
	classes   ThreadClasses
	delivery  DraftDelivery

	mu              sync.Mutex
	rejectionStreak int
}

// NewCommunicationAgent creates a communication agent. delivery may be nil.
func NewCommunicationAgent(model *confidence.Model, extractor extract.Extractor, classes ThreadClasses, delivery DraftDelivery) *CommunicationAgent {
	if delivery == nil {
		delivery = NoopDelivery{}
	}
	return &CommunicationAgent{
		model:     model,
		extractor: extractor,
		classes:   classes,
		delivery:  delivery,
	}
}

// Type implements Agent.
func (a *CommunicationAgent) Type() string { return TypeCommunication }

// Evaluate proposes draft replies for threads needing one. Threads the
// classifier marked observe are skipped entirely; minimal threads are only
// considered for direct (non-group) conversations.
func (a *CommunicationAgent) Evaluate(ctx context.Context, snap *Snapshot) ([]*decision.Decision, error) {
	if snap.MessagingSummary == nil {
		return nil, nil
	}

	var out []*decision.Decision
	for _, t := range snap.MessagingSummary.Threads {
		if !t.NeedsReply {
			continue
		}
		if advisoryMentions(snap.Advisories, t.ThreadName) {
			slog.Debug("Skipping thread named in an advisory",
				"platform", t.Platform, "thread_id", t.ThreadID)
			continue
		}

		class, err := a.classes.ClassFor(ctx, t.Platform, t.ThreadID)
		if err == nil {
			if class == threads.ClassObserve {
				continue
			}
			if class == threads.ClassMinimal && t.IsGroup {
				continue
			}
		}

		cand, err := a.extractor.Extract(ctx, draftPrompt(t))
		if err != nil {
			// Extraction down means this agent sits the cycle out.
			return nil, fmt.Errorf("communication evaluate: %w", err)
		}
		if cand == nil || strings.TrimSpace(cand.Body) == "" {
			continue
		}

		ctxStr := ThreadContext(t)
		score, degraded := a.model.Score(ctx, TypeCommunication, string(decision.ActionDraftReply), ctxStr, a.heuristic(t))

		d := decision.New(TypeCommunication, decision.Action{
			Kind: decision.ActionDraftReply,
			DraftReply: &decision.DraftReply{
				Platform: t.Platform,
				ThreadID: t.ThreadID,
				Body:     cand.Body,
			},
		}, cand.Rationale, ctxStr, score, degraded)
		d.Alternatives = []string{"leave the thread unanswered", "flag for manual reply"}
		out = append(out, d)
	}
	return out, nil
}

// heuristic scores how confidently a reply can be drafted from domain
// signals alone. Each signal contributes a bounded increment; the sum never
// exceeds 1.0.
func (a *CommunicationAgent) heuristic(t ThreadSummary) float64 {
	score := 0.3
	if !t.IsGroup {
		score += 0.2
	}
	if t.TotalMessages > 0 && float64(t.UserMessages)/float64(t.TotalMessages) > 0.3 {
		score += 0.2
	}
	if len(t.Highlights) > 0 {
		score += 0.1
	}

	a.mu.Lock()
	streak := a.rejectionStreak
	a.mu.Unlock()
	score -= 0.05 * float64(streak)

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Execute delivers an approved draft.
func (a *CommunicationAgent) Execute(ctx context.Context, d *decision.Decision) (*ExecutionResult, error) {
	dr := d.Action.DraftReply
	if dr == nil {
		return nil, fmt.Errorf("communication execute: decision %s carries no draft", d.ID)
	}
	if err := a.delivery.Deliver(ctx, dr.Platform, dr.ThreadID, dr.Body); err != nil {
		return &ExecutionResult{DecisionID: d.ID, Success: false, Detail: err.Error()}, err
	}
	return &ExecutionResult{DecisionID: d.ID, Success: true, Detail: "draft delivered"}, nil
}

// Learn tightens the heuristic after consecutive rejections and relaxes it
// again once drafts are approved.
func (a *CommunicationAgent) Learn(ev feedback.Event) {
	// Only direct user judgments move the streak; observed outcomes don't.
	if ev.FeedbackType != feedback.TypeExplicit {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if ev.WasApproved {
		a.rejectionStreak = 0
		return
	}
	if a.rejectionStreak < 5 {
		a.rejectionStreak++
	}
}

func draftPrompt(t ThreadSummary) string {
	var sb strings.Builder
	sb.WriteString("Draft a short reply for the conversation ")
	sb.WriteString(t.ThreadName)
	sb.WriteString(" on ")
	sb.WriteString(t.Platform)
	sb.WriteString(".\nRecent highlights:\n")
	for _, h := range t.Highlights {
		sb.WriteString("- ")
		sb.WriteString(h)
		sb.WriteString("\n")
	}
	return sb.String()
}

func advisoryMentions(advisories []string, name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, adv := range advisories {
		if strings.Contains(strings.ToLower(adv), lower) {
			return true
		}
	}
	return false
}
