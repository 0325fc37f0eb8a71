package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alfredlabs/alfred/internal/confidence"
	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/notion"
)

// TaskWriter is the mutation path into the persistence boundary.
type TaskWriter interface {
	CreateTask(ctx context.Context, task *notion.Task) (*notion.Task, error)
	UpdateStatus(ctx context.Context, taskID, status, priority string) error
}

var urgencyKeywords = []string{"urgent", "asap", "critical", "blocker", "eod", "deadline", "overdue"}

// TaskAgent proposes priority adjustments for outstanding tasks based on
// due-date proximity, imminent related meetings, and urgency wording.
type TaskAgent struct {
	model *confidence.Model
	tasks TaskWriter
	now   func() time.Time
}

// NewTaskAgent creates a task agent.
func NewTaskAgent(model *confidence.Model, tasks TaskWriter) *TaskAgent {
	return &TaskAgent{model: model, tasks: tasks, now: time.Now}
}

// Type implements Agent.
func (a *TaskAgent) Type() string { return TypeTask }

// Evaluate proposes one adjust-priority decision per task whose computed
// priority differs from its current one.
func (a *TaskAgent) Evaluate(ctx context.Context, snap *Snapshot) ([]*decision.Decision, error) {
	if snap.NotionContext == nil {
		return nil, nil
	}

	var out []*decision.Decision
	for _, t := range snap.NotionContext.OpenTasks {
		if t.Status == "done" {
			continue
		}
		h := a.heuristic(t, snap)
		proposed := priorityFor(h)
		if proposed == t.Priority || proposed == "" {
			continue
		}

		ctxStr := TaskContext(t)
		score, degraded := a.model.Score(ctx, TypeTask, string(decision.ActionAdjustPriority), ctxStr, h)

		d := decision.New(TypeTask, decision.Action{
			Kind: decision.ActionAdjustPriority,
			AdjustPriority: &decision.AdjustPriority{
				TaskID:      t.ID,
				TaskTitle:   t.Title,
				OldPriority: t.Priority,
				NewPriority: proposed,
			},
		}, reasonFor(t, proposed), ctxStr, score, degraded)
		d.Alternatives = []string{"keep current priority", "snooze until tomorrow"}
		out = append(out, d)
	}
	return out, nil
}

// heuristic accumulates bounded increments from domain signals; the result
// is capped at 1.0.
func (a *TaskAgent) heuristic(t TaskSummary, snap *Snapshot) float64 {
	score := 0.2
	now := a.now()

	if t.Due != nil {
		until := t.Due.Sub(now)
		switch {
		case until <= 24*time.Hour:
			score += 0.3
		case until <= 72*time.Hour:
			score += 0.15
		}
	}

	lower := strings.ToLower(t.Title)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			score += 0.2
			break
		}
	}

	if snap.CalendarBriefing != nil && relatedMeetingSoon(t, snap.CalendarBriefing.Events, now) {
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score
}

// relatedMeetingSoon reports whether an event within 48h shares a
// significant title word with the task.
func relatedMeetingSoon(t TaskSummary, events []CalendarEvent, now time.Time) bool {
	words := significantWords(t.Title)
	for _, e := range events {
		if e.Start.Sub(now) > 48*time.Hour || e.Start.Before(now) {
			continue
		}
		eventWords := significantWords(e.Title)
		for w := range words {
			if eventWords[w] {
				return true
			}
		}
	}
	return false
}

func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) >= 4 {
			out[w] = true
		}
	}
	return out
}

func priorityFor(h float64) string {
	switch {
	case h >= 0.8:
		return "critical"
	case h >= 0.6:
		return "high"
	case h >= 0.4:
		return "medium"
	default:
		return ""
	}
}

func reasonFor(t TaskSummary, proposed string) string {
	if t.Due != nil {
		return fmt.Sprintf("task %q is due %s; raising priority to %s",
			t.Title, t.Due.UTC().Format("2006-01-02"), proposed)
	}
	return fmt.Sprintf("urgency signals on task %q suggest priority %s", t.Title, proposed)
}

// Execute applies an approved priority change through the persistence
// boundary.
func (a *TaskAgent) Execute(ctx context.Context, d *decision.Decision) (*ExecutionResult, error) {
	ap := d.Action.AdjustPriority
	if ap == nil {
		return nil, fmt.Errorf("task execute: decision %s carries no priority change", d.ID)
	}
	if err := a.tasks.UpdateStatus(ctx, ap.TaskID, "open", ap.NewPriority); err != nil {
		return &ExecutionResult{DecisionID: d.ID, Success: false, Detail: err.Error()}, err
	}
	return &ExecutionResult{
		DecisionID: d.ID,
		Success:    true,
		Detail:     fmt.Sprintf("priority %s -> %s", ap.OldPriority, ap.NewPriority),
	}, nil
}

// Learn is a no-op for the task agent; its heuristics are stateless and the
// pattern store carries the learned signal.
func (a *TaskAgent) Learn(ev feedback.Event) {}
