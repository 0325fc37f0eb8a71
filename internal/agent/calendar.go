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

// CalendarAgent schedules preparation blocks before meetings that look like
// they need one.
type CalendarAgent struct {
	model       *confidence.Model
	tasks       TaskWriter
	prepWindow  time.Duration
	prepMinutes int
	now         func() time.Time
}

// NewCalendarAgent creates a calendar agent proposing prep inside prepWindow
// before each qualifying event.
func NewCalendarAgent(model *confidence.Model, tasks TaskWriter) *CalendarAgent {
	return &CalendarAgent{
		model:       model,
		tasks:       tasks,
		prepWindow:  24 * time.Hour,
		prepMinutes: 30,
		now:         time.Now,
	}
}

// SetPrepWindow overrides how far ahead prep is proposed and how long a
// prep block lasts.
func (a *CalendarAgent) SetPrepWindow(window time.Duration, minutes int) {
	if window > 0 {
		a.prepWindow = window
	}
	if minutes > 0 {
		a.prepMinutes = minutes
	}
}

// Type implements Agent.
func (a *CalendarAgent) Type() string { return TypeCalendar }

// Evaluate proposes a schedule-prep decision for each upcoming event inside
// the prep window that does not already have a prep task.
func (a *CalendarAgent) Evaluate(ctx context.Context, snap *Snapshot) ([]*decision.Decision, error) {
	if snap.CalendarBriefing == nil {
		return nil, nil
	}
	now := a.now()

	var out []*decision.Decision
	for _, e := range snap.CalendarBriefing.Events {
		until := e.Start.Sub(now)
		if until <= 0 || until > a.prepWindow {
			continue
		}
		if len(e.Attendees) < 2 && !e.Critical {
			continue
		}
		if hasPrepTask(snap, e) {
			continue
		}

		ctxStr := EventContext(e)
		score, degraded := a.model.Score(ctx, TypeCalendar, string(decision.ActionSchedulePrep), ctxStr, a.heuristic(e, until))

		d := decision.New(TypeCalendar, decision.Action{
			Kind: decision.ActionSchedulePrep,
			SchedulePrep: &decision.SchedulePrep{
				EventTitle: e.Title,
				EventStart: e.Start,
				Minutes:    a.prepMinutes,
			},
		}, fmt.Sprintf("meeting %q starts in %s and has no prep block", e.Title, until.Round(time.Minute)),
			ctxStr, score, degraded)
		d.Alternatives = []string{"skip preparation", "prepare during the previous gap"}
		if e.Critical {
			d.Risks = append(d.Risks, "affects a critical-priority item")
		}
		out = append(out, d)
	}
	return out, nil
}

func (a *CalendarAgent) heuristic(e CalendarEvent, until time.Duration) float64 {
	score := 0.3
	if until <= 4*time.Hour {
		score += 0.3
	}
	if e.Critical {
		score += 0.2
	}
	if len(e.Attendees) >= 3 {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

// hasPrepTask reports whether an open task already covers preparation for
// the event.
func hasPrepTask(snap *Snapshot, e CalendarEvent) bool {
	if snap.NotionContext == nil {
		return false
	}
	eventWords := significantWords(e.Title)
	for _, t := range snap.NotionContext.OpenTasks {
		lower := strings.ToLower(t.Title)
		if !strings.Contains(lower, "prep") {
			continue
		}
		for w := range significantWords(t.Title) {
			if eventWords[w] {
				return true
			}
		}
	}
	return false
}

// Execute creates the prep task through the persistence boundary. Creation
// is idempotent by content hash, so a re-run never duplicates the block.
func (a *CalendarAgent) Execute(ctx context.Context, d *decision.Decision) (*ExecutionResult, error) {
	sp := d.Action.SchedulePrep
	if sp == nil {
		return nil, fmt.Errorf("calendar execute: decision %s carries no prep block", d.ID)
	}
	due := sp.EventStart
	_, err := a.tasks.CreateTask(ctx, &notion.Task{
		Title:    fmt.Sprintf("Prep: %s (%d min)", sp.EventTitle, sp.Minutes),
		Body:     fmt.Sprintf("Preparation block for %q at %s", sp.EventTitle, sp.EventStart.Format(time.RFC3339)),
		Priority: "high",
		Status:   "open",
		Due:      &due,
	})
	if err != nil {
		return &ExecutionResult{DecisionID: d.ID, Success: false, Detail: err.Error()}, err
	}
	return &ExecutionResult{DecisionID: d.ID, Success: true, Detail: "prep task created"}, nil
}

// Learn is a no-op for the calendar agent.
func (a *CalendarAgent) Learn(ev feedback.Event) {}
