package agent

import (
	"fmt"
	"strings"
	"time"
)

// ThreadSummary is a structured digest of recent activity in one
// conversation. It carries counts and short highlights, never full message
// bodies.
type ThreadSummary struct {
	Platform      string   `json:"platform"`
	ThreadID      string   `json:"thread_id"`
	ThreadName    string   `json:"thread_name"`
	IsGroup       bool     `json:"is_group"`
	UserMessages  int      `json:"user_messages"`
	TotalMessages int      `json:"total_messages"`
	Highlights    []string `json:"highlights,omitempty"`
	NeedsReply    bool     `json:"needs_reply"`
	LastSender    string   `json:"last_sender,omitempty"`
}

// MessagingSummary aggregates recent thread activity.
type MessagingSummary struct {
	Threads []ThreadSummary `json:"threads"`
}

// CalendarEvent is one upcoming calendar entry.
type CalendarEvent struct {
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees,omitempty"`
	Critical  bool      `json:"critical"`
}

// CalendarBriefing aggregates upcoming events.
type CalendarBriefing struct {
	Events []CalendarEvent `json:"events"`
}

// TaskSummary is one outstanding task from the persistence boundary.
type TaskSummary struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Priority string     `json:"priority"`
	Status   string     `json:"status"`
	Due      *time.Time `json:"due,omitempty"`
}

// NotionContext aggregates outstanding tasks.
type NotionContext struct {
	OpenTasks []TaskSummary `json:"open_tasks"`
}

// Snapshot is the immutable context all agents evaluate against. Each
// section is optional; agents skip what is absent. Advisories are cross-agent
// messages produced by the previous cycle. Agents never exchange state within
// a cycle.
type Snapshot struct {
	MessagingSummary *MessagingSummary `json:"messaging_summary,omitempty"`
	CalendarBriefing *CalendarBriefing `json:"calendar_briefing,omitempty"`
	NotionContext    *NotionContext    `json:"notion_context,omitempty"`
	Advisories       []string          `json:"advisories,omitempty"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// ThreadContext renders the fingerprint-source string for a thread decision.
func ThreadContext(t ThreadSummary) string {
	return fmt.Sprintf("%s thread %s %s reply-needed=%t %s",
		t.Platform, t.ThreadID, t.ThreadName, t.NeedsReply, strings.Join(t.Highlights, " "))
}

// TaskContext renders the fingerprint-source string for a task decision.
func TaskContext(t TaskSummary) string {
	due := "none"
	if t.Due != nil {
		due = t.Due.UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("task %s priority=%s due=%s", t.Title, t.Priority, due)
}

// EventContext renders the fingerprint-source string for a calendar decision.
func EventContext(e CalendarEvent) string {
	return fmt.Sprintf("event %s at %s attendees=%d",
		e.Title, e.Start.UTC().Format("2006-01-02 15:04"), len(e.Attendees))
}
