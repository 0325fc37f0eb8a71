// Package decision defines proposed actions and the engine that converts a
// (action, confidence) pair into an execution verdict under an autonomy policy.
package decision

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind tags the variant carried by an Action.
type ActionKind string

const (
	ActionDraftReply     ActionKind = "draft_reply"
	ActionAdjustPriority ActionKind = "adjust_priority"
	ActionSchedulePrep   ActionKind = "schedule_prep"
	ActionCreateFollowup ActionKind = "create_followup"
)

// DraftReply proposes a drafted reply to a conversation thread.
type DraftReply struct {
	Platform string `json:"platform"`
	ThreadID string `json:"thread_id"`
	Body     string `json:"body"`
}

// AdjustPriority proposes changing the priority of an existing task.
type AdjustPriority struct {
	TaskID      string `json:"task_id"`
	TaskTitle   string `json:"task_title"`
	OldPriority string `json:"old_priority"`
	NewPriority string `json:"new_priority"`
}

// SchedulePrep proposes creating a preparation block before a meeting.
type SchedulePrep struct {
	EventTitle string    `json:"event_title"`
	EventStart time.Time `json:"event_start"`
	Minutes    int       `json:"minutes"`
}

// CreateFollowup proposes recording a commitment or reminder.
type CreateFollowup struct {
	Title    string     `json:"title"`
	Source   string     `json:"source"` // thread or event the commitment came from
	Due      *time.Time `json:"due,omitempty"`
	Priority string     `json:"priority"`
}

// Action is a tagged variant: exactly one payload pointer is set, matching Kind.
type Action struct {
	Kind           ActionKind      `json:"kind"`
	DraftReply     *DraftReply     `json:"draft_reply,omitempty"`
	AdjustPriority *AdjustPriority `json:"adjust_priority,omitempty"`
	SchedulePrep   *SchedulePrep   `json:"schedule_prep,omitempty"`
	CreateFollowup *CreateFollowup `json:"create_followup,omitempty"`
}

// TouchesCritical reports whether executing the action would affect a
// critical-priority item. Such decisions must carry a risk annotation.
func (a Action) TouchesCritical() bool {
	switch a.Kind {
	case ActionAdjustPriority:
		if a.AdjustPriority == nil {
			return false
		}
		return a.AdjustPriority.OldPriority == "critical" || a.AdjustPriority.NewPriority == "critical"
	case ActionCreateFollowup:
		return a.CreateFollowup != nil && a.CreateFollowup.Priority == "critical"
	}
	return false
}

// Verdict is the engine's classification of a proposed decision.
type Verdict string

const (
	VerdictAutoExecute     Verdict = "auto_execute"
	VerdictPendingApproval Verdict = "pending_approval"
	VerdictRejected        Verdict = "rejected"
)

// Decision is a single proposed action from an agent, with the blended
// confidence and the engine's verdict.
type Decision struct {
	ID               string    `json:"id"`
	AgentType        string    `json:"agent_type"`
	Action           Action    `json:"action"`
	Reasoning        string    `json:"reasoning"`
	Confidence       float64   `json:"confidence"`
	Context          string    `json:"context"` // fingerprint-source string
	Risks            []string  `json:"risks,omitempty"`
	Alternatives     []string  `json:"alternatives,omitempty"`
	Degraded         bool      `json:"degraded"` // learned stats were unavailable
	Verdict          Verdict   `json:"verdict,omitempty"`
	RequiresApproval bool      `json:"requires_approval"`
	CreatedAt        time.Time `json:"created_at"`
}

// New creates a proposed decision with a fresh ID.
func New(agentType string, action Action, reasoning, context string, conf float64, degraded bool) *Decision {
	return &Decision{
		ID:         uuid.NewString(),
		AgentType:  agentType,
		Action:     action,
		Reasoning:  reasoning,
		Confidence: conf,
		Context:    context,
		Degraded:   degraded,
		CreatedAt:  time.Now(),
	}
}
