// Package agent defines the typed agents and the coordinator that runs them
// over a context snapshot, drives their proposals through the decision
// engine, and executes what clears the autonomy policy.
package agent

import (
	"context"

	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/feedback"
)

// Well-known agent type names.
const (
	TypeCommunication = "communication"
	TypeTask          = "task"
	TypeCalendar      = "calendar"
	TypeFollowup      = "followup"
)

// ExecutionResult is the outcome of executing one approved decision.
type ExecutionResult struct {
	DecisionID string `json:"decision_id"`
	Success    bool   `json:"success"`
	Detail     string `json:"detail,omitempty"`
}

// Agent is one typed evaluator. Evaluate must be side-effect free: it reads
// the snapshot and the confidence model and proposes decisions. All mutation
// happens in Execute, which the coordinator invokes only for decisions the
// engine auto-approved or a human later approved. Learn lets an agent adapt
// internal heuristics from feedback; the pattern store is updated separately
// by the feedback recorder.
type Agent interface {
	Type() string
	Evaluate(ctx context.Context, snap *Snapshot) ([]*decision.Decision, error)
	Execute(ctx context.Context, d *decision.Decision) (*ExecutionResult, error)
	Learn(ev feedback.Event)
}
