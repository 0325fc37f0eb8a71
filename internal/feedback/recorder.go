// Package feedback is the only writer path from human judgment back into the
// pattern store. Every event is an immutable audit row; the pattern update
// that follows is best-effort.
package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alfredlabs/alfred/internal/pattern"
)

// Type distinguishes a direct user judgment from an observed outcome.
type Type string

const (
	TypeExplicit Type = "explicit"
	TypeImplicit Type = "implicit"
)

// Event is one immutable record of a judgment about a decision.
type Event struct {
	ID            string    `json:"id"`
	DecisionID    string    `json:"decision_id"`
	FeedbackType  Type      `json:"feedback_type"`
	WasApproved   bool      `json:"was_approved"`
	WasSuccessful bool      `json:"was_successful"`
	UserComment   string    `json:"user_comment,omitempty"`
	Context       string    `json:"context"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recorder appends feedback events and propagates outcomes into the pattern
// store. The two writes form a logical transaction: if the pattern update
// fails after the audit row landed, the trail stays correct and learning is
// merely stale.
type Recorder struct {
	db          *sql.DB
	patterns    *pattern.Store
	fingerprint func(string) (string, error)
}

// NewRecorder creates a feedback recorder using the default fingerprint
// derivation.
func NewRecorder(db *sql.DB, patterns *pattern.Store) *Recorder {
	return &Recorder{db: db, patterns: patterns, fingerprint: pattern.Fingerprint}
}

// SetFingerprintFunc overrides fingerprint derivation. It must match the
// one used for scoring or feedback lands on different patterns.
func (r *Recorder) SetFingerprintFunc(fn func(string) (string, error)) {
	if fn != nil {
		r.fingerprint = fn
	}
}

// Record captures an explicit user approve/reject judgment for a decision.
func (r *Recorder) Record(ctx context.Context, decisionID string, approved, successful bool, rawContext, comment string) error {
	return r.record(ctx, decisionID, TypeExplicit, approved, successful, rawContext, comment)
}

// RecordOutcome captures an observed downstream success/failure for a
// decision that was already executed.
func (r *Recorder) RecordOutcome(ctx context.Context, decisionID string, successful bool, rawContext string) error {
	return r.record(ctx, decisionID, TypeImplicit, true, successful, rawContext, "")
}

func (r *Recorder) record(ctx context.Context, decisionID string, ft Type, approved, successful bool, rawContext, comment string) error {
	fp, err := r.fingerprint(rawContext)
	if err != nil {
		// Malformed context: keep the audit row, skip learning.
		slog.Warn("Feedback context yielded no fingerprint", "decision_id", decisionID)
		fp = ""
	}

	// The unique (decision_id, feedback_type) index makes retries of the
	// same recorder call idempotent: a duplicate row is ignored and the
	// pattern counters are not double counted.
	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO feedback_events
		(id, decision_id, feedback_type, was_approved, was_successful, user_comment, context_text, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), decisionID, string(ft), approved, successful, comment, rawContext, fp)
	if err != nil {
		return fmt.Errorf("append feedback event: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		slog.Debug("Feedback already recorded", "decision_id", decisionID, "type", ft)
		return nil
	}

	if fp == "" {
		return nil
	}

	agentType, actionType, lookupErr := r.decisionTypes(ctx, decisionID)
	if lookupErr != nil {
		slog.Warn("Feedback recorded without pattern update: unknown decision",
			"decision_id", decisionID, "error", lookupErr)
		return nil
	}

	positive := approved
	if ft == TypeImplicit {
		positive = successful
	}
	if err := r.patterns.RecordOutcome(ctx, agentType, actionType, fp, ft == TypeExplicit, positive); err != nil {
		// Audit trail is already durable; learning is stale until the next
		// event for this fingerprint.
		slog.Warn("Feedback recorded but pattern update failed",
			"decision_id", decisionID, "agent_type", agentType,
			"action_type", actionType, "fingerprint", fp, "error", err)
	}
	return nil
}

func (r *Recorder) decisionTypes(ctx context.Context, decisionID string) (agentType, actionType string, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT agent_type, action_type FROM decisions WHERE id = ?`, decisionID).
		Scan(&agentType, &actionType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("decision %s not found", decisionID)
	}
	return agentType, actionType, err
}

// PatternSummary is one row of the insights report.
type PatternSummary struct {
	AgentType   string  `json:"agent_type"`
	ActionType  string  `json:"action_type"`
	Fingerprint string  `json:"fingerprint"`
	Confidence  float64 `json:"confidence"`
	Volume      int64   `json:"volume"`
}

// Insights is the aggregate transparency report over all recorded feedback.
type Insights struct {
	TotalDecisions    int64            `json:"total_decisions"`
	TotalFeedback     int64            `json:"total_feedback"`
	ApprovalRate      float64          `json:"approval_rate"`
	SuccessRate       float64          `json:"success_rate"`
	AverageConfidence float64          `json:"average_confidence"`
	TopPatterns       []PatternSummary `json:"top_patterns"`
}

// Insights computes the aggregate report on demand. Not a hot path.
func (r *Recorder) Insights(ctx context.Context) (*Insights, error) {
	ins := &Insights{}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions`).Scan(&ins.TotalDecisions); err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}

	// Implicit rows carry was_approved unconditionally, so each rate is
	// computed over its own feedback type only.
	var approved, successful sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			AVG(CASE WHEN feedback_type = 'explicit' THEN
				CASE WHEN was_approved THEN 1.0 ELSE 0.0 END END),
			AVG(CASE WHEN feedback_type = 'implicit' THEN
				CASE WHEN was_successful THEN 1.0 ELSE 0.0 END END)
		FROM feedback_events`).Scan(&ins.TotalFeedback, &approved, &successful)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	if approved.Valid {
		ins.ApprovalRate = approved.Float64
	}
	if successful.Valid {
		ins.SuccessRate = successful.Float64
	}

	var avgConf sql.NullFloat64
	if err := r.db.QueryRowContext(ctx,
		`SELECT AVG(confidence) FROM patterns`).Scan(&avgConf); err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	if avgConf.Valid {
		ins.AverageConfidence = avgConf.Float64
	}

	rows, err := r.db.QueryContext(ctx, `SELECT agent_type, action_type, fingerprint, confidence,
			approval_count + rejection_count + success_count + failure_count AS volume
		FROM patterns ORDER BY volume DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p PatternSummary
		if err := rows.Scan(&p.AgentType, &p.ActionType, &p.Fingerprint, &p.Confidence, &p.Volume); err != nil {
			continue
		}
		ins.TopPatterns = append(ins.TopPatterns, p)
	}
	return ins, rows.Err()
}
