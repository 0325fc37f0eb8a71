// Package ledger provides the SQLite persistence service backing the
// learning core: patterns, feedback events, decisions, thread records,
// auto-execution counters, approvals, and scheduled jobs.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Service owns the database handle and the schema lifecycle. All learner
// components share this handle; each component is the sole writer of its
// own tables.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the ledger database at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db: %w", err)
	}
	svc, err := newService(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return svc, nil
}

// NewServiceWithDB wraps an already-open database. Used by tests that run
// against an in-memory database.
func NewServiceWithDB(db *sql.DB) (*Service, error) {
	return newService(db)
}

func newService(db *sql.DB) (*Service, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for databases created before these columns existed.
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN degraded BOOLEAN NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE decisions ADD COLUMN alternatives TEXT DEFAULT '[]'`)
	_, _ = db.Exec(`ALTER TABLE approval_requests ADD COLUMN summary TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE feedback_events ADD COLUMN context_text TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE thread_records ADD COLUMN thread_name TEXT DEFAULT ''`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback_events(created_at)`)
	return &Service{db: db}, nil
}

// DB exposes the underlying handle for owning components.
func (s *Service) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// DecisionRecord is the persisted form of a proposed decision.
type DecisionRecord struct {
	ID           string     `json:"id"`
	AgentType    string     `json:"agent_type"`
	ActionType   string     `json:"action_type"`
	Payload      string     `json:"payload"`      // JSON blob, action-specific
	Reasoning    string     `json:"reasoning"`
	Confidence   float64    `json:"confidence"`
	Context      string     `json:"context"`
	Risks        string     `json:"risks"`        // JSON array
	Alternatives string     `json:"alternatives"` // JSON array
	Verdict      string     `json:"verdict"`
	Degraded     bool       `json:"degraded"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

const (
	DecisionProposed  = "proposed"
	DecisionPending   = "pending"
	DecisionExecuted  = "executed"
	DecisionDiscarded = "discarded"
)

// InsertDecision persists a freshly evaluated decision.
func (s *Service) InsertDecision(rec *DecisionRecord) error {
	_, err := s.db.Exec(`INSERT INTO decisions
		(id, agent_type, action_type, payload, reasoning, confidence, context_text,
		 risks, alternatives, verdict, degraded, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AgentType, rec.ActionType, rec.Payload, rec.Reasoning,
		rec.Confidence, rec.Context, rec.Risks, rec.Alternatives,
		rec.Verdict, rec.Degraded, rec.Status)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// ResolveDecision moves a decision to its terminal status.
func (s *Service) ResolveDecision(id, status string) error {
	_, err := s.db.Exec(`UPDATE decisions
		SET status = ?, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("resolve decision: %w", err)
	}
	return nil
}

// GetDecision loads a decision by ID. Returns sql.ErrNoRows when absent.
func (s *Service) GetDecision(id string) (*DecisionRecord, error) {
	row := s.db.QueryRow(`SELECT id, agent_type, action_type, payload, reasoning,
		confidence, context_text, risks, alternatives, verdict, degraded, status,
		created_at, resolved_at
		FROM decisions WHERE id = ?`, id)
	return scanDecision(row)
}

// ListDecisionsByStatus returns decisions with the given status, newest first.
func (s *Service) ListDecisionsByStatus(status string, limit int) ([]*DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, agent_type, action_type, payload, reasoning,
		confidence, context_text, risks, alternatives, verdict, degraded, status,
		created_at, resolved_at
		FROM decisions WHERE status = ? ORDER BY created_at DESC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*DecisionRecord, error) {
	var rec DecisionRecord
	var resolved sql.NullTime
	err := row.Scan(&rec.ID, &rec.AgentType, &rec.ActionType, &rec.Payload,
		&rec.Reasoning, &rec.Confidence, &rec.Context, &rec.Risks,
		&rec.Alternatives, &rec.Verdict, &rec.Degraded, &rec.Status,
		&rec.CreatedAt, &resolved)
	if err != nil {
		return nil, err
	}
	if resolved.Valid {
		rec.ResolvedAt = &resolved.Time
	}
	return &rec, nil
}

// LogAutoExecution records one autonomous execution for daily-cap accounting.
func (s *Service) LogAutoExecution(decisionID, agentType string) error {
	_, err := s.db.Exec(`INSERT INTO auto_executions (decision_id, agent_type) VALUES (?, ?)`,
		decisionID, agentType)
	if err != nil {
		return fmt.Errorf("log auto execution: %w", err)
	}
	return nil
}

// CountAutoExecToday returns how many autonomous executions the agent type
// has performed since midnight UTC.
func (s *Service) CountAutoExecToday(agentType string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM auto_executions
		WHERE agent_type = ? AND date(executed_at) = date('now')`, agentType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count auto executions: %w", err)
	}
	return n, nil
}

// ApprovalRecord is a persisted pending-approval row.
type ApprovalRecord struct {
	ApprovalID  string     `json:"approval_id"`
	DecisionID  string     `json:"decision_id"`
	AgentType   string     `json:"agent_type"`
	ActionType  string     `json:"action_type"`
	Summary     string     `json:"summary"`
	Confidence  float64    `json:"confidence"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// InsertApprovalRequest persists a new pending approval.
func (s *Service) InsertApprovalRequest(approvalID, decisionID, agentType, actionType, summary string, conf float64) error {
	_, err := s.db.Exec(`INSERT INTO approval_requests
		(approval_id, decision_id, agent_type, action_type, summary, confidence, status)
		VALUES (?, ?, ?, ?, ?, ?, 'pending')`,
		approvalID, decisionID, agentType, actionType, summary, conf)
	if err != nil {
		return fmt.Errorf("insert approval request: %w", err)
	}
	return nil
}

// UpdateApprovalStatus marks an approval as approved, denied, or timeout.
func (s *Service) UpdateApprovalStatus(approvalID, status string) error {
	_, err := s.db.Exec(`UPDATE approval_requests
		SET status = ?, responded_at = CURRENT_TIMESTAMP
		WHERE approval_id = ?`, status, approvalID)
	if err != nil {
		return fmt.Errorf("update approval status: %w", err)
	}
	return nil
}

// GetPendingApprovals returns all approvals still waiting for a response.
func (s *Service) GetPendingApprovals() ([]*ApprovalRecord, error) {
	rows, err := s.db.Query(`SELECT approval_id, decision_id, agent_type, action_type,
		summary, confidence, status, created_at, responded_at
		FROM approval_requests WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ApprovalRecord
	for rows.Next() {
		var rec ApprovalRecord
		var responded sql.NullTime
		if err := rows.Scan(&rec.ApprovalID, &rec.DecisionID, &rec.AgentType,
			&rec.ActionType, &rec.Summary, &rec.Confidence, &rec.Status,
			&rec.CreatedAt, &responded); err != nil {
			continue
		}
		if responded.Valid {
			rec.RespondedAt = &responded.Time
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// UpsertScheduledJob records a scheduler job run (best-effort bookkeeping).
func (s *Service) UpsertScheduledJob(name, status string, tick time.Time) error {
	_, err := s.db.Exec(`INSERT INTO scheduled_jobs (job_name, last_status, last_run_at, run_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(job_name) DO UPDATE SET
			last_status = excluded.last_status,
			last_run_at = excluded.last_run_at,
			run_count = run_count + 1,
			updated_at = CURRENT_TIMESTAMP`,
		name, status, tick)
	return err
}
