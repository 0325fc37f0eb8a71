// Package pattern implements the durable pattern store: per-fingerprint
// outcome statistics that the learning core reads confidence from.
package pattern

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alfredlabs/alfred/internal/confidence"
)

// ErrStorageUnavailable wraps database failures so callers can fail open.
var ErrStorageUnavailable = errors.New("pattern: storage unavailable")

// Pattern is one unit of learned behavior. Counters only ever increase;
// confidence is recomputed from them on every feedback event and is never
// set directly by callers.
type Pattern struct {
	ID             string    `json:"id"`
	AgentType      string    `json:"agent_type"`
	ActionType     string    `json:"action_type"`
	Fingerprint    string    `json:"fingerprint"`
	Confidence     float64   `json:"confidence"`
	ApprovalCount  int64     `json:"approval_count"`
	RejectionCount int64     `json:"rejection_count"`
	SuccessCount   int64     `json:"success_count"`
	FailureCount   int64     `json:"failure_count"`
	LastUpdated    time.Time `json:"last_updated"`

	// version backs the optimistic concurrency check in RecordOutcome.
	version int64
}

// Stats returns the raw counters for confidence blending.
func (p *Pattern) Stats() confidence.Stats {
	return confidence.Stats{
		Approvals:  p.ApprovalCount,
		Rejections: p.RejectionCount,
		Successes:  p.SuccessCount,
		Failures:   p.FailureCount,
	}
}

// Store is the sole owner of the patterns table. Updates are atomic
// per-fingerprint: a conflicting concurrent update is retried once, then
// dropped with a log line (stale statistics beat blocking).
type Store struct {
	db      *sql.DB
	weights confidence.Weights
}

// NewStore creates a pattern store writing through db. weights governs how
// explicit approvals and implicit outcomes blend into stored confidence.
func NewStore(db *sql.DB, weights confidence.Weights) *Store {
	return &Store{db: db, weights: weights}
}

// FindOrCreate returns the pattern for an exact fingerprint match, creating
// it with the neutral prior and zero counters when absent. The new row is
// persisted immediately so feedback referencing it is durable. Idempotent:
// a second call returns the same pattern without resetting counters.
func (s *Store) FindOrCreate(ctx context.Context, agentType, actionType, fingerprint string) (*Pattern, error) {
	if p, err := s.get(ctx, agentType, actionType, fingerprint); err == nil {
		return p, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO patterns
		(id, agent_type, action_type, fingerprint, confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(agent_type, action_type, fingerprint) DO NOTHING`,
		id, agentType, actionType, fingerprint, confidence.NeutralPrior)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	p, err := s.get(ctx, agentType, actionType, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return p, nil
}

// RecordOutcome increments the counters for one feedback event and recomputes
// confidence, in a single atomic read-modify-write. An explicit event moves
// the approval counters, an implicit one the success counters; positive
// selects which side of the pair.
func (s *Store) RecordOutcome(ctx context.Context, agentType, actionType, fingerprint string, explicit, positive bool) error {
	if _, err := s.FindOrCreate(ctx, agentType, actionType, fingerprint); err != nil {
		return err
	}

	err := s.recordOnce(ctx, agentType, actionType, fingerprint, explicit, positive)
	if err == nil {
		return nil
	}
	// One retry on a lost-update conflict, then drop the learning signal.
	if err = s.recordOnce(ctx, agentType, actionType, fingerprint, explicit, positive); err != nil {
		slog.Warn("Pattern update dropped after retry",
			"agent_type", agentType, "action_type", actionType,
			"fingerprint", fingerprint, "error", err)
		return nil
	}
	return nil
}

// ErrConflict signals a lost-update detected on pattern counters.
var ErrConflict = errors.New("pattern: concurrent update conflict")

func (s *Store) recordOnce(ctx context.Context, agentType, actionType, fingerprint string, explicit, positive bool) error {
	p, err := s.get(ctx, agentType, actionType, fingerprint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	stats := p.Stats()
	switch {
	case explicit && positive:
		stats.Approvals++
	case explicit:
		stats.Rejections++
	case positive:
		stats.Successes++
	default:
		stats.Failures++
	}
	conf := s.weights.LearnedScore(stats)

	// The version column guards against a concurrent writer racing the read
	// above: the update only lands if nobody else has bumped the row since.
	res, err := s.db.ExecContext(ctx, `UPDATE patterns SET
			approval_count = ?,
			rejection_count = ?,
			success_count = ?,
			failure_count = ?,
			confidence = ?,
			version = version + 1,
			last_updated = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		stats.Approvals, stats.Rejections, stats.Successes, stats.Failures,
		conf, p.ID, p.version)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ConfidenceFor returns the learned confidence for a fingerprint, or the
// neutral prior when the pattern has never been seen.
func (s *Store) ConfidenceFor(ctx context.Context, agentType, actionType, fingerprint string) (float64, error) {
	p, err := s.get(ctx, agentType, actionType, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return confidence.NeutralPrior, nil
	}
	if err != nil {
		return confidence.NeutralPrior, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return p.Confidence, nil
}

// Stats implements confidence.StatsSource.
func (s *Store) Stats(ctx context.Context, agentType, actionType, fingerprint string) (confidence.Stats, error) {
	p, err := s.get(ctx, agentType, actionType, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return confidence.Stats{}, nil
	}
	if err != nil {
		return confidence.Stats{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return p.Stats(), nil
}

// TopPatterns returns the most exercised patterns, by total feedback volume.
func (s *Store) TopPatterns(ctx context.Context, limit int) ([]*Pattern, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, agent_type, action_type, fingerprint,
		confidence, approval_count, rejection_count, success_count, failure_count,
		version, last_updated
		FROM patterns
		ORDER BY (approval_count + rejection_count + success_count + failure_count) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []*Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) get(ctx context.Context, agentType, actionType, fingerprint string) (*Pattern, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, agent_type, action_type, fingerprint,
		confidence, approval_count, rejection_count, success_count, failure_count,
		version, last_updated
		FROM patterns
		WHERE agent_type = ? AND action_type = ? AND fingerprint = ?`,
		agentType, actionType, fingerprint)
	return scanPattern(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (*Pattern, error) {
	var p Pattern
	if err := row.Scan(&p.ID, &p.AgentType, &p.ActionType, &p.Fingerprint,
		&p.Confidence, &p.ApprovalCount, &p.RejectionCount, &p.SuccessCount,
		&p.FailureCount, &p.version, &p.LastUpdated); err != nil {
		return nil, err
	}
	return &p, nil
}
