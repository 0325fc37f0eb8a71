// Package threads tracks per-conversation participation and extraction
// rejection rates, and classifies how aggressively extraction should treat
// each thread.
package threads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Classification biases extraction aggressiveness for one thread.
type Classification string

const (
	ClassObserve Classification = "observe"
	ClassMinimal Classification = "minimal"
	ClassActive  Classification = "active"
)

// WindowCap is the number of daily participation samples retained per thread.
const WindowCap = 30

// Sample is one day's participation measurement for a thread.
type Sample struct {
	Day           string `json:"day"` // YYYY-MM-DD
	UserMessages  int    `json:"user_messages"`
	TotalMessages int    `json:"total_messages"`
}

// Record is the behavioral profile of one conversation.
type Record struct {
	Platform         string         `json:"platform"`
	ThreadID         string         `json:"thread_id"`
	ThreadName       string         `json:"thread_name"`
	IsGroup          bool           `json:"is_group"`
	History          []Sample       `json:"history"`
	AvgParticipation float64        `json:"avg_participation"`
	ItemsExtracted   int            `json:"items_extracted"`
	ItemsRejected    int            `json:"items_rejected"`
	Classification   Classification `json:"classification"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// RejectionRate returns rejected/extracted+rejected, 0 when undefined.
func (r *Record) RejectionRate() float64 {
	n := r.ItemsExtracted + r.ItemsRejected
	if n == 0 {
		return 0
	}
	return float64(r.ItemsRejected) / float64(n)
}

// HasExtractionHistory reports whether the rejection rate is trustworthy.
func (r *Record) HasExtractionHistory() bool {
	return r.ItemsExtracted+r.ItemsRejected > 0
}

// Classify applies the ordered classification rules. Participation is the
// primary signal; rejection rate only matters once there is extraction
// history. The rule order is load-bearing: reordering changes outcomes at
// the boundaries.
func Classify(avgParticipation, rejectionRate float64, hasHistory bool) Classification {
	switch {
	case avgParticipation == 0:
		return ClassObserve
	case avgParticipation < 0.10 && hasHistory && rejectionRate > 0.5:
		return ClassObserve
	case avgParticipation < 0.20:
		return ClassMinimal
	case hasHistory && rejectionRate > 0.7:
		return ClassMinimal
	default:
		return ClassActive
	}
}

// Classifier owns the thread_records and thread_participation tables.
// All participation and extraction statistics flow through it.
type Classifier struct {
	db *sql.DB
}

// NewClassifier creates a thread classifier writing through db.
func NewClassifier(db *sql.DB) *Classifier {
	return &Classifier{db: db}
}

// RecordParticipation records one day's (userMessages, totalMessages) sample
// for a thread. At most one sample per calendar day is kept: a same-day call
// overwrites rather than appends. The retained window is capped at WindowCap
// days; avg participation and classification are recomputed in the same
// transaction so they can never drift from their inputs.
func (c *Classifier) RecordParticipation(ctx context.Context, platform, threadID, threadName string, isGroup bool, userMessages, totalMessages int, day time.Time) error {
	dayKey := day.UTC().Format("2006-01-02")

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record participation: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO thread_records
			(platform, thread_id, thread_name, is_group)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(platform, thread_id) DO UPDATE SET
			thread_name = excluded.thread_name,
			is_group = excluded.is_group`,
		platform, threadID, threadName, isGroup)
	if err != nil {
		return fmt.Errorf("record participation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO thread_participation
			(platform, thread_id, day, user_messages, total_messages)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(platform, thread_id, day) DO UPDATE SET
			user_messages = excluded.user_messages,
			total_messages = excluded.total_messages`,
		platform, threadID, dayKey, userMessages, totalMessages)
	if err != nil {
		return fmt.Errorf("record participation: %w", err)
	}

	// Prune samples that fell out of the sliding window.
	_, err = tx.ExecContext(ctx, `DELETE FROM thread_participation
		WHERE platform = ? AND thread_id = ? AND day NOT IN (
			SELECT day FROM thread_participation
			WHERE platform = ? AND thread_id = ?
			ORDER BY day DESC LIMIT ?)`,
		platform, threadID, platform, threadID, WindowCap)
	if err != nil {
		return fmt.Errorf("record participation: %w", err)
	}

	if err := c.reclassifyTx(ctx, tx, platform, threadID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record participation: %w", err)
	}
	return nil
}

// RecordExtraction records that an item was extracted from the thread and
// whether the user kept it. Rejections feed the rejection rate that damps
// future extraction.
func (c *Classifier) RecordExtraction(ctx context.Context, platform, threadID string, accepted bool) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record extraction: %w", err)
	}
	defer tx.Rollback()

	col := "items_extracted"
	if !accepted {
		col = "items_rejected"
	}
	res, err := tx.ExecContext(ctx, `UPDATE thread_records
		SET `+col+` = `+col+` + 1, updated_at = CURRENT_TIMESTAMP
		WHERE platform = ? AND thread_id = ?`, platform, threadID)
	if err != nil {
		return fmt.Errorf("record extraction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.Debug("Extraction recorded for unknown thread", "platform", platform, "thread_id", threadID)
		return nil
	}

	if err := c.reclassifyTx(ctx, tx, platform, threadID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record extraction: %w", err)
	}
	return nil
}

// reclassifyTx recomputes avg participation and classification from the
// stored window inside the caller's transaction.
func (c *Classifier) reclassifyTx(ctx context.Context, tx *sql.Tx, platform, threadID string) error {
	var userSum, totalSum sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT SUM(user_messages), SUM(total_messages)
		FROM thread_participation WHERE platform = ? AND thread_id = ?`,
		platform, threadID).Scan(&userSum, &totalSum)
	if err != nil {
		return fmt.Errorf("reclassify: %w", err)
	}

	avg := 0.0
	if totalSum.Valid && totalSum.Int64 > 0 {
		avg = float64(userSum.Int64) / float64(totalSum.Int64)
	}

	var extracted, rejected int
	err = tx.QueryRowContext(ctx, `SELECT items_extracted, items_rejected
		FROM thread_records WHERE platform = ? AND thread_id = ?`,
		platform, threadID).Scan(&extracted, &rejected)
	if err != nil {
		return fmt.Errorf("reclassify: %w", err)
	}

	rejectionRate := 0.0
	if extracted+rejected > 0 {
		rejectionRate = float64(rejected) / float64(extracted+rejected)
	}
	class := Classify(avg, rejectionRate, extracted+rejected > 0)

	_, err = tx.ExecContext(ctx, `UPDATE thread_records
		SET avg_participation = ?, classification = ?, updated_at = CURRENT_TIMESTAMP
		WHERE platform = ? AND thread_id = ?`,
		avg, string(class), platform, threadID)
	if err != nil {
		return fmt.Errorf("reclassify: %w", err)
	}
	return nil
}

// ClassFor returns the classification for a thread. A thread the classifier
// has never seen defaults to active: extraction starts at full aggressiveness
// and backs off as evidence accumulates.
func (c *Classifier) ClassFor(ctx context.Context, platform, threadID string) (Classification, error) {
	var class string
	err := c.db.QueryRowContext(ctx, `SELECT classification FROM thread_records
		WHERE platform = ? AND thread_id = ?`, platform, threadID).Scan(&class)
	if errors.Is(err, sql.ErrNoRows) {
		return ClassActive, nil
	}
	if err != nil {
		return ClassActive, fmt.Errorf("class for thread: %w", err)
	}
	return Classification(class), nil
}

// Get loads the full record for one thread, including the sample window.
func (c *Classifier) Get(ctx context.Context, platform, threadID string) (*Record, error) {
	var rec Record
	err := c.db.QueryRowContext(ctx, `SELECT platform, thread_id, thread_name, is_group,
			items_extracted, items_rejected, avg_participation, classification, updated_at
		FROM thread_records WHERE platform = ? AND thread_id = ?`,
		platform, threadID).Scan(&rec.Platform, &rec.ThreadID, &rec.ThreadName,
		&rec.IsGroup, &rec.ItemsExtracted, &rec.ItemsRejected,
		&rec.AvgParticipation, &rec.Classification, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get thread record: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT day, user_messages, total_messages
		FROM thread_participation WHERE platform = ? AND thread_id = ?
		ORDER BY day ASC`, platform, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread record: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Day, &s.UserMessages, &s.TotalMessages); err != nil {
			continue
		}
		rec.History = append(rec.History, s)
	}
	return &rec, rows.Err()
}

// List returns all known thread records, most recently updated first.
func (c *Classifier) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `SELECT platform, thread_id, thread_name, is_group,
			items_extracted, items_rejected, avg_participation, classification, updated_at
		FROM thread_records ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list thread records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Platform, &rec.ThreadID, &rec.ThreadName,
			&rec.IsGroup, &rec.ItemsExtracted, &rec.ItemsRejected,
			&rec.AvgParticipation, &rec.Classification, &rec.UpdatedAt); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
