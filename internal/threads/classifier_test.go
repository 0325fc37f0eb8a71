package threads

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alfredlabs/alfred/internal/ledger"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := ledger.NewServiceWithDB(db); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return NewClassifier(db)
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name          string
		avg           float64
		rejectionRate float64
		hasHistory    bool
		want          Classification
	}{
		{"zero participation", 0, 0, false, ClassObserve},
		{"low participation high rejection", 0.05, 0.8, true, ClassObserve},
		{"low participation no history", 0.05, 0, false, ClassMinimal},
		{"low participation low rejection", 0.05, 0.3, true, ClassMinimal},
		{"moderate participation", 0.15, 0, false, ClassMinimal},
		{"active participation", 0.4, 0, false, ClassActive},
		{"active but mostly rejected", 0.4, 0.8, true, ClassMinimal},
		{"active rejection untrusted", 0.4, 0.8, false, ClassActive},
		{"boundary at 0.20", 0.20, 0, false, ClassActive},
		{"boundary at 0.10", 0.10, 0.8, true, ClassMinimal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.avg, tt.rejectionRate, tt.hasHistory); got != tt.want {
				t.Errorf("Classify(%v, %v, %v) = %v, want %v",
					tt.avg, tt.rejectionRate, tt.hasHistory, got, tt.want)
			}
		})
	}
}

func TestRecordParticipationComputesAverage(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if err := c.RecordParticipation(ctx, "slack", "C100", "release", true, 4, 10, day); err != nil {
		t.Fatalf("RecordParticipation failed: %v", err)
	}
	if err := c.RecordParticipation(ctx, "slack", "C100", "release", true, 2, 10, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("RecordParticipation failed: %v", err)
	}

	rec, err := c.Get(ctx, "slack", "C100")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.AvgParticipation != 0.3 {
		t.Errorf("avg participation = %v, want 0.3", rec.AvgParticipation)
	}
	if rec.Classification != ClassActive {
		t.Errorf("classification = %v, want active", rec.Classification)
	}
	if len(rec.History) != 2 {
		t.Errorf("history length = %d, want 2", len(rec.History))
	}
}

func TestRecordParticipationSameDayOverwrites(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	if err := c.RecordParticipation(ctx, "slack", "C200", "standup", true, 1, 10, day); err != nil {
		t.Fatalf("first sample failed: %v", err)
	}
	// A later call on the same calendar day replaces the sample.
	if err := c.RecordParticipation(ctx, "slack", "C200", "standup", true, 5, 10, day.Add(6*time.Hour)); err != nil {
		t.Fatalf("second sample failed: %v", err)
	}

	rec, err := c.Get(ctx, "slack", "C200")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rec.History) != 1 {
		t.Fatalf("same-day samples appended: history length = %d", len(rec.History))
	}
	if rec.History[0].UserMessages != 5 {
		t.Errorf("sample not overwritten: user messages = %d, want 5", rec.History[0].UserMessages)
	}
	if rec.AvgParticipation != 0.5 {
		t.Errorf("avg participation = %v, want 0.5", rec.AvgParticipation)
	}
}

func TestRecordParticipationWindowCap(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < WindowCap+5; i++ {
		if err := c.RecordParticipation(ctx, "slack", "C300", "ops", true, 1, 10, start.AddDate(0, 0, i)); err != nil {
			t.Fatalf("sample %d failed: %v", i, err)
		}
	}

	rec, err := c.Get(ctx, "slack", "C300")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(rec.History) != WindowCap {
		t.Errorf("history length = %d, want %d", len(rec.History), WindowCap)
	}
	// Oldest samples fall out first.
	if rec.History[0].Day != "2026-01-06" {
		t.Errorf("oldest retained day = %s, want 2026-01-06", rec.History[0].Day)
	}
}

func TestRecordExtractionShiftsClassification(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if err := c.RecordParticipation(ctx, "whatsapp", "G1", "family", true, 4, 10, day); err != nil {
		t.Fatalf("RecordParticipation failed: %v", err)
	}

	// One acceptance then a run of rejections pushes the rate over 0.7.
	if err := c.RecordExtraction(ctx, "whatsapp", "G1", true); err != nil {
		t.Fatalf("RecordExtraction failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := c.RecordExtraction(ctx, "whatsapp", "G1", false); err != nil {
			t.Fatalf("RecordExtraction failed: %v", err)
		}
	}

	rec, err := c.Get(ctx, "whatsapp", "G1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.ItemsExtracted != 1 || rec.ItemsRejected != 4 {
		t.Errorf("extraction counters = %d/%d, want 1/4", rec.ItemsExtracted, rec.ItemsRejected)
	}
	if rec.Classification != ClassMinimal {
		t.Errorf("classification = %v, want minimal", rec.Classification)
	}
}

func TestRecordExtractionUnknownThreadIsNoop(t *testing.T) {
	c := newTestClassifier(t)

	if err := c.RecordExtraction(context.Background(), "slack", "nowhere", true); err != nil {
		t.Errorf("RecordExtraction for unknown thread errored: %v", err)
	}
}

func TestClassForUnknownThread(t *testing.T) {
	c := newTestClassifier(t)

	class, err := c.ClassFor(context.Background(), "slack", "never-seen")
	if err != nil {
		t.Fatalf("ClassFor failed: %v", err)
	}
	if class != ClassActive {
		t.Errorf("unknown thread class = %v, want active", class)
	}
}

func TestListOrdering(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if err := c.RecordParticipation(ctx, "slack", "C1", "alpha", false, 1, 10, day); err != nil {
		t.Fatalf("RecordParticipation failed: %v", err)
	}
	if err := c.RecordParticipation(ctx, "slack", "C2", "beta", false, 2, 10, day); err != nil {
		t.Fatalf("RecordParticipation failed: %v", err)
	}

	recs, err := c.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("List returned %d records, want 2", len(recs))
	}
}
