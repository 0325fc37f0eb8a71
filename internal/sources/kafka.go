package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alfredlabs/alfred/internal/agent"
)

// Envelope is the wire format of a summary message. Exactly one payload
// pointer is set, matching Kind.
type Envelope struct {
	Kind     string               `json:"kind"` // thread_summary, calendar_event, task
	Thread   *agent.ThreadSummary `json:"thread,omitempty"`
	Event    *agent.CalendarEvent `json:"event,omitempty"`
	Task     *agent.TaskSummary   `json:"task,omitempty"`
	SentAt   time.Time            `json:"sent_at"`
	SourceID string               `json:"source_id,omitempty"`
}

// ParticipationSink receives per-thread activity counts as summaries arrive.
type ParticipationSink interface {
	RecordParticipation(ctx context.Context, platform, threadID, threadName string, isGroup bool, userMessages, totalMessages int, day time.Time) error
}

// KafkaSource consumes summary envelopes from a topic and accumulates them
// into the latest known state per thread, event, and task. Snapshot reads
// that state without blocking on the broker.
type KafkaSource struct {
	reader *kafka.Reader
	sink   ParticipationSink

	mu      sync.Mutex
	threads map[string]agent.ThreadSummary // keyed platform/threadID
	events  map[string]agent.CalendarEvent // keyed title+start
	tasks   map[string]agent.TaskSummary   // keyed task ID
}

// NewKafkaSource creates a source reading from the given brokers and topic.
// Sink may be nil.
func NewKafkaSource(brokers, groupID, topic string, sink ParticipationSink) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  strings.Split(brokers, ","),
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		sink:    sink,
		threads: make(map[string]agent.ThreadSummary),
		events:  make(map[string]agent.CalendarEvent),
		tasks:   make(map[string]agent.TaskSummary),
	}
}

// Start consumes until the context is cancelled.
func (s *KafkaSource) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := s.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("kafka source: read error", "error", err)
				continue
			}
			s.ingest(ctx, msg.Value)
		}
	}()
}

func (s *KafkaSource) ingest(ctx context.Context, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("kafka source: malformed envelope", "error", err)
		return
	}
	switch env.Kind {
	case "thread_summary":
		if env.Thread == nil {
			return
		}
		t := *env.Thread
		s.mu.Lock()
		s.threads[t.Platform+"/"+t.ThreadID] = t
		s.mu.Unlock()
		if s.sink != nil {
			day := env.SentAt
			if day.IsZero() {
				day = time.Now()
			}
			if err := s.sink.RecordParticipation(ctx, t.Platform, t.ThreadID, t.ThreadName, t.IsGroup, t.UserMessages, t.TotalMessages, day); err != nil {
				slog.Warn("kafka source: record participation", "thread", t.ThreadID, "error", err)
			}
		}
	case "calendar_event":
		if env.Event == nil {
			return
		}
		e := *env.Event
		s.mu.Lock()
		s.events[e.Title+"@"+e.Start.UTC().Format(time.RFC3339)] = e
		s.mu.Unlock()
	case "task":
		if env.Task == nil {
			return
		}
		t := *env.Task
		s.mu.Lock()
		if t.Status == "done" || t.Status == "cancelled" {
			delete(s.tasks, t.ID)
		} else {
			s.tasks[t.ID] = t
		}
		s.mu.Unlock()
	default:
		slog.Debug("kafka source: unknown envelope kind", "kind", env.Kind)
	}
}

// Snapshot implements Provider. Past calendar events are dropped; a section
// with no accumulated state stays nil.
func (s *KafkaSource) Snapshot(ctx context.Context) (*agent.Snapshot, error) {
	now := time.Now()
	snap := &agent.Snapshot{GeneratedAt: now}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.threads) > 0 {
		ms := &agent.MessagingSummary{}
		for _, t := range s.threads {
			ms.Threads = append(ms.Threads, t)
		}
		snap.MessagingSummary = ms
	}
	var upcoming []agent.CalendarEvent
	for key, e := range s.events {
		if e.End.Before(now) {
			delete(s.events, key)
			continue
		}
		upcoming = append(upcoming, e)
	}
	if len(upcoming) > 0 {
		snap.CalendarBriefing = &agent.CalendarBriefing{Events: upcoming}
	}
	if len(s.tasks) > 0 {
		nc := &agent.NotionContext{}
		for _, t := range s.tasks {
			nc.OpenTasks = append(nc.OpenTasks, t)
		}
		snap.NotionContext = nc
	}
	return snap, nil
}

// Close stops the underlying reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
