package cli

import (
	"context"
	"time"

	"github.com/alfredlabs/alfred/internal/agent"
	"github.com/alfredlabs/alfred/internal/approval"
	"github.com/alfredlabs/alfred/internal/confidence"
	"github.com/alfredlabs/alfred/internal/config"
	"github.com/alfredlabs/alfred/internal/decision"
	"github.com/alfredlabs/alfred/internal/extract"
	"github.com/alfredlabs/alfred/internal/feedback"
	"github.com/alfredlabs/alfred/internal/ledger"
	"github.com/alfredlabs/alfred/internal/notify"
	"github.com/alfredlabs/alfred/internal/notion"
	"github.com/alfredlabs/alfred/internal/pattern"
	"github.com/alfredlabs/alfred/internal/sources"
	"github.com/alfredlabs/alfred/internal/threads"
)

// runtime wires the full decision pipeline from configuration. Everything
// hangs off the single ledger database; there is no package-level state.
type runtime struct {
	cfg        *config.Config
	ledger     *ledger.Service
	patterns   *pattern.Store
	model      *confidence.Model
	engine     *decision.Engine
	recorder   *feedback.Recorder
	classifier *threads.Classifier
	approvals  *approval.Manager
	coord      *agent.Coordinator
	provider   sources.Provider
	notifier   notify.Notifier
	kafka      *sources.KafkaSource
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, err
	}
	led, err := ledger.NewService(cfg.Paths.DBPath)
	if err != nil {
		return nil, err
	}

	weights := confidence.WeightsFor(confidence.Mode(cfg.Learning.Mode))
	if cfg.Learning.HeuristicWeight > 0 || cfg.Learning.LearnedWeight > 0 {
		weights.HeuristicWeight = cfg.Learning.HeuristicWeight
		weights.LearnedWeight = cfg.Learning.LearnedWeight
	}

	store := pattern.NewStore(led.DB(), weights)
	fingerprint := func(raw string) (string, error) {
		return pattern.FingerprintN(raw, cfg.Learning.FingerprintPrefixLen)
	}
	model := confidence.NewModelWithWeights(weights, store, fingerprint)
	engine := decision.NewEngine(decision.PolicyFor(decision.AutonomyLevel(cfg.Autonomy.Level)), led)
	recorder := feedback.NewRecorder(led.DB(), store)
	recorder.SetFingerprintFunc(fingerprint)
	classifier := threads.NewClassifier(led.DB())
	approvals := approval.NewManager(led, recorder)

	var extractor extract.Extractor
	if cfg.Extraction.Endpoint != "" {
		extractor = extract.NewRetrying(
			extract.NewHTTPExtractor(cfg.Extraction.Endpoint, cfg.Extraction.APIKey, cfg.Extraction.Model),
			cfg.Extraction.MaxAttempts, time.Second,
		)
	} else {
		extractor = extract.Func(func(ctx context.Context, prompt string) (*extract.Candidate, error) {
			return nil, extract.ErrExtractionUnavailable
		})
	}

	tasks := notion.NewClient(cfg.Notion.BaseURL, cfg.Notion.APIKey)

	calendarAgent := agent.NewCalendarAgent(model, tasks)
	calendarAgent.SetPrepWindow(time.Duration(cfg.Agents.PrepWindowHours)*time.Hour, cfg.Agents.PrepMinutes)

	agents := []agent.Agent{
		agent.NewCommunicationAgent(model, extractor, classifier, nil),
		agent.NewTaskAgent(model, tasks),
		calendarAgent,
		agent.NewFollowupAgent(model, extractor, tasks),
	}
	coord := agent.NewCoordinator(agents, engine, led, cfg.Agents.EvalTimeout)
	coord.SetFeedbackRecorder(recorder)

	rt := &runtime{
		cfg:        cfg,
		ledger:     led,
		patterns:   store,
		model:      model,
		engine:     engine,
		recorder:   recorder,
		classifier: classifier,
		approvals:  approvals,
		coord:      coord,
		notifier:   notify.Noop{},
	}

	if cfg.Sources.Kafka.Enabled {
		rt.kafka = sources.NewKafkaSource(
			cfg.Sources.Kafka.Brokers, cfg.Sources.Kafka.GroupID,
			cfg.Sources.Kafka.Topic, classifier,
		)
		rt.provider = rt.kafka
	} else {
		rt.provider = &sources.Static{}
	}

	if cfg.Notify.Slack.Enabled {
		sn, err := notify.NewSlackNotifier(
			cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, cfg.Notify.Slack.APIBase,
		)
		if err != nil {
			led.Close()
			return nil, err
		}
		rt.notifier = sn
	}

	return rt, nil
}

func (rt *runtime) Close() {
	if rt.kafka != nil {
		_ = rt.kafka.Close()
	}
	if rt.ledger != nil {
		_ = rt.ledger.Close()
	}
}
