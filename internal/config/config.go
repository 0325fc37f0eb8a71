// Package config provides configuration types and loading for alfred.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Learning, Autonomy, Agents, Extraction, Notion,
// Sources, Notify, Scheduler.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Learning   LearningConfig   `json:"learning"`
	Autonomy   AutonomyConfig   `json:"autonomy"`
	Agents     AgentsConfig     `json:"agents"`
	Extraction ExtractionConfig `json:"extraction"`
	Notion     NotionConfig     `json:"notion"`
	Sources    SourcesConfig    `json:"sources"`
	Notify     NotifyConfig     `json:"notify"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// LearningConfig controls how feedback is weighted into confidence.
type LearningConfig struct {
	Mode                 string  `json:"mode" envconfig:"MODE"` // explicit_only, implicit_only, hybrid
	HeuristicWeight      float64 `json:"heuristicWeight"`
	LearnedWeight        float64 `json:"learnedWeight"`
	FingerprintPrefixLen int     `json:"fingerprintPrefixLen"`
}

// AutonomyConfig controls when decisions execute without approval.
type AutonomyConfig struct {
	Level string `json:"level" envconfig:"LEVEL"` // conservative, moderate, aggressive
}

// AgentsConfig groups agent-loop settings.
type AgentsConfig struct {
	EvalTimeout     time.Duration `json:"evalTimeout"`
	PrepWindowHours int           `json:"prepWindowHours"`
	PrepMinutes     int           `json:"prepMinutes"`
}

// ExtractionConfig configures the LLM extraction boundary.
type ExtractionConfig struct {
	Endpoint    string `json:"endpoint" envconfig:"ENDPOINT"`
	APIKey      string `json:"apiKey" envconfig:"API_KEY"`
	Model       string `json:"model" envconfig:"MODEL"`
	MaxAttempts int    `json:"maxAttempts"`
}

// NotionConfig configures the task persistence boundary.
type NotionConfig struct {
	BaseURL string `json:"baseUrl" envconfig:"BASE_URL"`
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
}

// SourcesConfig configures where context snapshots come from.
type SourcesConfig struct {
	Kafka KafkaConfig `json:"kafka"`
}

// KafkaConfig configures the summary-stream consumer.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
	GroupID string `json:"groupId" envconfig:"GROUP_ID"`
}

// NotifyConfig configures approval-digest delivery.
type NotifyConfig struct {
	Slack SlackConfig `json:"slack"`
}

// SlackConfig configures the Slack digest channel.
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"ENABLED"`
	BotToken string `json:"botToken" envconfig:"BOT_TOKEN"`
	Channel  string `json:"channel" envconfig:"CHANNEL"`
	APIBase  string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// SchedulerConfig configures the background cycle scheduler.
type SchedulerConfig struct {
	Enabled      bool          `json:"enabled" envconfig:"ENABLED"`
	CycleCron    string        `json:"cycleCron" envconfig:"CYCLE_CRON"`
	DigestCron   string        `json:"digestCron" envconfig:"DIGEST_CRON"`
	TickInterval time.Duration `json:"tickInterval"`
	LockPath     string        `json:"lockPath"`
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".alfred")
	return &Config{
		Paths: PathsConfig{
			DataDir: dataDir,
			DBPath:  filepath.Join(dataDir, "alfred.db"),
		},
		Learning: LearningConfig{
			Mode:                 "hybrid",
			HeuristicWeight:      0.4,
			LearnedWeight:        0.6,
			FingerprintPrefixLen: 50,
		},
		Autonomy: AutonomyConfig{
			Level: "conservative",
		},
		Agents: AgentsConfig{
			EvalTimeout:     30 * time.Second,
			PrepWindowHours: 24,
			PrepMinutes:     30,
		},
		Extraction: ExtractionConfig{
			MaxAttempts: 3,
		},
		Sources: SourcesConfig{
			Kafka: KafkaConfig{
				Brokers: "localhost:9092",
				Topic:   "alfred.summaries",
				GroupID: "alfred",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			CycleCron:    "*/15 * * * *",
			DigestCron:   "0 8 * * *",
			TickInterval: 60 * time.Second,
			LockPath:     filepath.Join(dataDir, "scheduler.lock"),
		},
	}
}
