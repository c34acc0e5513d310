// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all engine configuration knobs loaded via Viper.
// It is built once at process start and threaded by parameter into the
// orchestrator, crawler, and executors; nothing reads the environment
// after Load returns.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Automation AutomationConfig `mapstructure:"automation"`
	Sender     SenderConfig     `mapstructure:"sender"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig bounds a single-target site crawl.
type CrawlerConfig struct {
	MaxPages       int    `mapstructure:"max_pages"`
	MaxLinks       int    `mapstructure:"max_links"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	FetchTimeoutMs int    `mapstructure:"fetch_timeout_ms"`
	UserAgent      string `mapstructure:"user_agent"`
}

// PipelineConfig governs orchestrator and task-retry behavior.
type PipelineConfig struct {
	MaxTaskAttempts       int     `mapstructure:"max_task_attempts"`
	MaxSubmissionAttempts int     `mapstructure:"max_submission_attempts"`
	QualifyThreshold      float64 `mapstructure:"qualify_threshold"`
	Workspace             string  `mapstructure:"workspace"`
}

// AutomationConfig controls the browser automation tier.
type AutomationConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	FinalSubmitClick  bool `mapstructure:"final_submit_click"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
	SettleMs          int  `mapstructure:"settle_ms"`
}

// SenderConfig describes the party submissions are prepared for.
type SenderConfig struct {
	ContactName    string `mapstructure:"contact_name"`
	ContactEmail   string `mapstructure:"contact_email"`
	ContactPhone   string `mapstructure:"contact_phone"`
	CompanyName    string `mapstructure:"company_name"`
	CompanyWebsite string `mapstructure:"company_website"`
	CompanySummary string `mapstructure:"company_summary"`
	DeckURL        string `mapstructure:"deck_url"`
	DataRoomURL    string `mapstructure:"data_room_url"`
	Round          string `mapstructure:"round"`
	ProfileText    string `mapstructure:"profile_text"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StorageConfig selects where submission evidence is written.
type StorageConfig struct {
	EvidenceDir string `mapstructure:"evidence_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.clamp()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("crawler.max_pages", 6)
	v.SetDefault("crawler.max_links", 12)
	v.SetDefault("crawler.max_body_bytes", 512*1024)
	v.SetDefault("crawler.fetch_timeout_ms", 5500)
	v.SetDefault("crawler.user_agent", "outreach-bot/0.1")
	v.SetDefault("pipeline.max_task_attempts", 2)
	v.SetDefault("pipeline.max_submission_attempts", 3)
	v.SetDefault("pipeline.qualify_threshold", 0.55)
	v.SetDefault("pipeline.workspace", "default")
	v.SetDefault("automation.enabled", false)
	v.SetDefault("automation.final_submit_click", false)
	v.SetDefault("automation.nav_timeout_seconds", 25)
	v.SetDefault("automation.settle_ms", 2000)
	v.SetDefault("sender.round", "Seed")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.evidence_dir", "evidence")
	v.SetDefault("storage.prefix", "screenshots")
}

// clamp raises out-of-range values to their sane minimums rather than
// rejecting them.
func (c *Config) clamp() {
	if c.Pipeline.MaxTaskAttempts < 1 {
		c.Pipeline.MaxTaskAttempts = 1
	}
	if c.Pipeline.MaxSubmissionAttempts < 1 {
		c.Pipeline.MaxSubmissionAttempts = 1
	}
	if c.Crawler.MaxPages < 1 {
		c.Crawler.MaxPages = 1
	}
	if c.Crawler.MaxLinks < 0 {
		c.Crawler.MaxLinks = 0
	}
	if c.Crawler.MaxBodyBytes < 1024 {
		c.Crawler.MaxBodyBytes = 1024
	}
	if c.Crawler.FetchTimeoutMs < 100 {
		c.Crawler.FetchTimeoutMs = 100
	}
	if c.Automation.NavTimeoutSeconds < 1 {
		c.Automation.NavTimeoutSeconds = 1
	}
	if c.Automation.SettleMs < 0 {
		c.Automation.SettleMs = 0
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Pipeline.QualifyThreshold < 0 || c.Pipeline.QualifyThreshold > 1 {
		return fmt.Errorf("pipeline.qualify_threshold must be in [0,1]")
	}
	if c.Storage.GCSBucket != "" && c.Storage.Prefix == "" {
		return fmt.Errorf("storage.prefix must be set when storage.gcs_bucket is set")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a Duration.
func (c CrawlerConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// NavTimeout converts the configured navigation timeout into a Duration.
func (c AutomationConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// Settle converts the post-click settle interval into a Duration.
func (c AutomationConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}
