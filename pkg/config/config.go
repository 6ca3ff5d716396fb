package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chainvibe/chainvibe/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:chainvibe.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Source fetching configuration"`

	Dedup struct {
		Threshold float64 `yaml:"threshold" json:"threshold" jsonschema:"default=0.75,minimum=0,maximum=1,description=Similarity threshold for merging articles"`
	} `yaml:"dedup" json:"dedup" jsonschema:"description=Deduplication configuration"`

	Scoring ScoringConfig `yaml:"scoring" json:"scoring" jsonschema:"description=Relevance scoring configuration"`

	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" jsonschema:"description=Pipeline configuration"`

	Sources []Source `yaml:"sources" json:"sources" jsonschema:"description=News source registry"`
}

// Source describes a configured feed or API endpoint
type Source struct {
	Name     string `yaml:"name" json:"name" jsonschema:"required,description=Source name"`
	URL      string `yaml:"url" json:"url" jsonschema:"required,description=Feed or API endpoint URL"`
	Format   string `yaml:"format" json:"format" jsonschema:"default=rss,enum=rss,enum=atom,enum=json-api,description=Payload format"`
	Category string `yaml:"category" json:"category" jsonschema:"default=general,description=Default category for items from this source"`
	Priority int    `yaml:"priority" json:"priority" jsonschema:"default=4,minimum=1,description=Source authority rank (lower is more authoritative)"`
	Enabled  *bool  `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Whether the source participates in fetching"`
}

// FetchConfig holds source fetching settings
type FetchConfig struct {
	Timeout         time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Per-request timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"default=5,description=Maximum concurrent source fetches"`
	PerSourceLimit  int           `yaml:"per_source_limit" json:"per_source_limit" jsonschema:"default=30,description=Maximum items taken from one source per batch"`
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval" jsonschema:"default=5m,description=Background batch refresh interval"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=ChainVibe/1.0,description=User agent for HTTP requests"`
}

// PipelineConfig holds orchestration limits
type PipelineConfig struct {
	Deadline     time.Duration `yaml:"deadline" json:"deadline" jsonschema:"default=30s,description=Overall pipeline deadline per refresh"`
	DefaultLimit int           `yaml:"default_limit" json:"default_limit" jsonschema:"default=20,description=Default number of articles returned"`
	MaxLimit     int           `yaml:"max_limit" json:"max_limit" jsonschema:"default=100,description=Hard cap on articles returned per request"`
}

// ScoringConfig holds relevance scoring weights. Weights must sum to 1.0;
// the shipped values are product defaults, treated as configuration rather
// than tuning targets.
type ScoringConfig struct {
	Weights struct {
		ContentSimilarity    float64 `yaml:"content_similarity" json:"content_similarity" jsonschema:"default=0.30"`
		EntityMatch          float64 `yaml:"entity_match" json:"entity_match" jsonschema:"default=0.25"`
		SentimentAlignment   float64 `yaml:"sentiment_alignment" json:"sentiment_alignment" jsonschema:"default=0.15"`
		SourcePreference     float64 `yaml:"source_preference" json:"source_preference" jsonschema:"default=0.10"`
		Recency              float64 `yaml:"recency" json:"recency" jsonschema:"default=0.10"`
		EngagementPrediction float64 `yaml:"engagement_prediction" json:"engagement_prediction" jsonschema:"default=0.10"`
	} `yaml:"weights" json:"weights" jsonschema:"description=Factor weights for profile-based scoring"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// setDefaults fills in zero values with product defaults
func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:chainvibe.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 10 * time.Second
	}
	if c.Fetch.MaxConcurrent == 0 {
		c.Fetch.MaxConcurrent = 5
	}
	if c.Fetch.PerSourceLimit == 0 {
		c.Fetch.PerSourceLimit = 30
	}
	if c.Fetch.RefreshInterval == 0 {
		c.Fetch.RefreshInterval = 5 * time.Minute
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "ChainVibe/1.0"
	}

	if c.Dedup.Threshold == 0 {
		c.Dedup.Threshold = 0.75
	}

	w := &c.Scoring.Weights
	if w.ContentSimilarity == 0 && w.EntityMatch == 0 && w.SentimentAlignment == 0 &&
		w.SourcePreference == 0 && w.Recency == 0 && w.EngagementPrediction == 0 {
		w.ContentSimilarity = 0.30
		w.EntityMatch = 0.25
		w.SentimentAlignment = 0.15
		w.SourcePreference = 0.10
		w.Recency = 0.10
		w.EngagementPrediction = 0.10
	}

	if c.Pipeline.Deadline == 0 {
		c.Pipeline.Deadline = 30 * time.Second
	}
	if c.Pipeline.DefaultLimit == 0 {
		c.Pipeline.DefaultLimit = 20
	}
	if c.Pipeline.MaxLimit == 0 {
		c.Pipeline.MaxLimit = 100
	}

	for i := range c.Sources {
		if c.Sources[i].Format == "" {
			c.Sources[i].Format = string(domain.FormatRSS)
		}
		if c.Sources[i].Category == "" {
			c.Sources[i].Category = "general"
		}
		if c.Sources[i].Priority == 0 {
			c.Sources[i].Priority = 4
		}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Fetch.Timeout < 100*time.Millisecond {
		return fmt.Errorf("fetch.timeout must be at least 100ms")
	}
	if cfg.Fetch.MaxConcurrent < 1 {
		return fmt.Errorf("fetch.max_concurrent must be at least 1")
	}

	if cfg.Dedup.Threshold <= 0 || cfg.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold must be in (0, 1]")
	}

	w := cfg.Scoring.Weights
	sum := w.ContentSimilarity + w.EntityMatch + w.SentimentAlignment +
		w.SourcePreference + w.Recency + w.EngagementPrediction
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("scoring.weights must sum to 1.0, got %.3f", sum)
	}

	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	seen := map[string]bool{}
	for _, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source name is required")
		}
		if s.URL == "" {
			return fmt.Errorf("source %s: url is required", s.Name)
		}
		switch domain.SourceFormat(s.Format) {
		case domain.FormatRSS, domain.FormatAtom, domain.FormatJSONAPI:
		default:
			return fmt.Errorf("source %s: unknown format %q", s.Name, s.Format)
		}
		if s.Priority < 1 {
			return fmt.Errorf("source %s: priority must be at least 1", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFetchConfig returns source fetching configuration
func (c *Config) GetFetchConfig() FetchConfig {
	return c.Fetch
}

// GetSources returns the configured source registry as domain descriptors
func (c *Config) GetSources() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		enabled := true
		if s.Enabled != nil {
			enabled = *s.Enabled
		}
		sources = append(sources, domain.Source{
			Name:     s.Name,
			URL:      s.URL,
			Format:   domain.SourceFormat(s.Format),
			Category: s.Category,
			Priority: s.Priority,
			Enabled:  enabled,
		})
	}
	return sources
}
