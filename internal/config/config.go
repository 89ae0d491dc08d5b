// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package config loads and validates Lattice configuration.
//
// Configuration is loaded via Koanf v2 with layered sources, highest
// priority last:
//
//  1. Built-in defaults (structs provider)
//  2. Optional YAML config file
//  3. Environment variables
//
// All durations accept Go duration strings ("30s", "5m", "24h").
package config

import "time"

// Config is the root configuration for the Lattice server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Logging    LoggingConfig    `koanf:"logging"`
	API        APIConfig        `koanf:"api"`
	Taxonomy   TaxonomyConfig   `koanf:"taxonomy"`
	TasteGraph TasteGraphConfig `koanf:"tastegraph"`
	Classify   ClassifyConfig   `koanf:"classify"`
	Rank       RankConfig       `koanf:"rank"`
	Events     EventsConfig     `koanf:"events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// Timeout is the per-request read/write timeout.
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path. ":memory:" opens an in-memory database.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// APIConfig holds HTTP API settings.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// TaxonomyConfig holds interest taxonomy settings.
type TaxonomyConfig struct {
	// CacheRefreshInterval is how often the in-memory taxonomy cache is
	// refreshed from storage. The taxonomy changes rarely, so minutes-scale
	// refresh is sufficient.
	CacheRefreshInterval time.Duration `koanf:"cache_refresh_interval"`

	// MaxDepth bounds the taxonomy tree depth. Ancestor-chain walks use
	// this as a hard limit.
	MaxDepth int `koanf:"max_depth"`
}

// TasteGraphConfig holds taste graph settings.
type TasteGraphConfig struct {
	// InferredDecayFactor is the per-day decay rate for affinities inferred
	// from saves, views, searches and creates. 0.01 decays a never-reinforced
	// affinity to ~37% of its base score after 100 days.
	InferredDecayFactor float64 `koanf:"inferred_decay_factor"`

	// FollowDecayFactor is the per-day decay rate for explicit follows.
	// Explicit intent decays slower than inferred signals.
	FollowDecayFactor float64 `koanf:"follow_decay_factor"`

	// RepeatBump is the score increment applied when an engagement arrives
	// for an interest the user already has an affinity with.
	RepeatBump float64 `koanf:"repeat_bump"`
}

// ClassifyConfig holds classification engine settings.
type ClassifyConfig struct {
	// MinConfidence discards aggregated classifications below this value.
	MinConfidence float64 `koanf:"min_confidence"`

	// BatchSize bounds how many posts a single ClassifyBatch call processes.
	BatchSize int `koanf:"batch_size"`

	// Version tags produced classifications so stale results can be detected.
	Version string `koanf:"version"`

	// SimilarPostsLimit caps how many similar posts the similar-posts signal
	// generator inspects per post.
	SimilarPostsLimit int `koanf:"similar_posts_limit"`

	// BehaviorUsersLimit caps how many co-engaging users the user-behavior
	// signal generator inspects per post.
	BehaviorUsersLimit int `koanf:"behavior_users_limit"`

	// CheckpointPath is the Badger directory for resumable batch cursors.
	CheckpointPath string `koanf:"checkpoint_path"`
}

// RankConfig holds feed ranking settings.
type RankConfig struct {
	// Weights blends the four sub-scores and must sum to 1.0.
	Weights RankWeights `koanf:"weights"`

	// FreshnessDecay is the hourly exponential decay rate for the freshness
	// sub-score. 0.03 gives a half-life of roughly 23 hours.
	FreshnessDecay float64 `koanf:"freshness_decay"`

	// MaxEngagementRate caps the weighted engagement rate before
	// normalization to [0,1].
	MaxEngagementRate float64 `koanf:"max_engagement_rate"`

	// DiversityWindow is the sliding window size W for the diversity pass:
	// no two posts sharing a primary interest appear within W positions in
	// the primary pass.
	DiversityWindow int `koanf:"diversity_window"`

	// TopInterests is how many taste-graph interests are fetched per request.
	TopInterests int `koanf:"top_interests"`

	// Workers bounds the per-post scoring fan-out. 0 = runtime.NumCPU().
	Workers int `koanf:"workers"`

	// TasteGraphTimeout bounds the taste-graph fetch; expiry triggers the
	// recency fallback instead of blocking the response.
	TasteGraphTimeout time.Duration `koanf:"taste_graph_timeout"`

	// BreakerMaxFailures is the consecutive-failure count that opens the
	// taste-graph circuit breaker.
	BreakerMaxFailures uint32 `koanf:"breaker_max_failures"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// RankWeights defines the contribution of each ranking sub-score.
type RankWeights struct {
	Interest  float64 `koanf:"interest"`
	Content   float64 `koanf:"content"`
	Creator   float64 `koanf:"creator"`
	Freshness float64 `koanf:"freshness"`
}

// Sum returns the total of all weights.
func (w RankWeights) Sum() float64 {
	return w.Interest + w.Content + w.Creator + w.Freshness
}

// EventsConfig holds NATS engagement-event ingestion settings.
type EventsConfig struct {
	// Enabled turns the event consumer on. Disabled by default; engagements
	// can always be recorded through the HTTP API.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server URL.
	URL string `koanf:"url"`

	// Topic is the engagement event subject.
	Topic string `koanf:"topic"`

	// QueueGroup load-balances consumption across instances.
	QueueGroup string `koanf:"queue_group"`

	// DurableName is the JetStream durable consumer prefix.
	DurableName string `koanf:"durable_name"`

	// SubscribersCount is the number of concurrent subscriptions.
	SubscribersCount int `koanf:"subscribers_count"`

	// AckWait is the JetStream ack timeout.
	AckWait time.Duration `koanf:"ack_wait"`

	// CloseTimeout bounds subscriber shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// defaultConfig returns a Config with all default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8470,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/lattice.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Taxonomy: TaxonomyConfig{
			CacheRefreshInterval: 5 * time.Minute,
			MaxDepth:             10,
		},
		TasteGraph: TasteGraphConfig{
			InferredDecayFactor: 0.01,
			FollowDecayFactor:   0.003,
			RepeatBump:          0.05,
		},
		Classify: ClassifyConfig{
			MinConfidence:      0.15,
			BatchSize:          200,
			Version:            "v1",
			SimilarPostsLimit:  25,
			BehaviorUsersLimit: 50,
			CheckpointPath:     "/data/lattice-checkpoints",
		},
		Rank: RankConfig{
			Weights: RankWeights{
				Interest:  0.40,
				Content:   0.30,
				Creator:   0.15,
				Freshness: 0.15,
			},
			FreshnessDecay:     0.03,
			MaxEngagementRate:  0.25,
			DiversityWindow:    3,
			TopInterests:       20,
			Workers:            0, // 0 = runtime.NumCPU()
			TasteGraphTimeout:  500 * time.Millisecond,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:          false, // opt-in only
			URL:              "nats://127.0.0.1:4222",
			Topic:            "engagement.recorded",
			QueueGroup:       "lattice",
			DurableName:      "lattice-engagements",
			SubscribersCount: 4,
			AckWait:          30 * time.Second,
			CloseTimeout:     30 * time.Second,
		},
	}
}
