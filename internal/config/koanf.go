// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lattice/config.yaml",
	"/etc/lattice/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	// Comma-separated env values for slice fields
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - RANK_DIVERSITY_WINDOW -> rank.diversity_window
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// API
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"rate_limit_requests":   "api.rate_limit_reqs",
		"rate_limit_window":     "api.rate_limit_window",
		"cors_origins":          "api.cors_origins",

		// Taxonomy
		"taxonomy_cache_refresh_interval": "taxonomy.cache_refresh_interval",
		"taxonomy_max_depth":              "taxonomy.max_depth",

		// Taste graph
		"tastegraph_inferred_decay": "tastegraph.inferred_decay_factor",
		"tastegraph_follow_decay":   "tastegraph.follow_decay_factor",
		"tastegraph_repeat_bump":    "tastegraph.repeat_bump",

		// Classification
		"classify_min_confidence":       "classify.min_confidence",
		"classify_batch_size":           "classify.batch_size",
		"classify_version":              "classify.version",
		"classify_similar_posts_limit":  "classify.similar_posts_limit",
		"classify_behavior_users_limit": "classify.behavior_users_limit",
		"classify_checkpoint_path":      "classify.checkpoint_path",

		// Ranking
		"rank_interest_weight":       "rank.weights.interest",
		"rank_content_weight":        "rank.weights.content",
		"rank_creator_weight":        "rank.weights.creator",
		"rank_freshness_weight":      "rank.weights.freshness",
		"rank_freshness_decay":       "rank.freshness_decay",
		"rank_max_engagement_rate":   "rank.max_engagement_rate",
		"rank_diversity_window":      "rank.diversity_window",
		"rank_top_interests":         "rank.top_interests",
		"rank_workers":               "rank.workers",
		"rank_taste_graph_timeout":   "rank.taste_graph_timeout",
		"rank_breaker_max_failures":  "rank.breaker_max_failures",
		"rank_breaker_timeout":       "rank.breaker_timeout",

		// Events
		"events_enabled":     "events.enabled",
		"nats_url":           "events.url",
		"events_topic":       "events.topic",
		"events_queue_group": "events.queue_group",
		"events_durable":     "events.durable_name",
		"events_subscribers": "events.subscribers_count",
		"events_ack_wait":    "events.ack_wait",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	// Unknown env vars are dropped rather than polluting the config tree.
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as plain strings from env vars.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		// Already a slice (from YAML): nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
