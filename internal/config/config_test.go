// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestDefaultRankWeightsSumToOne(t *testing.T) {
	cfg := defaultConfig()
	if sum := cfg.Rank.Weights.Sum(); sum != 1.0 {
		t.Errorf("default rank weights sum = %g, want 1.0", sum)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "negative decay factor",
			mutate:  func(c *Config) { c.TasteGraph.InferredDecayFactor = -0.01 },
			wantErr: "tastegraph.inferred_decay_factor",
		},
		{
			name:    "min confidence above one",
			mutate:  func(c *Config) { c.Classify.MinConfidence = 1.5 },
			wantErr: "classify.min_confidence",
		},
		{
			name:    "weights not summing to one",
			mutate:  func(c *Config) { c.Rank.Weights.Interest = 0.5 },
			wantErr: "rank.weights",
		},
		{
			name:    "zero diversity window",
			mutate:  func(c *Config) { c.Rank.DiversityWindow = 0 },
			wantErr: "rank.diversity_window",
		},
		{
			name:    "zero taste graph timeout",
			mutate:  func(c *Config) { c.Rank.TasteGraphTimeout = 0 },
			wantErr: "rank.taste_graph_timeout",
		},
		{
			name:    "max page size below default",
			mutate:  func(c *Config) { c.API.MaxPageSize = 5 },
			wantErr: "api.max_page_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not name field %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"LOG_LEVEL", "logging.level"},
		{"RANK_DIVERSITY_WINDOW", "rank.diversity_window"},
		{"TASTEGRAPH_INFERRED_DECAY", "tastegraph.inferred_decay_factor"},
		{"CLASSIFY_MIN_CONFIDENCE", "classify.min_confidence"},
		{"NATS_URL", "events.url"},
		{"SOME_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("DUCKDB_PATH", ":memory:")
	t.Setenv("RANK_DIVERSITY_WINDOW", "5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q, want :memory:", cfg.Database.Path)
	}
	if cfg.Rank.DiversityWindow != 5 {
		t.Errorf("Rank.DiversityWindow = %d, want 5", cfg.Rank.DiversityWindow)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[0] != "https://a.example" {
		t.Errorf("API.CORSOrigins = %v, want two trimmed origins", cfg.API.CORSOrigins)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 4242
tastegraph:
  repeat_bump: 0.1
rank:
  taste_graph_timeout: 750ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("Server.Port = %d, want 4242", cfg.Server.Port)
	}
	if cfg.TasteGraph.RepeatBump != 0.1 {
		t.Errorf("TasteGraph.RepeatBump = %g, want 0.1", cfg.TasteGraph.RepeatBump)
	}
	if cfg.Rank.TasteGraphTimeout != 750*time.Millisecond {
		t.Errorf("Rank.TasteGraphTimeout = %s, want 750ms", cfg.Rank.TasteGraphTimeout)
	}
	// Untouched sections keep defaults.
	if cfg.Rank.DiversityWindow != 3 {
		t.Errorf("Rank.DiversityWindow = %d, want default 3", cfg.Rank.DiversityWindow)
	}
}
