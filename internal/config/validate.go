// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package config

import (
	"fmt"
	"math"
)

// weightSumTolerance is the allowed floating-point drift when checking
// that ranking weights sum to 1.0.
const weightSumTolerance = 1e-9

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first error found, naming the offending field.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout: must be positive, got %s", c.Server.Timeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path: must not be empty")
	}
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("api.default_page_size: must be at least 1, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size: must be >= default_page_size (%d), got %d",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.Taxonomy.MaxDepth < 1 {
		return fmt.Errorf("taxonomy.max_depth: must be at least 1, got %d", c.Taxonomy.MaxDepth)
	}
	if c.Taxonomy.CacheRefreshInterval <= 0 {
		return fmt.Errorf("taxonomy.cache_refresh_interval: must be positive, got %s",
			c.Taxonomy.CacheRefreshInterval)
	}

	if err := c.validateTasteGraph(); err != nil {
		return err
	}
	if err := c.validateClassify(); err != nil {
		return err
	}
	return c.validateRank()
}

func (c *Config) validateTasteGraph() error {
	if c.TasteGraph.InferredDecayFactor <= 0 {
		return fmt.Errorf("tastegraph.inferred_decay_factor: must be positive, got %g",
			c.TasteGraph.InferredDecayFactor)
	}
	if c.TasteGraph.FollowDecayFactor <= 0 {
		return fmt.Errorf("tastegraph.follow_decay_factor: must be positive, got %g",
			c.TasteGraph.FollowDecayFactor)
	}
	if c.TasteGraph.RepeatBump < 0 || c.TasteGraph.RepeatBump > 1 {
		return fmt.Errorf("tastegraph.repeat_bump: must be in [0,1], got %g",
			c.TasteGraph.RepeatBump)
	}
	return nil
}

func (c *Config) validateClassify() error {
	if c.Classify.MinConfidence < 0 || c.Classify.MinConfidence > 1 {
		return fmt.Errorf("classify.min_confidence: must be in [0,1], got %g",
			c.Classify.MinConfidence)
	}
	if c.Classify.BatchSize < 1 {
		return fmt.Errorf("classify.batch_size: must be at least 1, got %d", c.Classify.BatchSize)
	}
	if c.Classify.Version == "" {
		return fmt.Errorf("classify.version: must not be empty")
	}
	return nil
}

func (c *Config) validateRank() error {
	w := c.Rank.Weights
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"rank.weights.interest", w.Interest},
		{"rank.weights.content", w.Content},
		{"rank.weights.creator", w.Creator},
		{"rank.weights.freshness", w.Freshness},
	} {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%s: must be in [0,1], got %g", f.name, f.value)
		}
	}
	if diff := math.Abs(w.Sum() - 1.0); diff > weightSumTolerance {
		return fmt.Errorf("rank.weights: must sum to 1.0, got %g", w.Sum())
	}
	if c.Rank.FreshnessDecay <= 0 {
		return fmt.Errorf("rank.freshness_decay: must be positive, got %g", c.Rank.FreshnessDecay)
	}
	if c.Rank.MaxEngagementRate <= 0 {
		return fmt.Errorf("rank.max_engagement_rate: must be positive, got %g",
			c.Rank.MaxEngagementRate)
	}
	if c.Rank.DiversityWindow < 1 {
		return fmt.Errorf("rank.diversity_window: must be at least 1, got %d",
			c.Rank.DiversityWindow)
	}
	if c.Rank.TopInterests < 1 {
		return fmt.Errorf("rank.top_interests: must be at least 1, got %d", c.Rank.TopInterests)
	}
	if c.Rank.Workers < 0 {
		return fmt.Errorf("rank.workers: must be >= 0, got %d", c.Rank.Workers)
	}
	if c.Rank.TasteGraphTimeout <= 0 {
		return fmt.Errorf("rank.taste_graph_timeout: must be positive, got %s",
			c.Rank.TasteGraphTimeout)
	}
	return nil
}
