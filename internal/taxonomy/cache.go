// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package taxonomy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/metrics"
)

// Cache holds an in-memory snapshot of the taxonomy for lock-free reads.
// The taxonomy changes rarely, so the snapshot is refreshed on a timer and
// after mutations rather than per request.
//
// Cache implements suture.Service; run it under the supervisor to get the
// timed refresh loop.
type Cache struct {
	repo     Repository
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.RWMutex
	byID     map[string]*Interest
	byTerm   map[string][]*Interest // lowercase name/keyword -> active interests
	loadedAt time.Time
}

// NewCache creates a taxonomy cache. Call Refresh (or start Serve) before
// first use; an unloaded cache misses every lookup.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCache(repo Repository, interval time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		repo:     repo,
		interval: interval,
		logger:   logger.With().Str("component", "taxonomy-cache").Logger(),
		byID:     make(map[string]*Interest),
		byTerm:   make(map[string][]*Interest),
	}
}

// Refresh reloads the snapshot from storage.
func (c *Cache) Refresh(ctx context.Context) error {
	all, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list interests: %w", err)
	}

	byID := make(map[string]*Interest, len(all))
	byTerm := make(map[string][]*Interest)
	for _, in := range all {
		byID[in.ID] = in
		if !in.Active {
			continue
		}
		terms := append([]string{in.Name}, in.Keywords...)
		for _, term := range terms {
			term = strings.ToLower(term)
			byTerm[term] = append(byTerm[term], in)
		}
	}

	c.mu.Lock()
	c.byID = byID
	c.byTerm = byTerm
	c.loadedAt = time.Now().UTC()
	c.mu.Unlock()

	metrics.TaxonomyCacheRefreshes.Inc()
	c.logger.Debug().Int("interests", len(all)).Msg("taxonomy snapshot refreshed")
	return nil
}

// Get returns the cached interest by ID.
func (c *Cache) Get(id string) (*Interest, bool) {
	c.mu.RLock()
	in, ok := c.byID[id]
	c.mu.RUnlock()

	if ok {
		metrics.TaxonomyCacheHits.Inc()
	} else {
		metrics.TaxonomyCacheMisses.Inc()
	}
	return in, ok
}

// Match returns the active interests whose name or keywords equal the given
// term (case-insensitive). Used by the classification engine as its target
// vocabulary.
func (c *Cache) Match(term string) []*Interest {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	c.mu.RLock()
	matches := c.byTerm[term]
	c.mu.RUnlock()

	if len(matches) > 0 {
		metrics.TaxonomyCacheHits.Inc()
	} else {
		metrics.TaxonomyCacheMisses.Inc()
	}
	return matches
}

// Snapshot returns all cached interests.
func (c *Cache) Snapshot() []*Interest {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Interest, 0, len(c.byID))
	for _, in := range c.byID {
		out = append(out, in)
	}
	return out
}

// LoadedAt returns when the snapshot was last refreshed.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Serve runs the timed refresh loop until the context is canceled.
// It satisfies suture.Service.
func (c *Cache) Serve(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("initial taxonomy refresh failed")
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("timed taxonomy refresh failed")
			}
		}
	}
}

// String names the service in supervisor logs.
func (c *Cache) String() string {
	return "taxonomy-cache"
}
