// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/classify"
	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/rank"
	"github.com/latticesocial/lattice/internal/tastegraph"
	"github.com/latticesocial/lattice/internal/taxonomy"
)

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the services behind the HTTP endpoints.
type Handler struct {
	cfg      config.APIConfig
	store    *taxonomy.Store
	cache    *taxonomy.Cache
	taste    *tastegraph.Service
	engine   *classify.Engine
	ranker   *rank.Engine
	db       Pinger
	validate *validator.Validate
	logger   zerolog.Logger
	started  time.Time
}

// NewHandler wires the services into a handler set.
func NewHandler(cfg config.APIConfig, store *taxonomy.Store, cache *taxonomy.Cache,
	taste *tastegraph.Service, engine *classify.Engine, ranker *rank.Engine,
	db Pinger, logger zerolog.Logger,
) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		taste:    taste,
		engine:   engine,
		ranker:   ranker,
		db:       db,
		validate: newValidator(),
		logger:   logger.With().Str("component", "api").Logger(),
		started:  time.Now(),
	}
}

// HealthLive handles GET /health/live. Always 200 while the process runs.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /health/ready. Verifies storage connectivity and
// that the taxonomy cache has loaded at least once.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Readiness check failed: database unreachable")
		rw.ServiceUnavailable("database unreachable")
		return
	}
	if h.cache.LoadedAt().IsZero() {
		rw.ServiceUnavailable("taxonomy cache not loaded")
		return
	}

	rw.Success(map[string]string{"status": "ready"})
}

// Health handles GET /health with uptime and cache age.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	loadedAt := h.cache.LoadedAt()
	cacheAge := ""
	if !loadedAt.IsZero() {
		cacheAge = time.Since(loadedAt).Round(time.Second).String()
	}

	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":             "ok",
		"uptime":             time.Since(h.started).Round(time.Second).String(),
		"taxonomy_cache_age": cacheAge,
		"interests_cached":   len(h.cache.Snapshot()),
	})
}
