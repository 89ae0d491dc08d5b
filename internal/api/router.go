// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full route tree.
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(SecurityHeaders())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
		r.Get("/", h.Health)
	})

	r.Route("/api/v1/taxonomy", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(PrometheusMetrics())

		r.Get("/interests", h.TaxonomyList)
		r.Get("/interests/{id}", h.TaxonomyGet)
		r.Get("/tree", h.TaxonomyTree)

		r.Post("/interests", h.TaxonomyCreate)
		r.Put("/interests/{id}", h.TaxonomyUpdate)
		r.Delete("/interests/{id}", h.TaxonomyDeactivate)
		r.Post("/interests/{id}/recalculate", h.TaxonomyRecalculate)

		r.With(mw.RateLimitWrite()).Post("/seed", h.TaxonomySeed)
	})

	r.Route("/api/v1/classify", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(PrometheusMetrics())

		r.Get("/posts/{id}", h.GetClassification)
		r.Post("/posts/{id}", h.ClassifyPost)
		r.Get("/analytics", h.ClassifyAnalytics)

		// Batch runs hold the scan cursor and database transactions open.
		r.With(mw.RateLimitWrite()).Post("/batch", h.ClassifyBatch)
	})

	r.Route("/api/v1/tastegraph", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(PrometheusMetrics())

		r.Get("/{userID}", h.TasteGraphGet)
		r.Get("/{userID}/top", h.TasteGraphTop)
		r.Post("/engagements", h.RecordEngagement)
	})

	r.Route("/api/v1/feed", func(r chi.Router) {
		r.Use(mw.RateLimitFeed())
		r.Use(PrometheusMetrics())

		r.Post("/rank", h.RankFeed)
	})

	return r
}
