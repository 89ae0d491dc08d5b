// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package metrics provides Prometheus metrics for Lattice observability.
//
// Metrics are registered with the default registry via promauto and exposed
// at the /metrics endpoint in Prometheus text format. Covered areas:
//
//   - HTTP request latency, throughput and in-flight gauge
//   - Classification throughput, confidence and signal failures
//   - Ranking latency, candidate counts and recency fallbacks
//   - Taxonomy cache hit/miss rates
//   - Taste graph engagement writes
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Classification Metrics
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifications_total",
			Help: "Total post classifications produced",
		},
		[]string{"trigger"}, // "single", "batch", "event"
	)

	ClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classification_duration_seconds",
			Help:    "Duration of a single post classification",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	ClassificationConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classification_confidence",
			Help:    "Confidence of emitted classifications",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	SignalGeneratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_signal_failures_total",
			Help: "Signal generators that failed during classification (graceful degradation)",
		},
		[]string{"signal"},
	)

	BatchPostsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classification_batch_posts_total",
			Help: "Posts processed by batch classification jobs",
		},
	)

	// Ranking Metrics
	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rank_duration_seconds",
			Help:    "End-to-end feed ranking latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	RankCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rank_candidates",
			Help:    "Candidate posts per ranking request",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
		},
	)

	RankFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rank_recency_fallbacks_total",
			Help: "Ranking requests served by the recency fallback",
		},
		[]string{"reason"}, // "no_user", "no_candidates", "taste_graph_error", "breaker_open"
	)

	// Taxonomy Metrics
	TaxonomyCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxonomy_cache_hits_total",
			Help: "Taxonomy cache lookups served from memory",
		},
	)

	TaxonomyCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxonomy_cache_misses_total",
			Help: "Taxonomy cache lookups that missed",
		},
	)

	TaxonomyCacheRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taxonomy_cache_refreshes_total",
			Help: "Timed refreshes of the in-memory taxonomy snapshot",
		},
	)

	// Taste Graph Metrics
	EngagementsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastegraph_engagements_total",
			Help: "Engagements recorded into taste graphs",
		},
		[]string{"source"},
	)
)

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, endpoint, status string, seconds float64) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}
