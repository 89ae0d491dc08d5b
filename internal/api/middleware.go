// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/logging"
	"github.com/latticesocial/lattice/internal/metrics"
)

// Middleware builds the Chi middleware stack from API configuration.
type Middleware struct {
	cfg  config.APIConfig
	cors func(http.Handler) http.Handler
}

// NewMiddleware creates the middleware factory. CORS origins default to
// empty, requiring explicit configuration.
func NewMiddleware(cfg config.APIConfig) *Middleware {
	return &Middleware{
		cfg: cfg,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         86400,
		}),
	}
}

// CORS returns the go-chi/cors handler. Applied globally so OPTIONS
// preflight requests are answered on every route.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return m.rateLimit(m.cfg.RateLimitReqs, m.cfg.RateLimitWindow)
}

// RateLimitWrite returns a tighter limiter for batch and seed operations.
// These hold database transactions open and should not be floodable.
func (m *Middleware) RateLimitWrite() func(http.Handler) http.Handler {
	return m.rateLimit(10, time.Minute)
}

// RateLimitFeed returns a permissive limiter for the feed ranking endpoint.
// Every client scroll hits it, so the default limit would starve real use.
func (m *Middleware) RateLimitFeed() func(http.Handler) http.Handler {
	return m.rateLimit(1000, time.Minute)
}

func (m *Middleware) rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// RequestIDWithLogging adds an X-Request-ID header and threads the ID
// through the logging context for request tracing.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders adds standard security headers to API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// PrometheusMetrics records request counts and latency per route pattern.
// Registered after Chi's routing context so the pattern, not the raw path,
// labels the metric (bounded cardinality).
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			metrics.RecordHTTPRequest(r.Method, routePattern(r),
				strconv.Itoa(ww.Status()), time.Since(start).Seconds())
		})
	}
}

// routePattern returns the matched Chi pattern, falling back to the raw
// path for unmatched requests.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
