// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package rank

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/metrics"
	"github.com/latticesocial/lattice/internal/tastegraph"
)

// TasteSource supplies a user's strongest interests. *tastegraph.Service
// satisfies it.
type TasteSource interface {
	TopInterests(ctx context.Context, userID string, n int, asOf time.Time) ([]tastegraph.Affinity, error)
}

// Engine ranks candidate posts for one user. It is stateless per request;
// a single Engine is shared across all requests.
type Engine struct {
	taste   TasteSource
	cfg     config.RankConfig
	breaker *gobreaker.CircuitBreaker[[]tastegraph.Affinity]
	logger  zerolog.Logger
}

// NewEngine builds a ranking engine around a taste source. The circuit
// breaker guards the taste-graph fetch: while open, requests skip straight
// to the recency fallback instead of waiting out a failing store.
func NewEngine(taste TasteSource, cfg config.RankConfig, logger zerolog.Logger) *Engine {
	log := logger.With().Str("component", "rank").Logger()

	breaker := gobreaker.NewCircuitBreaker[[]tastegraph.Affinity](gobreaker.Settings{
		Name:    "taste-graph",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("taste graph circuit breaker state changed")
		},
	})

	return &Engine{
		taste:   taste,
		cfg:     cfg,
		breaker: breaker,
		logger:  log,
	}
}

// Rank orders candidates for the user as of now. See RankAt.
func (e *Engine) Rank(ctx context.Context, userID string, posts []Post) ([]Post, error) {
	return e.RankAt(ctx, userID, posts, time.Now().UTC())
}

// RankAt orders candidates as of a fixed instant, so identical inputs and
// asOf produce identical output. The result is always a permutation of the
// input; personalization failures degrade to recency ordering and never
// surface as errors.
func (e *Engine) RankAt(ctx context.Context, userID string, posts []Post, asOf time.Time) ([]Post, error) {
	start := time.Now()
	defer func() {
		metrics.RankDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.RankCandidates.Observe(float64(len(posts)))

	if len(posts) == 0 {
		metrics.RankFallbacks.WithLabelValues("no_candidates").Inc()
		return nil, nil
	}
	if userID == "" {
		metrics.RankFallbacks.WithLabelValues("no_user").Inc()
		return sortByRecency(posts), nil
	}

	affinities, ok := e.fetchAffinities(ctx, userID, asOf)
	if !ok {
		return sortByRecency(posts), nil
	}

	scored := e.scoreAll(ctx, posts, affinities, asOf)

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.scores.Composite != b.scores.Composite {
			return a.scores.Composite > b.scores.Composite
		}
		if !a.post.CreatedAt.Equal(b.post.CreatedAt) {
			return a.post.CreatedAt.After(b.post.CreatedAt)
		}
		return a.idx < b.idx
	})

	return diversify(scored, e.cfg.DiversityWindow), nil
}

// fetchAffinities loads the user's top interests through the breaker and a
// bounded timeout. ok=false means rank by recency instead.
func (e *Engine) fetchAffinities(ctx context.Context, userID string, asOf time.Time) (map[string]float64, bool) {
	fetchCtx := ctx
	if e.cfg.TasteGraphTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.cfg.TasteGraphTimeout)
		defer cancel()
	}

	top, err := e.breaker.Execute(func() ([]tastegraph.Affinity, error) {
		return e.taste.TopInterests(fetchCtx, userID, e.cfg.TopInterests, asOf)
	})
	if err != nil {
		reason := "taste_graph_error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "breaker_open"
		}
		metrics.RankFallbacks.WithLabelValues(reason).Inc()
		e.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("reason", reason).
			Msg("taste graph fetch failed, falling back to recency")
		return nil, false
	}

	affinities := make(map[string]float64, len(top))
	for i := range top {
		affinities[top[i].InterestID] = top[i].DecayedScore(asOf)
	}
	return affinities, true
}

// scoreAll fans per-post scoring across a bounded worker pool. Scoring is
// pure computation, so workers only read shared state.
func (e *Engine) scoreAll(ctx context.Context, posts []Post, affinities map[string]float64, asOf time.Time) []scoredPost {
	sc := &scorer{cfg: e.cfg, affinities: affinities}

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	scored := make([]scoredPost, len(posts))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range posts {
		g.Go(func() error {
			scored[i] = scoredPost{
				post:   posts[i],
				scores: sc.score(&posts[i], asOf),
				idx:    i,
			}
			return nil
		})
	}
	// Workers never return errors; Wait is a join point.
	_ = g.Wait()

	return scored
}

// sortByRecency is the fallback ordering: createdAt descending, input
// order as tiebreak.
func sortByRecency(posts []Post) []Post {
	out := append([]Post(nil), posts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
