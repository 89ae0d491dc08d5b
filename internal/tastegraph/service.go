// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package tastegraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/metrics"
)

// ErrUnavailable indicates the taste graph storage could not be reached.
// Consumers degrade gracefully (the ranking engine falls back to recency).
var ErrUnavailable = errors.New("taste graph unavailable")

// ErrInvalidSource indicates an unknown engagement source.
var ErrInvalidSource = errors.New("invalid engagement source")

// Repository is the persistence contract for taste graphs.
// Implemented by the database layer.
type Repository interface {
	// Graph returns the user's taste graph. Unknown users yield an empty
	// graph, not an error.
	Graph(ctx context.Context, userID string) (*TasteGraph, error)

	// UpsertAffinity writes one affinity and refreshes the graph's
	// LastUpdated timestamp.
	UpsertAffinity(ctx context.Context, userID string, a *Affinity) error
}

// Service maintains taste graphs and derives ranked top interests.
type Service struct {
	repo   Repository
	cfg    config.TasteGraphConfig
	logger zerolog.Logger
}

// NewService creates a taste graph service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(repo Repository, cfg config.TasteGraphConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("component", "tastegraph").Logger(),
	}
}

// Graph returns the user's taste graph, empty for unknown users.
func (s *Service) Graph(ctx context.Context, userID string) (*TasteGraph, error) {
	g, err := s.repo.Graph(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return g, nil
}

// RecordEngagement creates or reinforces an affinity.
//
// Blending rule: newScore = clamp(max(existing, weight) + repeatBump).
// The max keeps the score monotonically non-decreasing on repeated
// engagement; the bump rewards sustained interest without letting a flood
// of weak signals run away (each engagement adds at most RepeatBump).
func (s *Service) RecordEngagement(ctx context.Context, userID, interestID string, source Source, weight float64) error {
	if userID == "" {
		return errors.New("user id must not be empty")
	}
	if interestID == "" {
		return errors.New("interest id must not be empty")
	}
	if !source.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	weight = clamp01(weight)

	g, err := s.repo.Graph(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now().UTC()
	a, ok := g.Interests[interestID]
	if !ok {
		a = &Affinity{
			InterestID:      interestID,
			Score:           weight,
			Source:          source,
			EngagementCount: 1,
			FirstEngagement: now,
			LastEngagement:  now,
			DecayFactor:     s.decayFactorFor(source),
		}
	} else {
		a.Score = clamp01(max(a.Score, weight) + s.cfg.RepeatBump)
		a.EngagementCount++
		a.LastEngagement = now
		// An explicit follow upgrades the affinity's source and slows its
		// decay; inferred signals never downgrade an explicit follow.
		if source == SourceExplicitFollow && a.Source != SourceExplicitFollow {
			a.Source = SourceExplicitFollow
			a.DecayFactor = s.cfg.FollowDecayFactor
		}
	}

	if err := s.repo.UpsertAffinity(ctx, userID, a); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.EngagementsRecorded.WithLabelValues(string(source)).Inc()
	s.logger.Debug().
		Str("user_id", userID).
		Str("interest_id", interestID).
		Str("source", string(source)).
		Float64("score", a.Score).
		Msg("engagement recorded")
	return nil
}

// TopInterests returns up to n affinities ordered descending by decayed
// score at asOf. It is a pure function of stored state and asOf: calling it
// twice with the same arguments yields the same result and writes nothing.
func (s *Service) TopInterests(ctx context.Context, userID string, n int, asOf time.Time) ([]Affinity, error) {
	if n <= 0 {
		return nil, nil
	}

	g, err := s.repo.Graph(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]Affinity, 0, len(g.Interests))
	for _, a := range g.Interests {
		out = append(out, *a)
	}

	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DecayedScore(asOf), out[j].DecayedScore(asOf)
		if di != dj {
			return di > dj
		}
		// Deterministic tie-break for reproducible rankings.
		return out[i].InterestID < out[j].InterestID
	})

	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// decayFactorFor maps an engagement source to its decay rate.
func (s *Service) decayFactorFor(source Source) float64 {
	if source == SourceExplicitFollow {
		return s.cfg.FollowDecayFactor
	}
	return s.cfg.InferredDecayFactor
}
