// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package tastegraph

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/config"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu     sync.Mutex
	graphs map[string]*TasteGraph
	err    error
}

func newMemRepo() *memRepo {
	return &memRepo{graphs: make(map[string]*TasteGraph)}
}

func (r *memRepo) Graph(_ context.Context, userID string) (*TasteGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	g, ok := r.graphs[userID]
	if !ok {
		return NewTasteGraph(userID), nil
	}
	// Copy so callers can't mutate stored state.
	cp := NewTasteGraph(userID)
	cp.LastUpdated = g.LastUpdated
	for id, a := range g.Interests {
		ac := *a
		cp.Interests[id] = &ac
	}
	return cp, nil
}

func (r *memRepo) UpsertAffinity(_ context.Context, userID string, a *Affinity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	g, ok := r.graphs[userID]
	if !ok {
		g = NewTasteGraph(userID)
		r.graphs[userID] = g
	}
	ac := *a
	g.Interests[a.InterestID] = &ac
	g.LastUpdated = time.Now().UTC()
	return nil
}

func testService(repo Repository) *Service {
	return NewService(repo, config.TasteGraphConfig{
		InferredDecayFactor: 0.01,
		FollowDecayFactor:   0.003,
		RepeatBump:          0.05,
	}, zerolog.Nop())
}

func TestDecayedScoreProperties(t *testing.T) {
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Affinity{InterestID: "x", Score: 0.8, DecayFactor: 0.01, LastEngagement: last}

	t.Run("never exceeds base score", func(t *testing.T) {
		for _, days := range []float64{0, 1, 10, 100, 10000} {
			asOf := last.Add(time.Duration(days*24) * time.Hour)
			if got := a.DecayedScore(asOf); got > a.Score {
				t.Errorf("decayed(%g days) = %g > base %g", days, got, a.Score)
			}
		}
	})

	t.Run("strictly decreasing with elapsed time", func(t *testing.T) {
		prev := a.DecayedScore(last)
		for days := 1.0; days <= 512; days *= 2 {
			asOf := last.Add(time.Duration(days*24) * time.Hour)
			got := a.DecayedScore(asOf)
			if got >= prev {
				t.Errorf("decayed(%g days) = %g, not below %g", days, got, prev)
			}
			prev = got
		}
	})

	t.Run("approaches zero", func(t *testing.T) {
		asOf := last.Add(20000 * 24 * time.Hour)
		if got := a.DecayedScore(asOf); got > 1e-6 {
			t.Errorf("decayed after 20000 days = %g, want ~0", got)
		}
	})

	t.Run("future last engagement does not inflate", func(t *testing.T) {
		if got := a.DecayedScore(last.Add(-time.Hour)); got != a.Score {
			t.Errorf("decayed before last engagement = %g, want base %g", got, a.Score)
		}
	})
}

func TestTopInterestsDecayScenario(t *testing.T) {
	// fashion: 0.8 engaged 10 days ago -> 0.8*e^-0.1 ~= 0.724
	// travel:  0.3 engaged 100 days ago -> 0.3*e^-1 ~= 0.110
	asOf := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	repo.graphs["u1"] = &TasteGraph{
		UserID: "u1",
		Interests: map[string]*Affinity{
			"fashion": {InterestID: "fashion", Score: 0.8, DecayFactor: 0.01,
				LastEngagement: asOf.Add(-10 * 24 * time.Hour)},
			"travel": {InterestID: "travel", Score: 0.3, DecayFactor: 0.01,
				LastEngagement: asOf.Add(-100 * 24 * time.Hour)},
		},
		Version: SchemaVersion,
	}

	svc := testService(repo)
	top, err := svc.TopInterests(context.Background(), "u1", 2, asOf)
	if err != nil {
		t.Fatalf("TopInterests: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	if top[0].InterestID != "fashion" {
		t.Errorf("top interest = %q, want fashion", top[0].InterestID)
	}

	if got := top[0].DecayedScore(asOf); math.Abs(got-0.724) > 0.001 {
		t.Errorf("fashion decayed = %g, want ~0.724", got)
	}
	if got := top[1].DecayedScore(asOf); math.Abs(got-0.110) > 0.001 {
		t.Errorf("travel decayed = %g, want ~0.110", got)
	}
}

func TestTopInterestsIsPure(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := svc.RecordEngagement(ctx, "u1", id, SourceSave, 0.5); err != nil {
			t.Fatal(err)
		}
	}

	asOf := time.Now().UTC().Add(24 * time.Hour)
	first, err := svc.TopInterests(ctx, "u1", 3, asOf)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.TopInterests(ctx, "u1", 3, asOf)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("repeated call changed result size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].InterestID != second[i].InterestID ||
			first[i].DecayedScore(asOf) != second[i].DecayedScore(asOf) {
			t.Errorf("repeated call not idempotent at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestGraphForUnknownUserIsEmpty(t *testing.T) {
	svc := testService(newMemRepo())

	g, err := svc.Graph(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(g.Interests) != 0 {
		t.Errorf("unknown user graph has %d interests, want 0", len(g.Interests))
	}
	if g.Version != SchemaVersion {
		t.Errorf("graph version = %d, want %d", g.Version, SchemaVersion)
	}
}

func TestRecordEngagementCreatesAffinity(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo)
	ctx := context.Background()

	if err := svc.RecordEngagement(ctx, "u1", "fashion", SourceView, 0.4); err != nil {
		t.Fatalf("RecordEngagement: %v", err)
	}

	g, _ := svc.Graph(ctx, "u1")
	a := g.Interests["fashion"]
	if a == nil {
		t.Fatal("affinity not created")
	}
	if a.Score != 0.4 {
		t.Errorf("score = %g, want 0.4", a.Score)
	}
	if a.EngagementCount != 1 {
		t.Errorf("engagement count = %d, want 1", a.EngagementCount)
	}
	if a.DecayFactor != 0.01 {
		t.Errorf("inferred decay factor = %g, want 0.01", a.DecayFactor)
	}
	if a.FirstEngagement.IsZero() || a.LastEngagement.IsZero() {
		t.Error("engagement timestamps not set")
	}
}

func TestRepeatEngagementIsMonotonic(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo)
	ctx := context.Background()

	weights := []float64{0.5, 0.2, 0.7, 0.1, 0.9, 0.0}
	prev := 0.0
	for _, w := range weights {
		if err := svc.RecordEngagement(ctx, "u1", "food", SourceSave, w); err != nil {
			t.Fatal(err)
		}
		g, _ := svc.Graph(ctx, "u1")
		score := g.Interests["food"].Score
		if score < prev {
			t.Errorf("score decreased on engagement: %g -> %g (weight %g)", prev, score, w)
		}
		if score > 1 {
			t.Errorf("score exceeded 1: %g", score)
		}
		prev = score
	}

	g, _ := svc.Graph(ctx, "u1")
	if got := g.Interests["food"].EngagementCount; got != int64(len(weights)) {
		t.Errorf("engagement count = %d, want %d", got, len(weights))
	}
}

func TestExplicitFollowSlowsDecay(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo)
	ctx := context.Background()

	if err := svc.RecordEngagement(ctx, "u1", "art", SourceView, 0.3); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordEngagement(ctx, "u1", "art", SourceExplicitFollow, 0.8); err != nil {
		t.Fatal(err)
	}

	g, _ := svc.Graph(ctx, "u1")
	a := g.Interests["art"]
	if a.Source != SourceExplicitFollow {
		t.Errorf("source = %q, want explicit_follow", a.Source)
	}
	if a.DecayFactor != 0.003 {
		t.Errorf("decay factor = %g, want follow rate 0.003", a.DecayFactor)
	}

	// An inferred signal afterwards must not downgrade the follow.
	if err := svc.RecordEngagement(ctx, "u1", "art", SourceView, 0.1); err != nil {
		t.Fatal(err)
	}
	g, _ = svc.Graph(ctx, "u1")
	if g.Interests["art"].DecayFactor != 0.003 {
		t.Error("inferred engagement downgraded follow decay factor")
	}
}

func TestRecordEngagementValidation(t *testing.T) {
	svc := testService(newMemRepo())
	ctx := context.Background()

	if err := svc.RecordEngagement(ctx, "", "x", SourceView, 0.5); err == nil {
		t.Error("empty user id accepted")
	}
	if err := svc.RecordEngagement(ctx, "u", "", SourceView, 0.5); err == nil {
		t.Error("empty interest id accepted")
	}
	err := svc.RecordEngagement(ctx, "u", "x", Source("bogus"), 0.5)
	if !errors.Is(err, ErrInvalidSource) {
		t.Errorf("err = %v, want ErrInvalidSource", err)
	}
}

func TestStorageErrorsWrapUnavailable(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("connection refused")
	svc := testService(repo)
	ctx := context.Background()

	if _, err := svc.Graph(ctx, "u1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Graph err = %v, want ErrUnavailable", err)
	}
	if _, err := svc.TopInterests(ctx, "u1", 5, time.Now()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("TopInterests err = %v, want ErrUnavailable", err)
	}
	if err := svc.RecordEngagement(ctx, "u1", "x", SourceView, 0.5); !errors.Is(err, ErrUnavailable) {
		t.Errorf("RecordEngagement err = %v, want ErrUnavailable", err)
	}
}
