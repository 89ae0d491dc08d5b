// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package classify

import (
	"context"
	"math"
	"testing"
)

func TestComputeAnalytics(t *testing.T) {
	repo := newMemClassRepo()
	repo.stored = map[string]*PostClassification{
		"p1": {PostID: "p1", Version: "v1", Classifications: []Classification{
			{InterestID: "fashion", InterestName: "fashion", Confidence: 0.9,
				Signals: []Signal{SignalTagMatch, SignalCaptionMatch}},
			{InterestID: "travel", InterestName: "travel", Confidence: 0.3,
				Signals: []Signal{SignalCaptionMatch}},
		}},
		"p2": {PostID: "p2", Version: "v1", Classifications: []Classification{
			{InterestID: "fashion", InterestName: "fashion", Confidence: 0.5,
				Signals: []Signal{SignalUserTagged}},
		}},
		"p3": {PostID: "p3", Version: "v0", Classifications: nil},
	}

	engine := testEngine(repo, newMemSignalSource(), testTaxonomy(), nil)

	a, err := engine.ComputeAnalytics(context.Background(), 10)
	if err != nil {
		t.Fatalf("ComputeAnalytics: %v", err)
	}

	if a.TotalPosts != 3 || a.ClassifiedPosts != 2 || a.TotalClassifications != 3 {
		t.Errorf("counts = %d/%d/%d, want 3/2/3",
			a.TotalPosts, a.ClassifiedPosts, a.TotalClassifications)
	}

	if got := a.ConfidenceHistogram["0.8-1.0"]; got != 1 {
		t.Errorf("histogram[0.8-1.0] = %d, want 1", got)
	}
	if got := a.ConfidenceHistogram["0.4-0.6"]; got != 1 {
		t.Errorf("histogram[0.4-0.6] = %d, want 1", got)
	}
	if got := a.ConfidenceHistogram["0.2-0.4"]; got != 1 {
		t.Errorf("histogram[0.2-0.4] = %d, want 1", got)
	}

	if got := a.SignalDistribution[SignalCaptionMatch]; got != 2 {
		t.Errorf("caption_match distribution = %d, want 2", got)
	}
	if got := a.SignalDistribution[SignalUserTagged]; got != 1 {
		t.Errorf("user_tagged distribution = %d, want 1", got)
	}

	if len(a.TopInterests) != 2 {
		t.Fatalf("top interests = %+v, want 2 rows", a.TopInterests)
	}
	top := a.TopInterests[0]
	if top.InterestID != "fashion" || top.Posts != 2 {
		t.Errorf("top interest = %+v, want fashion with 2 posts", top)
	}
	if math.Abs(top.MeanConfidence-0.7) > 1e-9 {
		t.Errorf("fashion mean confidence = %g, want 0.7", top.MeanConfidence)
	}

	if got := a.VersionDistribution["v0"]; got != 1 {
		t.Errorf("version v0 count = %d, want 1", got)
	}
}

func TestComputeAnalyticsTopNTruncates(t *testing.T) {
	repo := newMemClassRepo()
	repo.stored = map[string]*PostClassification{
		"p1": {PostID: "p1", Classifications: []Classification{
			{InterestID: "fashion", Confidence: 0.9},
			{InterestID: "travel", Confidence: 0.8},
			{InterestID: "food", Confidence: 0.7},
		}},
	}

	engine := testEngine(repo, newMemSignalSource(), testTaxonomy(), nil)

	a, err := engine.ComputeAnalytics(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.TopInterests) != 2 {
		t.Errorf("top interests = %d rows, want 2", len(a.TopInterests))
	}
}

func TestBucketLabel(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.05, "0.0-0.2"},
		{0.2, "0.0-0.2"},
		{0.35, "0.2-0.4"},
		{0.79, "0.6-0.8"},
		{1.0, "0.8-1.0"},
	}

	for _, tt := range tests {
		if got := bucketLabel(tt.confidence); got != tt.want {
			t.Errorf("bucketLabel(%g) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}
