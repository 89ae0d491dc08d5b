// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// confidenceBuckets are the histogram bucket upper bounds for Analytics.
var confidenceBuckets = []float64{0.2, 0.4, 0.6, 0.8, 1.0}

// InterestVolume is one row of the top-interests-by-volume report.
type InterestVolume struct {
	InterestID     string  `json:"interest_id"`
	InterestName   string  `json:"interest_name"`
	Posts          int     `json:"posts"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Analytics summarizes the stored classification corpus for the admin
// surface.
type Analytics struct {
	TotalPosts           int              `json:"total_posts"`
	ClassifiedPosts      int              `json:"classified_posts"`
	TotalClassifications int              `json:"total_classifications"`
	ConfidenceHistogram  map[string]int   `json:"confidence_histogram"`
	SignalDistribution   map[Signal]int   `json:"signal_distribution"`
	TopInterests         []InterestVolume `json:"top_interests"`
	VersionDistribution  map[string]int   `json:"version_distribution"`
}

// ComputeAnalytics scans every stored classification once and aggregates
// confidence histograms, signal-kind distribution and the top interests by
// post volume.
func (e *Engine) ComputeAnalytics(ctx context.Context, topN int) (*Analytics, error) {
	if topN <= 0 {
		topN = 10
	}

	a := &Analytics{
		ConfidenceHistogram: make(map[string]int),
		SignalDistribution:  make(map[Signal]int),
		VersionDistribution: make(map[string]int),
	}

	type volume struct {
		name  string
		posts int
		sum   float64
	}
	volumes := make(map[string]*volume)

	err := e.repo.Scan(ctx, func(pc *PostClassification) error {
		a.TotalPosts++
		a.VersionDistribution[pc.Version]++
		if len(pc.Classifications) == 0 {
			return nil
		}
		a.ClassifiedPosts++

		for _, c := range pc.Classifications {
			a.TotalClassifications++
			a.ConfidenceHistogram[bucketLabel(c.Confidence)]++
			for _, s := range c.Signals {
				a.SignalDistribution[s]++
			}

			v, ok := volumes[c.InterestID]
			if !ok {
				v = &volume{name: c.InterestName}
				volumes[c.InterestID] = v
			}
			v.posts++
			v.sum += c.Confidence
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan classifications: %w", err)
	}

	rows := lo.MapToSlice(volumes, func(id string, v *volume) InterestVolume {
		return InterestVolume{
			InterestID:     id,
			InterestName:   v.name,
			Posts:          v.posts,
			MeanConfidence: v.sum / float64(v.posts),
		}
	})
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Posts != rows[j].Posts {
			return rows[i].Posts > rows[j].Posts
		}
		return rows[i].InterestID < rows[j].InterestID
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	a.TopInterests = rows

	return a, nil
}

// bucketLabel maps a confidence to its histogram bucket, e.g. "0.4-0.6".
func bucketLabel(confidence float64) string {
	lower := 0.0
	for _, upper := range confidenceBuckets {
		if confidence <= upper {
			return fmt.Sprintf("%.1f-%.1f", lower, upper)
		}
		lower = upper
	}
	return fmt.Sprintf("%.1f-1.0", lower)
}
