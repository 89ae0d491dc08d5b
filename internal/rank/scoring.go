// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package rank

import (
	"math"
	"time"

	"github.com/latticesocial/lattice/internal/config"
)

// Engagement action weights for the content-quality sub-score. Saves and
// shares signal stronger intent than likes.
const (
	likeWeight    = 1.0
	commentWeight = 2.0
	saveWeight    = 3.0
	shareWeight   = 3.0
)

// creatorBaseline is the creator-quality floor, a placeholder until a real
// creator-reputation signal exists.
const (
	creatorBaseline     = 0.5
	profilePhotoBoost   = 0.25
	usernameBoost       = 0.25
	minPlausibleNameLen = 3
)

// scorer computes the four normalized sub-scores for one post.
type scorer struct {
	cfg config.RankConfig

	// affinities maps interest ID to the user's decayed score, empty when
	// ranking falls back to recency.
	affinities map[string]float64
}

// score blends the sub-scores into the configured composite.
func (s *scorer) score(p *Post, asOf time.Time) Scores {
	sc := Scores{
		Interest:  s.interestRelevance(p),
		Content:   s.contentQuality(p),
		Creator:   s.creatorQuality(p),
		Freshness: s.freshness(p, asOf),
	}
	sc.Composite = s.cfg.Weights.Interest*sc.Interest +
		s.cfg.Weights.Content*sc.Content +
		s.cfg.Weights.Creator*sc.Creator +
		s.cfg.Weights.Freshness*sc.Freshness
	return sc
}

// interestRelevance multiplies each matching classification's confidence by
// the user's affinity and takes max(0.8*mean, max) across matches. The max
// term keeps a single strong match from being diluted; the mean term
// rewards posts matching several liked interests.
func (s *scorer) interestRelevance(p *Post) float64 {
	if len(s.affinities) == 0 || len(p.Classifications) == 0 {
		return 0
	}

	var sum, best float64
	matches := 0
	for _, c := range p.Classifications {
		affinity, ok := s.affinities[c.InterestID]
		if !ok {
			continue
		}
		v := affinity * c.Confidence
		sum += v
		if v > best {
			best = v
		}
		matches++
	}
	if matches == 0 {
		return 0
	}

	mean := sum / float64(matches)
	return clamp01(math.Max(0.8*mean, best))
}

// contentQuality is the weighted engagement rate, capped and normalized by
// the configured maximum rate.
func (s *scorer) contentQuality(p *Post) float64 {
	views := p.Views
	if views < 1 {
		views = 1
	}

	weighted := likeWeight*float64(p.Likes) +
		commentWeight*float64(p.Comments) +
		saveWeight*float64(p.Saves) +
		shareWeight*float64(p.Shares)

	rate := weighted / float64(views)
	if rate > s.cfg.MaxEngagementRate {
		rate = s.cfg.MaxEngagementRate
	}
	return clamp01(rate / s.cfg.MaxEngagementRate)
}

// creatorQuality is a heuristic baseline boosted by profile completeness.
func (s *scorer) creatorQuality(p *Post) float64 {
	q := creatorBaseline
	if p.HasProfilePhoto {
		q += profilePhotoBoost
	}
	if len(p.Username) >= minPlausibleNameLen {
		q += usernameBoost
	}
	return clamp01(q)
}

// freshness decays exponentially with post age in hours.
func (s *scorer) freshness(p *Post, asOf time.Time) float64 {
	ageHours := asOf.Sub(p.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return clamp01(math.Exp(-s.cfg.FreshnessDecay * ageHours))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
