// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package rank orders candidate posts for one user's feed.
//
// Ranking is a stateless pipeline over a request-scoped working set: fetch
// the user's top taste-graph interests, score every candidate in parallel
// across four normalized sub-scores (interest relevance, content quality,
// creator quality, freshness), sort by the blended composite, then run a
// sequential diversity pass that spaces out posts sharing a primary
// interest.
//
// Personalization failures never fail a request. A missing user, empty
// taste graph, storage error or fetch timeout all degrade to recency
// ordering; a post with no classification simply scores zero interest
// relevance.
package rank

import (
	"time"

	"github.com/latticesocial/lattice/internal/classify"
)

// Post is one feed candidate with the fields ranking reads. It arrives
// from the feed-serving layer already carrying its classification.
type Post struct {
	ID              string                    `json:"id"`
	AuthorID        string                    `json:"author_id"`
	Username        string                    `json:"username,omitempty"`
	HasProfilePhoto bool                      `json:"has_profile_photo,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	Likes           int64                     `json:"likes"`
	Comments        int64                     `json:"comments"`
	Saves           int64                     `json:"saves"`
	Shares          int64                     `json:"shares"`
	Views           int64                     `json:"views"`
	Classifications []classify.Classification `json:"classifications,omitempty"`
}

// PrimaryInterest returns the interest ID of the post's highest-confidence
// classification, or "" for unclassified posts.
func (p *Post) PrimaryInterest() string {
	if len(p.Classifications) == 0 {
		return ""
	}
	best := 0
	for i := 1; i < len(p.Classifications); i++ {
		if p.Classifications[i].Confidence > p.Classifications[best].Confidence {
			best = i
		}
	}
	return p.Classifications[best].InterestID
}

// Scores breaks a post's composite down per sub-score, kept for
// explainability in debug output.
type Scores struct {
	Interest  float64 `json:"interest"`
	Content   float64 `json:"content"`
	Creator   float64 `json:"creator"`
	Freshness float64 `json:"freshness"`
	Composite float64 `json:"composite"`
}

// scoredPost pairs a candidate with its composite for the sort and
// diversity passes. idx preserves input position for stable tiebreaks.
type scoredPost struct {
	post   Post
	scores Scores
	idx    int
}
