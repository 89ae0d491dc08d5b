// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package tastegraph maintains per-user interest affinities with
// time-decayed scores.
//
// An affinity is created on the first qualifying engagement and never
// deleted: instead of destructive removal its effective score decays toward
// zero, preserving history so re-engagement can rebuild quickly.
//
// # Decay
//
// The decayed score is computed at read time and never persisted over the
// base score:
//
//	decayed = base * exp(-decayFactor * daysSinceLastEngagement)
//
// decayFactor is stored per affinity: explicit follows decay slower than
// inferred signals. With the default inferred factor of 0.01 a
// never-reinforced affinity falls to ~37% after 100 days.
//
// # Blending
//
// RecordEngagement blends repeat engagements with
// max(existing, incoming) plus a small configurable repeat bump, clamped
// to [0,1]. Scores therefore never decrease from engagement; only the
// passage of time lowers the effective value.
package tastegraph

import (
	"math"
	"time"
)

// SchemaVersion tags persisted taste graphs for forward migration.
const SchemaVersion = 1

// Source identifies what kind of engagement created or reinforced an affinity.
type Source string

// Affinity sources, ordered roughly by signal strength.
const (
	SourceExplicitFollow Source = "explicit_follow"
	SourceSave           Source = "inferred_save"
	SourceCreate         Source = "inferred_create"
	SourceSearch         Source = "inferred_search"
	SourceView           Source = "inferred_view"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceExplicitFollow, SourceSave, SourceCreate, SourceSearch, SourceView:
		return true
	default:
		return false
	}
}

// Affinity is a scored, decaying relationship between a user and an interest.
type Affinity struct {
	// InterestID references the taxonomy node.
	InterestID string `json:"interest_id"`

	// Score is the base score in [0,1] before decay.
	Score float64 `json:"score"`

	// Source is the engagement kind that created the affinity.
	Source Source `json:"source"`

	// EngagementCount is the cumulative number of qualifying engagements.
	EngagementCount int64 `json:"engagement_count"`

	// FirstEngagement and LastEngagement bound the engagement history.
	FirstEngagement time.Time `json:"first_engagement"`
	LastEngagement  time.Time `json:"last_engagement"`

	// DecayFactor is the per-day exponential decay rate.
	DecayFactor float64 `json:"decay_factor"`
}

// DecayedScore returns the effective score at asOf:
// score * exp(-decayFactor * daysSinceLastEngagement), floored at 0 and
// capped at the base score (a future LastEngagement never inflates).
func (a *Affinity) DecayedScore(asOf time.Time) float64 {
	days := asOf.Sub(a.LastEngagement).Hours() / 24
	if days < 0 {
		days = 0
	}
	decayed := a.Score * math.Exp(-a.DecayFactor*days)
	return clamp01(decayed)
}

// TasteGraph is one user's collection of affinities keyed by interest ID.
// It is owned exclusively by that user's record; all mutation goes through
// the Service.
type TasteGraph struct {
	UserID      string               `json:"user_id"`
	Interests   map[string]*Affinity `json:"interests"`
	LastUpdated time.Time            `json:"last_updated"`
	Version     int                  `json:"version"`
}

// NewTasteGraph returns an empty graph for the user.
func NewTasteGraph(userID string) *TasteGraph {
	return &TasteGraph{
		UserID:    userID,
		Interests: make(map[string]*Affinity),
		Version:   SchemaVersion,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
