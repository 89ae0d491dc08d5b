// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package taxonomy

import (
	"strings"
	"time"
)

// Interest is a node in the hierarchical interest taxonomy.
type Interest struct {
	// ID is the stable unique identifier.
	ID string `json:"id"`

	// Name is the canonical lowercase name, unique among siblings.
	Name string `json:"name"`

	// DisplayName is the human-readable name.
	DisplayName string `json:"display_name"`

	// ParentID references the parent node. Empty for roots.
	ParentID string `json:"parent_id,omitempty"`

	// Level is the depth in the tree (0 = root).
	Level int `json:"level"`

	// Path is the ordered name sequence from root to this node.
	Path []string `json:"path"`

	// Active marks whether the interest participates in classification and
	// ranking. Deactivated interests keep their tagged content.
	Active bool `json:"active"`

	// PostCount is the number of posts classified under this interest.
	// Maintained by RecalculateStats; eventually consistent.
	PostCount int64 `json:"post_count"`

	// FollowerCount is the number of users explicitly following this interest.
	FollowerCount int64 `json:"follower_count"`

	// WeeklyGrowth and MonthlyGrowth are time-windowed post-count growth rates.
	WeeklyGrowth  float64 `json:"weekly_growth"`
	MonthlyGrowth float64 `json:"monthly_growth"`

	// Keywords are free-text synonyms used for signal matching.
	Keywords []string `json:"keywords,omitempty"`

	// RelatedIDs reference related interests outside the parent/child axis.
	RelatedIDs []string `json:"related_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the interest is a taxonomy root.
func (i *Interest) IsRoot() bool {
	return i.ParentID == ""
}

// MatchesTerm reports whether the given lowercase term equals the interest
// name or any of its keywords.
func (i *Interest) MatchesTerm(term string) bool {
	if term == "" {
		return false
	}
	if strings.EqualFold(i.Name, term) {
		return true
	}
	for _, kw := range i.Keywords {
		if strings.EqualFold(kw, term) {
			return true
		}
	}
	return false
}

// TreeNode is an interest with its resolved children, returned by Tree.
type TreeNode struct {
	Interest *Interest   `json:"interest"`
	Children []*TreeNode `json:"children,omitempty"`
}

// StatsDelta reports the effect of a stat recalculation.
type StatsDelta struct {
	InterestID string `json:"interest_id"`
	OldCount   int64  `json:"old_count"`
	NewCount   int64  `json:"new_count"`
}

// CanonicalName normalizes a display name into the canonical sibling-unique
// form: lowercased with surrounding whitespace removed.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
