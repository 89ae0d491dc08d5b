// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package classify maps a post's raw signals to taxonomy interests with
// confidence scores.
//
// Classification runs as a two-stage pipeline. Stage one fans the post's
// signals (author-applied interest tags, hashtags, caption text, board
// membership, similar-post neighborhoods, co-engagement behavior) through
// independent candidate generators, each emitting scored interest
// candidates. Stage two merges candidates per interest with a saturating
// combination, so several weak signals raise confidence without any sum
// running past 1.0, and discards results below the configured minimum.
//
// A generator failing never fails the classification: the remaining
// generators still contribute and the failure is logged and counted.
package classify

import (
	"context"
	"errors"
	"time"

	"github.com/latticesocial/lattice/internal/taxonomy"
)

// Signal identifies one source of classification evidence.
type Signal string

// Signal kinds. VisualSimilarity and TFIDF are reserved: they appear in
// stored classifications produced by future classifier versions but have
// no generator yet.
const (
	SignalUserTagged       Signal = "user_tagged"
	SignalTagMatch         Signal = "tag_match"
	SignalCaptionMatch     Signal = "caption_match"
	SignalBoardNameMatch   Signal = "board_name_match"
	SignalSimilarPosts     Signal = "similar_posts"
	SignalUserBehavior     Signal = "user_behavior"
	SignalVisualSimilarity Signal = "visual_similarity"
	SignalTFIDF            Signal = "tf_idf"
)

// ErrPostNotFound indicates the post does not exist in the content store.
var ErrPostNotFound = errors.New("post not found")

// PostSignals is the raw classification input for one post, assembled by
// the content store.
type PostSignals struct {
	PostID   string
	AuthorID string

	// TaggedInterestIDs are interests the author attached directly.
	TaggedInterestIDs []string

	// Tags are free-form hashtags.
	Tags []string

	Caption string

	// BoardNames are the names of boards the post was saved into.
	BoardNames []string
}

// Empty reports whether no generator has anything to work with.
func (p *PostSignals) Empty() bool {
	return len(p.TaggedInterestIDs) == 0 && len(p.Tags) == 0 &&
		p.Caption == "" && len(p.BoardNames) == 0
}

// Candidate is a stage-one (interest, signal) match with an initial score.
type Candidate struct {
	InterestID string
	Score      float64
	Signal     Signal
}

// Classification is one confidence-scored interest on a post. Name and
// level are denormalized from the taxonomy for read efficiency; they are
// refreshed on every reclassification.
type Classification struct {
	InterestID    string   `json:"interest_id"`
	InterestName  string   `json:"interest_name"`
	InterestLevel int      `json:"interest_level"`
	Confidence    float64  `json:"confidence"`
	Signals       []Signal `json:"signals"`
}

// PostClassification groups all classifications for one post. Confidences
// do not sum to 1: a post can strongly match several unrelated interests.
type PostClassification struct {
	PostID          string           `json:"post_id"`
	Classifications []Classification `json:"classifications"`
	ClassifiedAt    time.Time        `json:"classified_at"`
	Version         string           `json:"version"`
}

// Primary returns the highest-confidence classification, or nil when the
// post carries none.
func (pc *PostClassification) Primary() *Classification {
	if pc == nil || len(pc.Classifications) == 0 {
		return nil
	}
	best := &pc.Classifications[0]
	for i := 1; i < len(pc.Classifications); i++ {
		if pc.Classifications[i].Confidence > best.Confidence {
			best = &pc.Classifications[i]
		}
	}
	return best
}

// Repository persists post classifications. Replace is a full atomic
// swap: readers see either the old or the new classification set, never
// a mix.
type Repository interface {
	Get(ctx context.Context, postID string) (*PostClassification, error)
	Replace(ctx context.Context, pc *PostClassification) error

	// ListPostIDs pages post IDs in ascending order, starting strictly
	// after afterID. unclassifiedOnly restricts to posts with no stored
	// classification.
	ListPostIDs(ctx context.Context, afterID string, limit int, unclassifiedOnly bool) ([]string, error)

	// Scan visits every stored classification. Used by analytics.
	Scan(ctx context.Context, fn func(*PostClassification) error) error
}

// SignalSource provides raw post signals and neighborhood data from the
// content store.
type SignalSource interface {
	Signals(ctx context.Context, postID string) (*PostSignals, error)

	// SimilarClassified returns classifications of posts with high content
	// similarity to the given post, at most limit of them.
	SimilarClassified(ctx context.Context, postID string, limit int) ([]*PostClassification, error)

	// CoEngagedAffinities aggregates the taste of users who engaged with
	// this post's neighborhood, sampling at most usersLimit users. The
	// result maps interest ID to a strength in [0,1].
	CoEngagedAffinities(ctx context.Context, postID string, usersLimit int) (map[string]float64, error)
}

// InterestIndex is the read-only taxonomy lookup generators match against.
// *taxonomy.Cache satisfies it.
type InterestIndex interface {
	Get(id string) (*taxonomy.Interest, bool)
	Match(term string) []*taxonomy.Interest
}
