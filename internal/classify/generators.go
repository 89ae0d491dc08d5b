// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package classify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// Stage-one match scores per signal kind. Direct author tagging is the
// strongest evidence; behavioral neighborhood signals are the weakest.
const (
	userTaggedScore = 0.90
	tagMatchScore   = 0.70
	boardNameScore  = 0.60
	boardTokenScore = 0.40

	captionBaseScore = 0.30
	captionHitBonus  = 0.10
	captionMaxScore  = 0.60

	similarPostsDiscount = 0.50
	userBehaviorDiscount = 0.40
)

// Generator produces stage-one candidates for one signal kind.
type Generator interface {
	Kind() Signal
	Generate(ctx context.Context, sig *PostSignals) ([]Candidate, error)
}

// userTaggedGenerator resolves interests the author attached directly.
type userTaggedGenerator struct {
	index InterestIndex
}

func (g *userTaggedGenerator) Kind() Signal { return SignalUserTagged }

func (g *userTaggedGenerator) Generate(_ context.Context, sig *PostSignals) ([]Candidate, error) {
	var out []Candidate
	for _, id := range lo.Uniq(sig.TaggedInterestIDs) {
		in, ok := g.index.Get(id)
		if !ok || !in.Active {
			continue
		}
		out = append(out, Candidate{InterestID: in.ID, Score: userTaggedScore, Signal: SignalUserTagged})
	}
	return out, nil
}

// tagMatchGenerator matches free-form hashtags against interest names and
// keywords by exact canonical string.
type tagMatchGenerator struct {
	index InterestIndex
}

func (g *tagMatchGenerator) Kind() Signal { return SignalTagMatch }

func (g *tagMatchGenerator) Generate(_ context.Context, sig *PostSignals) ([]Candidate, error) {
	seen := make(map[string]struct{})
	var out []Candidate
	for _, tag := range lo.Uniq(sig.Tags) {
		for _, in := range g.index.Match(tag) {
			if _, dup := seen[in.ID]; dup {
				continue
			}
			seen[in.ID] = struct{}{}
			out = append(out, Candidate{InterestID: in.ID, Score: tagMatchScore, Signal: SignalTagMatch})
		}
	}
	return out, nil
}

// captionMatchGenerator matches caption words and adjacent word pairs
// against the taxonomy. Repeated mentions of the same interest raise the
// score up to a cap.
type captionMatchGenerator struct {
	index InterestIndex
}

func (g *captionMatchGenerator) Kind() Signal { return SignalCaptionMatch }

func (g *captionMatchGenerator) Generate(_ context.Context, sig *PostSignals) ([]Candidate, error) {
	terms := captionTerms(sig.Caption)
	if len(terms) == 0 {
		return nil, nil
	}

	hits := make(map[string]int)
	for _, term := range terms {
		for _, in := range g.index.Match(term) {
			hits[in.ID]++
		}
	}

	out := make([]Candidate, 0, len(hits))
	for id, n := range hits {
		score := captionBaseScore + captionHitBonus*float64(n-1)
		if score > captionMaxScore {
			score = captionMaxScore
		}
		out = append(out, Candidate{InterestID: id, Score: score, Signal: SignalCaptionMatch})
	}
	return out, nil
}

// captionTerms tokenizes a caption into lowercase words plus adjacent word
// pairs, so two-word interest keywords ("street style") still match.
func captionTerms(caption string) []string {
	words := strings.FieldsFunc(strings.ToLower(caption), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}

	terms := make([]string, 0, 2*len(words)-1)
	terms = append(terms, words...)
	for i := 0; i+1 < len(words); i++ {
		terms = append(terms, words[i]+" "+words[i+1])
	}
	return terms
}

// boardNameGenerator maps the boards a post was saved into onto interests.
// A full-name match scores higher than a single matching word.
type boardNameGenerator struct {
	index InterestIndex
}

func (g *boardNameGenerator) Kind() Signal { return SignalBoardNameMatch }

func (g *boardNameGenerator) Generate(_ context.Context, sig *PostSignals) ([]Candidate, error) {
	best := make(map[string]float64)
	for _, name := range lo.Uniq(sig.BoardNames) {
		for _, in := range g.index.Match(name) {
			if boardNameScore > best[in.ID] {
				best[in.ID] = boardNameScore
			}
		}
		for _, word := range strings.Fields(strings.ToLower(name)) {
			for _, in := range g.index.Match(word) {
				if boardTokenScore > best[in.ID] {
					best[in.ID] = boardTokenScore
				}
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for id, score := range best {
		out = append(out, Candidate{InterestID: id, Score: score, Signal: SignalBoardNameMatch})
	}
	return out, nil
}

// similarPostsGenerator borrows classifications from the post's
// content-similarity neighborhood, discounted because the evidence is
// indirect.
type similarPostsGenerator struct {
	source SignalSource
	limit  int
}

func (g *similarPostsGenerator) Kind() Signal { return SignalSimilarPosts }

func (g *similarPostsGenerator) Generate(ctx context.Context, sig *PostSignals) ([]Candidate, error) {
	neighbors, err := g.source.SimilarClassified(ctx, sig.PostID, g.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch similar posts: %w", err)
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, pc := range neighbors {
		for _, c := range pc.Classifications {
			sums[c.InterestID] += c.Confidence
			counts[c.InterestID]++
		}
	}

	out := make([]Candidate, 0, len(sums))
	for id, sum := range sums {
		mean := sum / float64(counts[id])
		out = append(out, Candidate{
			InterestID: id,
			Score:      mean * similarPostsDiscount,
			Signal:     SignalSimilarPosts,
		})
	}
	return out, nil
}

// userBehaviorGenerator reads the aggregate taste of users who engaged
// with this post's neighborhood.
type userBehaviorGenerator struct {
	source     SignalSource
	usersLimit int
}

func (g *userBehaviorGenerator) Kind() Signal { return SignalUserBehavior }

func (g *userBehaviorGenerator) Generate(ctx context.Context, sig *PostSignals) ([]Candidate, error) {
	strengths, err := g.source.CoEngagedAffinities(ctx, sig.PostID, g.usersLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch co-engagement affinities: %w", err)
	}

	out := make([]Candidate, 0, len(strengths))
	for id, strength := range strengths {
		if strength <= 0 {
			continue
		}
		if strength > 1 {
			strength = 1
		}
		out = append(out, Candidate{
			InterestID: id,
			Score:      strength * userBehaviorDiscount,
			Signal:     SignalUserBehavior,
		})
	}
	return out, nil
}

// noopGenerator reserves a signal kind that has no implementation yet.
// It contributes nothing and never fails.
type noopGenerator struct {
	kind Signal
}

func (g *noopGenerator) Kind() Signal { return g.kind }

func (g *noopGenerator) Generate(context.Context, *PostSignals) ([]Candidate, error) {
	return nil, nil
}
