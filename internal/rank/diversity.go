// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package rank

// diversify walks the score-sorted list keeping a sliding window of the
// last window distinct primary interests emitted. A post whose primary
// interest is already in the window is deferred; deferred posts are
// appended after the main pass in their original relative order, which may
// place same-interest posts adjacently at the tail. Unclassified posts
// never collide.
//
// This pass is inherently sequential and runs single-threaded over the
// sorted slice.
func diversify(scored []scoredPost, window int) []Post {
	out := make([]Post, 0, len(scored))

	if window <= 0 {
		for i := range scored {
			out = append(out, scored[i].post)
		}
		return out
	}

	recent := make([]string, 0, window)
	var deferred []scoredPost

	emit := func(p *scoredPost) {
		out = append(out, p.post)
		interest := p.post.PrimaryInterest()
		if interest == "" {
			return
		}
		recent = append(recent, interest)
		if len(recent) > window {
			recent = recent[1:]
		}
	}

	inWindow := func(interest string) bool {
		if interest == "" {
			return false
		}
		for _, r := range recent {
			if r == interest {
				return true
			}
		}
		return false
	}

	for i := range scored {
		if inWindow(scored[i].post.PrimaryInterest()) {
			deferred = append(deferred, scored[i])
			continue
		}
		emit(&scored[i])
	}

	for i := range deferred {
		out = append(out, deferred[i].post)
	}
	return out
}
