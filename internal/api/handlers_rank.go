// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"net/http"
)

// RankFeed handles POST /feed/rank. The caller supplies candidate posts
// with their classifications; the response is the same posts in
// personalized order. Ranking degrades to recency ordering rather than
// failing, so this endpoint only errors on malformed input.
func (h *Handler) RankFeed(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)

	ranked, err := h.ranker.Rank(r.Context(), req.UserID, req.Posts)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Feed ranking failed")
		rw.InternalError("feed ranking failed")
		return
	}

	rw.SuccessWithMeta(ranked, &APIMeta{Count: len(ranked)})
}
