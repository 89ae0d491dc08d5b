// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/latticesocial/lattice/internal/tastegraph"
)

// TasteGraphGet handles GET /tastegraph/{userID}. Unknown users get an
// empty graph, not a 404: a user with no engagements is a valid state.
func (h *Handler) TasteGraphGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	g, err := h.taste.Graph(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(g)
}

// TasteGraphTop handles GET /tastegraph/{userID}/top, returning the user's
// strongest interests by decayed score.
func (h *Handler) TasteGraphTop(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := TopInterestsRequest{Limit: getIntParam(r, "limit", 10)}
	if !h.validateRequest(w, r, &req) {
		return
	}

	top, err := h.taste.TopInterests(r.Context(), chi.URLParam(r, "userID"), req.Limit, time.Now())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithMeta(top, &APIMeta{Count: len(top)})
}

// RecordEngagement handles POST /tastegraph/engagements, the synchronous
// alternative to the NATS consumer for taste graph updates.
func (h *Handler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	var req EngagementRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)

	err := h.taste.RecordEngagement(r.Context(), req.UserID, req.InterestID,
		tastegraph.Source(req.Source), req.Weight)
	switch {
	case errors.Is(err, tastegraph.ErrInvalidSource):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest,
			err.Error(), map[string]string{"field": "source"})
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.NoContent()
	}
}
