// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/latticesocial/lattice/internal/classify"
)

// ClassifyPost handles POST /classify/posts/{id}, re-running the signal
// pipeline for one post and replacing its stored classification.
func (h *Handler) ClassifyPost(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	pc, err := h.engine.Reclassify(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, classify.ErrPostNotFound):
		rw.NotFound("post not found")
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(pc)
	}
}

// GetClassification handles GET /classify/posts/{id}.
func (h *Handler) GetClassification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	pc, err := h.engine.Stored(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if pc == nil {
		rw.NotFound("post has no classification")
		return
	}
	rw.Success(pc)
}

// ClassifyBatch handles POST /classify/batch. A request with a run_id is
// resumable: interrupted runs continue from their checkpoint on the next
// call with the same run_id.
func (h *Handler) ClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchClassifyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)

	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	res, err := h.engine.ClassifyBatch(r.Context(), classify.BatchParams{
		RunID:            req.RunID,
		Limit:            req.Limit,
		UnclassifiedOnly: req.UnclassifiedOnly,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", req.RunID).Msg("Batch classification failed")
		rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeInternalError,
			"batch classification failed", map[string]interface{}{
				"run_id":  req.RunID,
				"partial": res,
			})
		return
	}

	rw.Success(map[string]interface{}{
		"run_id": req.RunID,
		"result": res,
	})
}

// ClassifyAnalytics handles GET /classify/analytics with corpus-wide
// confidence, signal and interest-volume summaries.
func (h *Handler) ClassifyAnalytics(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	topN := getIntParam(r, "top", 10)
	if topN < 1 || topN > h.cfg.MaxPageSize {
		topN = 10
	}

	analytics, err := h.engine.ComputeAnalytics(r.Context(), topN)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(analytics)
}
