// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/latticesocial/lattice/internal/taxonomy"
)

// TaxonomyList handles GET /taxonomy/interests. Serves from the in-memory
// cache; the taxonomy changes rarely and reads dominate.
func (h *Handler) TaxonomyList(w http.ResponseWriter, r *http.Request) {
	interests := h.cache.Snapshot()
	NewResponseWriter(w, r).SuccessWithMeta(interests, &APIMeta{Count: len(interests)})
}

// TaxonomyTree handles GET /taxonomy/tree. The roots_only query parameter
// limits the response to top-level interests.
func (h *Handler) TaxonomyTree(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	tree, err := h.store.Tree(r.Context(), getBoolParam(r, "roots_only"))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithMeta(tree, &APIMeta{Count: len(tree)})
}

// TaxonomyGet handles GET /taxonomy/interests/{id}.
func (h *Handler) TaxonomyGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	in, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, taxonomy.ErrNotFound):
		rw.NotFound("interest not found")
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(in)
	}
}

// TaxonomyCreate handles POST /taxonomy/interests.
func (h *Handler) TaxonomyCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateInterestRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)

	in, err := h.store.Create(r.Context(), taxonomy.CreateParams{
		ParentID:    req.ParentID,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Keywords:    req.Keywords,
		RelatedIDs:  req.RelatedIDs,
	})
	switch {
	case errors.Is(err, taxonomy.ErrEmptyName):
		rw.BadRequest(err.Error())
	case errors.Is(err, taxonomy.ErrInvalidParent):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest,
			err.Error(), map[string]string{"field": "parent_id"})
	case errors.Is(err, taxonomy.ErrDuplicateName):
		rw.Conflict(err.Error())
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Created(in)
	}
}

// TaxonomyUpdate handles PUT /taxonomy/interests/{id}. Omitted fields are
// left unchanged; changing parent_id reparents the whole subtree.
func (h *Handler) TaxonomyUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateInterestRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)

	in, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), taxonomy.UpdateParams{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		ParentID:    req.ParentID,
		Keywords:    req.Keywords,
		RelatedIDs:  req.RelatedIDs,
		Active:      req.Active,
	})
	switch {
	case errors.Is(err, taxonomy.ErrNotFound):
		rw.NotFound("interest not found")
	case errors.Is(err, taxonomy.ErrEmptyName):
		rw.BadRequest(err.Error())
	case errors.Is(err, taxonomy.ErrInvalidParent):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest,
			err.Error(), map[string]string{"field": "parent_id"})
	case errors.Is(err, taxonomy.ErrDuplicateName):
		rw.Conflict(err.Error())
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(in)
	}
}

// TaxonomyDeactivate handles DELETE /taxonomy/interests/{id}. Interests are
// never hard-deleted; stored classifications keep referencing them.
func (h *Handler) TaxonomyDeactivate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	err := h.store.Deactivate(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, taxonomy.ErrNotFound):
		rw.NotFound("interest not found")
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.NoContent()
	}
}

// TaxonomySeed handles POST /taxonomy/seed, loading the built-in starter
// taxonomy. Interests that already exist are skipped.
func (h *Handler) TaxonomySeed(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	created, err := taxonomy.Seed(r.Context(), h.store)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	h.logger.Info().Int("created", created).Msg("Taxonomy seeded")
	rw.Success(map[string]int{"created": created})
}

// TaxonomyRecalculate handles POST /taxonomy/interests/{id}/recalculate,
// recounting an interest's classified posts from storage.
func (h *Handler) TaxonomyRecalculate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	delta, err := h.store.RecalculateStats(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, taxonomy.ErrNotFound):
		rw.NotFound("interest not found")
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(delta)
	}
}
