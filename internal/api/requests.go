// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// HTTP request bodies with go-playground/validator tags. Validation runs
// before any handler logic so storage never sees malformed input.
package api

import (
	"github.com/latticesocial/lattice/internal/rank"
)

// CreateInterestRequest is the body for POST /taxonomy/interests.
type CreateInterestRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=100"`
	DisplayName string   `json:"display_name" validate:"omitempty,max=100"`
	ParentID    string   `json:"parent_id" validate:"omitempty,max=100"`
	Keywords    []string `json:"keywords" validate:"omitempty,dive,min=1,max=50"`
	RelatedIDs  []string `json:"related_ids" validate:"omitempty,dive,min=1,max=100"`
}

// UpdateInterestRequest is the body for PUT /taxonomy/interests/{id}.
// Nil pointers leave the corresponding field unchanged.
type UpdateInterestRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=100"`
	DisplayName *string   `json:"display_name" validate:"omitempty,max=100"`
	ParentID    *string   `json:"parent_id" validate:"omitempty,max=100"`
	Keywords    *[]string `json:"keywords" validate:"omitempty,dive,min=1,max=50"`
	RelatedIDs  *[]string `json:"related_ids" validate:"omitempty,dive,min=1,max=100"`
	Active      *bool     `json:"active"`
}

// EngagementRequest is the body for POST /tastegraph/engagements.
type EngagementRequest struct {
	UserID     string  `json:"user_id" validate:"required,min=1,max=100"`
	InterestID string  `json:"interest_id" validate:"required,min=1,max=100"`
	Source     string  `json:"source" validate:"required,oneof=explicit_follow inferred_save inferred_create inferred_search inferred_view"`
	Weight     float64 `json:"weight" validate:"omitempty,gt=0,lte=1"`
}

// BatchClassifyRequest is the body for POST /classify/batch.
type BatchClassifyRequest struct {
	RunID            string `json:"run_id" validate:"omitempty,max=100"`
	Limit            int    `json:"limit" validate:"omitempty,min=1,max=100000"`
	UnclassifiedOnly bool   `json:"unclassified_only"`
}

// RankRequest is the body for POST /feed/rank. Candidates arrive from the
// feed-serving layer already carrying their classifications.
type RankRequest struct {
	UserID string      `json:"user_id" validate:"omitempty,max=100"`
	Posts  []rank.Post `json:"posts" validate:"required,max=1000"`
}

// TopInterestsRequest validates the query parameters of
// GET /tastegraph/{userID}/top.
type TopInterestsRequest struct {
	Limit int `validate:"min=1,max=100"`
}
