// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package api

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// maxBodyBytes bounds request bodies. Rank requests carry up to 1000
// candidate posts, so the bound is generous.
const maxBodyBytes = 4 << 20

// decodeJSON decodes and validates a request body into v. On failure it
// writes the error response and returns false.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	rw := NewResponseWriter(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	return h.validateRequest(w, r, v)
}

// validateRequest runs struct validation and writes a VALIDATION_FAILED
// response naming the offending fields on failure.
func (h *Handler) validateRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		NewResponseWriter(w, r).BadRequest("invalid request")
		return false
	}

	details := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, map[string]string{
			"field":      fe.Field(),
			"constraint": fe.Tag(),
			"param":      fe.Param(),
		})
	}
	NewResponseWriter(w, r).ValidationError("request validation failed", details)
	return false
}

// newValidator builds a validator that reports fields by their JSON wire
// names in validation error details.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getBoolParam extracts a boolean query parameter.
func getBoolParam(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
