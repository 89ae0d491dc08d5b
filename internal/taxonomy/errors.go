// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package taxonomy

import "errors"

// Sentinel errors surfaced to admin callers. Taxonomy mutation errors are
// never silently corrected; the caller fixes the request and retries.
var (
	// ErrNotFound indicates the interest does not exist.
	ErrNotFound = errors.New("interest not found")

	// ErrInvalidParent indicates a missing parent, a parent assignment that
	// would create a cycle, or a parent that would exceed the depth limit.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrDuplicateName indicates a sibling with the same canonical name
	// already exists under the target parent.
	ErrDuplicateName = errors.New("duplicate interest name under parent")

	// ErrEmptyName indicates a create or rename with an empty name.
	ErrEmptyName = errors.New("interest name must not be empty")
)
