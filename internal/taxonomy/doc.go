// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package taxonomy implements the hierarchical interest taxonomy.
//
// Interests form a tree: each node carries a stable ID, a parent reference,
// a level (0 = root) and the ordered path of ancestor names. Nodes are stored
// flat and keyed by ID; acyclicity is enforced by walking the ancestor chain
// on every parent assignment rather than by nested owning structures.
//
// # Invariants
//
//   - level == len(path) - 1
//   - parentID == "" iff level == 0
//   - path is the name sequence of ancestors plus self
//   - no interest is its own transitive ancestor
//
// Interests are never hard-deleted; Deactivate clears the active flag so
// content tagged with the interest is not orphaned.
//
// # Concurrency
//
// Mutations hold a per-node lock for the duration of the cycle-check-and-write.
// Stat recalculation is idempotent and holds a per-node recompute lock so the
// same node is never recalculated concurrently; reads stay lock-free through
// the snapshot cache and are eventually consistent.
package taxonomy
