// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/config"
)

// Repository is the persistence contract for interests.
// Implemented by the database layer.
type Repository interface {
	// Get returns the interest with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Interest, error)

	// List returns all interests, active and inactive.
	List(ctx context.Context) ([]*Interest, error)

	// Children returns the direct children of parentID. An empty parentID
	// returns the roots.
	Children(ctx context.Context, parentID string) ([]*Interest, error)

	// Insert stores a new interest.
	Insert(ctx context.Context, in *Interest) error

	// Update overwrites an existing interest.
	Update(ctx context.Context, in *Interest) error

	// CountClassifiedPosts returns the number of posts currently classified
	// under the interest.
	CountClassifiedPosts(ctx context.Context, interestID string) (int64, error)
}

// Store coordinates taxonomy mutations and enforces structural invariants.
type Store struct {
	repo   Repository
	cfg    config.TaxonomyConfig
	cache  *Cache
	logger zerolog.Logger

	// nodeLocks holds per-key mutexes: "node:<id>" for mutations,
	// "parent:<id>" for sibling-uniqueness checks, "stats:<id>" for
	// recompute serialization.
	nodeLocks sync.Map
}

// NewStore creates a taxonomy store. The cache may be nil in tests; when
// present it is refreshed after every successful mutation.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(repo Repository, cfg config.TaxonomyConfig, cache *Cache, logger zerolog.Logger) *Store {
	return &Store{
		repo:   repo,
		cfg:    cfg,
		cache:  cache,
		logger: logger.With().Str("component", "taxonomy").Logger(),
	}
}

// CreateParams holds the fields for a new interest.
type CreateParams struct {
	ParentID    string
	Name        string
	DisplayName string
	Keywords    []string
	RelatedIDs  []string
}

// UpdateParams holds the partial fields for an interest update.
// Nil pointers leave the corresponding field unchanged.
type UpdateParams struct {
	Name        *string
	DisplayName *string
	ParentID    *string
	Keywords    *[]string
	RelatedIDs  *[]string
	Active      *bool
}

// Create adds a new interest under the given parent. The level and path are
// computed from the parent; a missing parent or one that would exceed the
// depth limit yields ErrInvalidParent, a sibling name collision yields
// ErrDuplicateName.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Interest, error) {
	name := CanonicalName(p.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	displayName := p.DisplayName
	if displayName == "" {
		displayName = p.Name
	}

	level := 0
	path := []string{name}
	if p.ParentID != "" {
		parent, err := s.repo.Get(ctx, p.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: parent %q does not exist", ErrInvalidParent, p.ParentID)
			}
			return nil, fmt.Errorf("fetch parent: %w", err)
		}
		if parent.Level+1 >= s.cfg.MaxDepth {
			return nil, fmt.Errorf("%w: depth limit %d exceeded", ErrInvalidParent, s.cfg.MaxDepth)
		}
		level = parent.Level + 1
		path = append(append([]string{}, parent.Path...), name)
	}

	// Serialize sibling creation under the same parent so the uniqueness
	// check and insert are atomic with respect to each other.
	unlock := s.lock("parent:" + p.ParentID)
	defer unlock()

	if err := s.checkSiblingName(ctx, p.ParentID, name, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	in := &Interest{
		ID:          uuid.New().String(),
		Name:        name,
		DisplayName: displayName,
		ParentID:    p.ParentID,
		Level:       level,
		Path:        path,
		Active:      true,
		Keywords:    normalizeKeywords(p.Keywords),
		RelatedIDs:  p.RelatedIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, in); err != nil {
		return nil, fmt.Errorf("insert interest: %w", err)
	}

	s.logger.Info().
		Str("interest_id", in.ID).
		Str("name", in.Name).
		Int("level", in.Level).
		Msg("interest created")

	s.refreshCache(ctx)
	return in, nil
}

// Update applies a partial update. Parent reassignment walks the ancestor
// chain of the new parent and rejects cycles with ErrInvalidParent; the
// levels and paths of the whole subtree are recomputed on reparent or rename.
func (s *Store) Update(ctx context.Context, id string, p UpdateParams) (*Interest, error) {
	unlock := s.lock("node:" + id)
	defer unlock()

	in, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.DisplayName != nil {
		in.DisplayName = *p.DisplayName
	}
	if p.Keywords != nil {
		in.Keywords = normalizeKeywords(*p.Keywords)
	}
	if p.RelatedIDs != nil {
		in.RelatedIDs = *p.RelatedIDs
	}
	if p.Active != nil {
		in.Active = *p.Active
	}

	renamed := false
	if p.Name != nil {
		name := CanonicalName(*p.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		if name != in.Name {
			in.Name = name
			renamed = true
		}
	}

	reparented := false
	if p.ParentID != nil && *p.ParentID != in.ParentID {
		if err := s.reparent(ctx, in, *p.ParentID); err != nil {
			return nil, err
		}
		reparented = true
	}

	if renamed || reparented {
		if err := s.checkSiblingName(ctx, in.ParentID, in.Name, in.ID); err != nil {
			return nil, err
		}
		// The node's own path tail changes with its name.
		in.Path = append(append([]string{}, in.Path[:len(in.Path)-1]...), in.Name)
	}

	in.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, fmt.Errorf("update interest: %w", err)
	}

	if renamed || reparented {
		if err := s.recomputeSubtree(ctx, in); err != nil {
			return nil, fmt.Errorf("recompute subtree: %w", err)
		}
	}

	s.refreshCache(ctx)
	return in, nil
}

// Deactivate soft-deletes an interest. Tagged content keeps its
// classifications; the interest simply stops participating.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	active := false
	_, err := s.Update(ctx, id, UpdateParams{Active: &active})
	return err
}

// Tree returns the taxonomy as a forest of TreeNodes. With rootsOnly set,
// only root interests are returned and children are omitted.
func (s *Store) Tree(ctx context.Context, rootsOnly bool) ([]*TreeNode, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}

	nodes := make(map[string]*TreeNode, len(all))
	for _, in := range all {
		nodes[in.ID] = &TreeNode{Interest: in}
	}

	var roots []*TreeNode
	for _, in := range all {
		node := nodes[in.ID]
		if in.IsRoot() {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[in.ParentID]; ok && !rootsOnly {
			parent.Children = append(parent.Children, node)
		}
	}

	sortTree(roots)
	if rootsOnly {
		for _, r := range roots {
			r.Children = nil
		}
	}
	return roots, nil
}

// RecalculateStats re-aggregates the post count for one interest. It is
// idempotent and safe to re-run; concurrent recomputes for the same node are
// serialized by a per-node lock.
func (s *Store) RecalculateStats(ctx context.Context, id string) (StatsDelta, error) {
	unlock := s.lock("stats:" + id)
	defer unlock()

	in, err := s.repo.Get(ctx, id)
	if err != nil {
		return StatsDelta{}, err
	}

	count, err := s.repo.CountClassifiedPosts(ctx, id)
	if err != nil {
		return StatsDelta{}, fmt.Errorf("count classified posts: %w", err)
	}

	delta := StatsDelta{InterestID: id, OldCount: in.PostCount, NewCount: count}
	if delta.OldCount == delta.NewCount {
		return delta, nil
	}

	in.PostCount = count
	in.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, in); err != nil {
		return StatsDelta{}, fmt.Errorf("update interest stats: %w", err)
	}

	s.logger.Debug().
		Str("interest_id", id).
		Int64("old_count", delta.OldCount).
		Int64("new_count", delta.NewCount).
		Msg("interest stats recalculated")

	s.refreshCache(ctx)
	return delta, nil
}

// Get returns a single interest by ID.
func (s *Store) Get(ctx context.Context, id string) (*Interest, error) {
	return s.repo.Get(ctx, id)
}

// reparent moves in under newParentID, rejecting cycles. The caller holds
// the node lock; in's Level, Path and ParentID are updated in place.
func (s *Store) reparent(ctx context.Context, in *Interest, newParentID string) error {
	if newParentID == "" {
		in.ParentID = ""
		in.Level = 0
		in.Path = []string{in.Name}
		return nil
	}
	if newParentID == in.ID {
		return fmt.Errorf("%w: interest cannot be its own parent", ErrInvalidParent)
	}

	parent, err := s.repo.Get(ctx, newParentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: parent %q does not exist", ErrInvalidParent, newParentID)
		}
		return fmt.Errorf("fetch parent: %w", err)
	}

	// Walk the ancestor chain of the new parent; finding ourselves means the
	// assignment would create a cycle. The walk is bounded by the depth limit.
	cur := parent
	for depth := 0; depth < s.cfg.MaxDepth; depth++ {
		if cur.ID == in.ID {
			return fmt.Errorf("%w: %q is a descendant of %q", ErrInvalidParent, newParentID, in.ID)
		}
		if cur.ParentID == "" {
			break
		}
		cur, err = s.repo.Get(ctx, cur.ParentID)
		if err != nil {
			return fmt.Errorf("walk ancestor chain: %w", err)
		}
	}

	if parent.Level+1 >= s.cfg.MaxDepth {
		return fmt.Errorf("%w: depth limit %d exceeded", ErrInvalidParent, s.cfg.MaxDepth)
	}

	in.ParentID = parent.ID
	in.Level = parent.Level + 1
	in.Path = append(append([]string{}, parent.Path...), in.Name)
	return nil
}

// recomputeSubtree rewrites levels and paths for all descendants of in after
// a rename or reparent.
func (s *Store) recomputeSubtree(ctx context.Context, in *Interest) error {
	all, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	children := make(map[string][]*Interest, len(all))
	for _, node := range all {
		if node.ParentID != "" {
			children[node.ParentID] = append(children[node.ParentID], node)
		}
	}

	queue := []*Interest{in}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent.ID] {
			child.Level = parent.Level + 1
			child.Path = append(append([]string{}, parent.Path...), child.Name)
			child.UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, child); err != nil {
				return fmt.Errorf("update descendant %s: %w", child.ID, err)
			}
			queue = append(queue, child)
		}
	}
	return nil
}

// checkSiblingName enforces canonical-name uniqueness among the children of
// parentID, excluding selfID.
func (s *Store) checkSiblingName(ctx context.Context, parentID, name, selfID string) error {
	siblings, err := s.repo.Children(ctx, parentID)
	if err != nil {
		return fmt.Errorf("list siblings: %w", err)
	}
	for _, sib := range siblings {
		if sib.ID != selfID && sib.Name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return nil
}

// lock acquires the named mutex and returns its unlock function.
func (s *Store) lock(key string) func() {
	muIface, _ := s.nodeLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) refreshCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("taxonomy cache refresh after mutation failed")
	}
}

func sortTree(nodes []*TreeNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Interest.Name < nodes[j].Interest.Name
	})
	for _, n := range nodes {
		if len(n.Children) > 0 {
			sortTree(n.Children)
		}
	}
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = CanonicalName(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
