// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package taxonomy

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/config"
)

// memRepo is an in-memory Repository for tests. It stores copies so callers
// cannot mutate repository state without going through Update, mimicking a
// real document store.
type memRepo struct {
	mu         sync.Mutex
	interests  map[string]*Interest
	postCounts map[string]int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		interests:  make(map[string]*Interest),
		postCounts: make(map[string]int64),
	}
}

func copyInterest(in *Interest) *Interest {
	cp := *in
	cp.Path = append([]string{}, in.Path...)
	cp.Keywords = append([]string{}, in.Keywords...)
	cp.RelatedIDs = append([]string{}, in.RelatedIDs...)
	return &cp
}

func (r *memRepo) Get(_ context.Context, id string) (*Interest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyInterest(in), nil
}

func (r *memRepo) List(_ context.Context) ([]*Interest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Interest, 0, len(r.interests))
	for _, in := range r.interests {
		out = append(out, copyInterest(in))
	}
	return out, nil
}

func (r *memRepo) Children(_ context.Context, parentID string) ([]*Interest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Interest
	for _, in := range r.interests {
		if in.ParentID == parentID {
			out = append(out, copyInterest(in))
		}
	}
	return out, nil
}

func (r *memRepo) Insert(_ context.Context, in *Interest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interests[in.ID] = copyInterest(in)
	return nil
}

func (r *memRepo) Update(_ context.Context, in *Interest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.interests[in.ID]; !ok {
		return ErrNotFound
	}
	r.interests[in.ID] = copyInterest(in)
	return nil
}

func (r *memRepo) CountClassifiedPosts(_ context.Context, interestID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.postCounts[interestID], nil
}

func testStore() (*Store, *memRepo) {
	repo := newMemRepo()
	cfg := config.TaxonomyConfig{MaxDepth: 10}
	return NewStore(repo, cfg, nil, zerolog.Nop()), repo
}

func TestCreateRootInterest(t *testing.T) {
	store, _ := testStore()
	ctx := context.Background()

	in, err := store.Create(ctx, CreateParams{Name: "Fashion", Keywords: []string{"Style", "style", ""}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if in.Level != 0 {
		t.Errorf("root level = %d, want 0", in.Level)
	}
	if !reflect.DeepEqual(in.Path, []string{"fashion"}) {
		t.Errorf("root path = %v, want [fashion]", in.Path)
	}
	if in.ParentID != "" {
		t.Errorf("root parentID = %q, want empty", in.ParentID)
	}
	if !in.Active {
		t.Error("new interest must be active")
	}
	// Keywords are normalized and deduplicated.
	if !reflect.DeepEqual(in.Keywords, []string{"style"}) {
		t.Errorf("keywords = %v, want [style]", in.Keywords)
	}
}

func TestCreateChildComputesLevelAndPath(t *testing.T) {
	store, _ := testStore()
	ctx := context.Background()

	root, _ := store.Create(ctx, CreateParams{Name: "fashion"})
	child, err := store.Create(ctx, CreateParams{ParentID: root.ID, Name: "Streetwear"})
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}

	if child.Level != root.Level+1 {
		t.Errorf("child level = %d, want %d", child.Level, root.Level+1)
	}
	wantPath := append(append([]string{}, root.Path...), "streetwear")
	if !reflect.DeepEqual(child.Path, wantPath) {
		t.Errorf("child path = %v, want %v", child.Path, wantPath)
	}
	if child.Level != len(child.Path)-1 {
		t.Errorf("invariant level == len(path)-1 violated: level=%d path=%v", child.Level, child.Path)
	}
}

func TestCreateRejectsMissingParent(t *testing.T) {
	store, _ := testStore()

	_, err := store.Create(context.Background(), CreateParams{ParentID: "nope", Name: "x"})
	if !errors.Is(err, ErrInvalidParent) {
		t.Errorf("err = %v, want ErrInvalidParent", err)
	}
}

func TestCreateRejectsEmptyName(t *testing.T) {
	store, _ := testStore()

	_, err := store.Create(context.Background(), CreateParams{Name: "   "})
	if !errors.Is(err, ErrEmptyName) {
		t.Errorf("err = %v, want ErrEmptyName", err)
	}
}

func TestSiblingNameUniqueness(t *testing.T) {
	store, _ := testStore()
	ctx := context.Background()

	root, _ := store.Create(ctx, CreateParams{Name: "travel"})
	if _, err := store.Create(ctx, CreateParams{ParentID: root.ID, Name: "beaches"}); err != nil {
		t.Fatalf("first child: %v", err)
	}

	// Same canonical name under the same parent is rejected.
	_, err := store.Create(ctx, CreateParams{ParentID: root.ID, Name: "  Beaches "})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}

	// The same name under a different parent is fine.
	other, _ := store.Create(ctx, CreateParams{Name: "photography"})
	if _, err := store.Create(ctx, CreateParams{ParentID: other.ID, Name: "beaches"}); err != nil {
		t.Errorf("same name under different parent: %v", err)
	}
}

func TestSelfParentRejected(t *testing.T) {
	store, _ := testStore()
	ctx := context.Background()

	in, _ := store.Create(ctx, CreateParams{Name: "food"})
	_, err := store.Update(ctx, in.ID, UpdateParams{ParentID: &in.ID})
	if !errors.Is(err, ErrInvalidParent) {
		t.Errorf("self-parent err = %v, want ErrInvalidParent", err)
	}
}

func TestCycleRejected(t *testing.T) {
	store, _ := testStore()
	ctx := context.Background()

	a, _ := store.Create(ctx, CreateParams{Name: "a"})
	b, _ := store.Create(ctx, CreateParams{ParentID: a.ID, Name: "b"})
	c, _ := store.Create(ctx, CreateParams{ParentID: b.ID, Name: "c"})

	// Making a a child of its grandchild would create a cycle.
	_, err := store.Update(ctx, a.ID, UpdateParams{ParentID: &c.ID})
	if !errors.Is(err, ErrInvalidParent) {
		t.Errorf("cycle err = %v, want ErrInvalidParent", err)
	}
}

func TestReparentRecomputesSubtree(t *testing.T) {
	store, repo := testStore()
	ctx := context.Background()

	oldRoot, _ := store.Create(ctx, CreateParams{Name: "old"})
	newRoot, _ := store.Create(ctx, CreateParams{Name: "new"})
	mid, _ := store.Create(ctx, CreateParams{ParentID: oldRoot.ID, Name: "mid"})
	leaf, _ := store.Create(ctx, CreateParams{ParentID: mid.ID, Name: "leaf"})

	if _, err := store.Update(ctx, mid.ID, UpdateParams{ParentID: &newRoot.ID}); err != nil {
		t.Fatalf("reparent: %v", err)
	}

	gotMid, _ := repo.Get(ctx, mid.ID)
	if !reflect.DeepEqual(gotMid.Path, []string{"new", "mid"}) {
		t.Errorf("mid path = %v, want [new mid]", gotMid.Path)
	}
	gotLeaf, _ := repo.Get(ctx, leaf.ID)
	if !reflect.DeepEqual(gotLeaf.Path, []string{"new", "mid", "leaf"}) {
		t.Errorf("leaf path = %v, want [new mid leaf]", gotLeaf.Path)
	}
	if gotLeaf.Level != 2 {
		t.Errorf("leaf level = %d, want 2", gotLeaf.Level)
	}
}

func TestDeactivateKeepsNode(t *testing.T) {
	store, repo := testStore()
	ctx := context.Background()

	in, _ := store.Create(ctx, CreateParams{Name: "fitness"})
	if err := store.Deactivate(ctx, in.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	got, err := repo.Get(ctx, in.ID)
	if err != nil {
		t.Fatalf("deactivated interest must still exist: %v", err)
	}
	if got.Active {
		t.Error("interest still active after Deactivate")
	}
}

func TestRecalculateStats(t *testing.T) {
	store, repo := testStore()
	ctx := context.Background()

	in, _ := store.Create(ctx, CreateParams{Name: "music"})
	repo.mu.Lock()
	repo.postCounts[in.ID] = 42
	repo.mu.Unlock()

	delta, err := store.RecalculateStats(ctx, in.ID)
	if err != nil {
		t.Fatalf("RecalculateStats: %v", err)
	}
	if delta.OldCount != 0 || delta.NewCount != 42 {
		t.Errorf("delta = %+v, want old=0 new=42", delta)
	}

	// Idempotent: a second run reports no change.
	delta2, err := store.RecalculateStats(ctx, in.ID)
	if err != nil {
		t.Fatalf("second RecalculateStats: %v", err)
	}
	if delta2.OldCount != 42 || delta2.NewCount != 42 {
		t.Errorf("second delta = %+v, want old=42 new=42", delta2)
	}
}

func TestTree(t *testing.T) {
	store, _ := testStore()
	ctx := context.Background()

	root, _ := store.Create(ctx, CreateParams{Name: "art"})
	store.Create(ctx, CreateParams{ParentID: root.ID, Name: "photography"}) //nolint:errcheck
	store.Create(ctx, CreateParams{ParentID: root.ID, Name: "ceramics"})   //nolint:errcheck
	store.Create(ctx, CreateParams{Name: "travel"})                        //nolint:errcheck

	full, err := store.Tree(ctx, false)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(full) != 2 {
		t.Fatalf("roots = %d, want 2", len(full))
	}
	// Sorted by name: art before travel.
	if full[0].Interest.Name != "art" || len(full[0].Children) != 2 {
		t.Errorf("art subtree malformed: %+v", full[0])
	}
	if full[0].Children[0].Interest.Name != "ceramics" {
		t.Errorf("children not sorted: got %q first", full[0].Children[0].Interest.Name)
	}

	roots, err := store.Tree(ctx, true)
	if err != nil {
		t.Fatalf("Tree roots only: %v", err)
	}
	for _, r := range roots {
		if len(r.Children) != 0 {
			t.Errorf("rootsOnly tree has children: %+v", r)
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store, repo := testStore()
	ctx := context.Background()

	first, err := Seed(ctx, store)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if first == 0 {
		t.Fatal("first seed created nothing")
	}

	second, err := Seed(ctx, store)
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if second != 0 {
		t.Errorf("second seed created %d interests, want 0", second)
	}

	all, _ := repo.List(ctx)
	for _, in := range all {
		if in.Level != len(in.Path)-1 {
			t.Errorf("seeded %q violates level/path invariant: level=%d path=%v", in.Name, in.Level, in.Path)
		}
	}
}
