// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})
	return db
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"badger": NewBadgerStore(openTestBadger(t)),
		"memory": NewMemoryStore(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := &Cursor{
				RunID:         "run-1",
				Version:       "v1",
				LastPostID:    "post-900",
				Processed:     900,
				Failed:        3,
				StartedAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
				LastCommitted: time.Date(2026, 3, 1, 8, 12, 0, 0, time.UTC),
			}

			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := store.Load(ctx, "run-1")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got == nil {
				t.Fatal("Load returned nil for saved cursor")
			}
			if got.LastPostID != want.LastPostID || got.Processed != want.Processed ||
				got.Failed != want.Failed || got.Version != want.Version {
				t.Errorf("loaded cursor = %+v, want %+v", got, want)
			}
			if !got.LastCommitted.Equal(want.LastCommitted) {
				t.Errorf("LastCommitted = %v, want %v", got.LastCommitted, want.LastCommitted)
			}
		})
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Load(context.Background(), "never-saved")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != nil {
				t.Errorf("Load = %+v, want nil", got)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := &Cursor{RunID: "run-1", LastPostID: "post-100", Processed: 100}
			second := &Cursor{RunID: "run-1", LastPostID: "post-200", Processed: 200}

			if err := store.Save(ctx, first); err != nil {
				t.Fatal(err)
			}
			if err := store.Save(ctx, second); err != nil {
				t.Fatal(err)
			}

			got, err := store.Load(ctx, "run-1")
			if err != nil {
				t.Fatal(err)
			}
			if got.LastPostID != "post-200" || got.Processed != 200 {
				t.Errorf("loaded cursor = %+v, want the later save", got)
			}
		})
	}
}

func TestRunsAreIsolated(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Save(ctx, &Cursor{RunID: "a", LastPostID: "p1"}); err != nil {
				t.Fatal(err)
			}
			if err := store.Save(ctx, &Cursor{RunID: "b", LastPostID: "p2"}); err != nil {
				t.Fatal(err)
			}
			if err := store.Clear(ctx, "a"); err != nil {
				t.Fatal(err)
			}

			gotA, _ := store.Load(ctx, "a")
			if gotA != nil {
				t.Errorf("cleared run still present: %+v", gotA)
			}
			gotB, err := store.Load(ctx, "b")
			if err != nil || gotB == nil || gotB.LastPostID != "p2" {
				t.Errorf("sibling run affected by clear: %+v, %v", gotB, err)
			}
		})
	}
}

func TestClearMissingIsNoop(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Clear(context.Background(), "absent"); err != nil {
				t.Errorf("Clear on missing cursor: %v", err)
			}
		})
	}
}

func TestSaveRejectsEmptyRunID(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(context.Background(), &Cursor{}); err == nil {
				t.Error("Save accepted empty run id")
			}
		})
	}
}
