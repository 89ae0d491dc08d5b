// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package checkpoint persists batch classification progress so interrupted
// runs resume from the last committed cursor instead of starting over.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const batchKeyPrefix = "classify:batch:"

// Cursor records how far a batch classification run has progressed.
// LastPostID is the highest post ID already classified; the next page
// starts strictly after it.
type Cursor struct {
	RunID         string    `json:"run_id"`
	Version       string    `json:"version"`
	LastPostID    string    `json:"last_post_id"`
	Processed     int64     `json:"processed"`
	Failed        int64     `json:"failed"`
	StartedAt     time.Time `json:"started_at"`
	LastCommitted time.Time `json:"last_committed"`
}

// Store persists cursors between process restarts.
type Store interface {
	Save(ctx context.Context, c *Cursor) error
	Load(ctx context.Context, runID string) (*Cursor, error)
	Clear(ctx context.Context, runID string) error
}

// BadgerStore implements Store on BadgerDB. One key per run ID, so
// concurrent runs with distinct IDs do not interfere.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB instance.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func batchKey(runID string) []byte {
	return []byte(batchKeyPrefix + runID)
}

// Save persists the cursor, overwriting any previous cursor for the run.
func (s *BadgerStore) Save(_ context.Context, c *Cursor) error {
	if c.RunID == "" {
		return errors.New("cursor run id must not be empty")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(batchKey(c.RunID), data)
	})
}

// Load retrieves the cursor for a run. Returns nil, nil when no cursor
// has been saved, which callers treat as "start from the beginning".
func (s *BadgerStore) Load(_ context.Context, runID string) (*Cursor, error) {
	var c Cursor

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(batchKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	if c.RunID == "" {
		return nil, nil
	}
	return &c, nil
}

// Clear removes the cursor after a run completes.
func (s *BadgerStore) Clear(_ context.Context, runID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(batchKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// MemoryStore implements Store in memory for tests and single-shot runs.
type MemoryStore struct {
	cursors map[string]Cursor
}

// NewMemoryStore creates an empty in-memory cursor store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]Cursor)}
}

// Save stores a copy of the cursor.
func (s *MemoryStore) Save(_ context.Context, c *Cursor) error {
	if c.RunID == "" {
		return errors.New("cursor run id must not be empty")
	}
	s.cursors[c.RunID] = *c
	return nil
}

// Load returns a copy of the stored cursor, or nil, nil when absent.
func (s *MemoryStore) Load(_ context.Context, runID string) (*Cursor, error) {
	c, ok := s.cursors[runID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Clear removes the stored cursor.
func (s *MemoryStore) Clear(_ context.Context, runID string) error {
	delete(s.cursors, runID)
	return nil
}
