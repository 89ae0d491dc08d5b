// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package database implements the persistence layer on DuckDB: the
// interest taxonomy, per-user taste graphs, post signals and stored
// classifications. One DB value implements the repository interfaces the
// domain packages define.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/config"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn   *sql.DB
	cfg    config.DatabaseConfig
	logger zerolog.Logger

	// Prepared statement cache, double-checked locking. Statements are
	// closed by Close.
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// New opens (or creates) the database file and initializes the schema.
func New(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s", cfg.Path, threads, cfg.MaxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		logger:    logger.With().Str("component", "database").Logger(),
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	db.logger.Info().Str("path", cfg.Path).Msg("database opened")
	return db, nil
}

// createTables creates the schema. All columns are defined up front; list
// fields are stored as JSON text.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS interests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			display_name TEXT NOT NULL,
			parent_id TEXT,
			level INTEGER NOT NULL,
			path TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			post_count BIGINT NOT NULL DEFAULT 0,
			follower_count BIGINT NOT NULL DEFAULT 0,
			weekly_growth DOUBLE NOT NULL DEFAULT 0,
			monthly_growth DOUBLE NOT NULL DEFAULT 0,
			keywords TEXT NOT NULL DEFAULT '[]',
			related_ids TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interests_parent ON interests (parent_id)`,

		`CREATE TABLE IF NOT EXISTS taste_affinities (
			user_id TEXT NOT NULL,
			interest_id TEXT NOT NULL,
			score DOUBLE NOT NULL,
			source TEXT NOT NULL,
			engagement_count BIGINT NOT NULL,
			first_engagement TIMESTAMP NOT NULL,
			last_engagement TIMESTAMP NOT NULL,
			decay_factor DOUBLE NOT NULL,
			PRIMARY KEY (user_id, interest_id)
		)`,

		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			author_id TEXT NOT NULL DEFAULT '',
			caption TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			tagged_interest_ids TEXT NOT NULL DEFAULT '[]',
			board_names TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS post_classifications (
			post_id TEXT PRIMARY KEY,
			classifications TEXT NOT NULL,
			classified_at TIMESTAMP NOT NULL,
			version TEXT NOT NULL
		)`,

		// One row per (post, interest) kept in lockstep with
		// post_classifications for cheap per-interest aggregation.
		`CREATE TABLE IF NOT EXISTS post_interest_links (
			post_id TEXT NOT NULL,
			interest_id TEXT NOT NULL,
			confidence DOUBLE NOT NULL,
			PRIMARY KEY (post_id, interest_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_interest ON post_interest_links (interest_id)`,

		`CREATE TABLE IF NOT EXISTS post_similarities (
			post_id TEXT NOT NULL,
			similar_post_id TEXT NOT NULL,
			similarity DOUBLE NOT NULL,
			PRIMARY KEY (post_id, similar_post_id)
		)`,

		`CREATE TABLE IF NOT EXISTS post_engagements (
			post_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_post ON post_engagements (post_id)`,
	}

	for _, q := range queries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

// getStmt returns a cached prepared statement, preparing it on first use.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if stmt, ok = db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// Conn exposes the underlying handle for health checks.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases prepared statements and the connection.
func (db *DB) Close() error {
	db.stmtCacheMu.Lock()
	for _, stmt := range db.stmtCache {
		_ = stmt.Close()
	}
	db.stmtCache = make(map[string]*sql.Stmt)
	db.stmtCacheMu.Unlock()

	return db.conn.Close()
}
