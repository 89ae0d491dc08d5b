// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/latticesocial/lattice/internal/taxonomy"
)

const interestColumns = `id, name, display_name, COALESCE(parent_id, ''), level, path, active,
	post_count, follower_count, weekly_growth, monthly_growth, keywords, related_ids,
	created_at, updated_at`

// Get implements taxonomy.Repository.
func (db *DB) Get(ctx context.Context, id string) (*taxonomy.Interest, error) {
	stmt, err := db.getStmt(ctx, `SELECT `+interestColumns+` FROM interests WHERE id = ?`)
	if err != nil {
		return nil, err
	}

	in, err := scanInterest(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, taxonomy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get interest %s: %w", id, err)
	}
	return in, nil
}

// List implements taxonomy.Repository.
func (db *DB) List(ctx context.Context) ([]*taxonomy.Interest, error) {
	stmt, err := db.getStmt(ctx, `SELECT `+interestColumns+` FROM interests ORDER BY id`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	return collectInterests(rows)
}

// Children implements taxonomy.Repository. An empty parentID returns roots.
func (db *DB) Children(ctx context.Context, parentID string) ([]*taxonomy.Interest, error) {
	stmt, err := db.getStmt(ctx,
		`SELECT `+interestColumns+` FROM interests WHERE COALESCE(parent_id, '') = ? ORDER BY name`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children of %q: %w", parentID, err)
	}
	defer rows.Close()

	return collectInterests(rows)
}

// Insert implements taxonomy.Repository.
func (db *DB) Insert(ctx context.Context, in *taxonomy.Interest) error {
	stmt, err := db.getStmt(ctx, `INSERT INTO interests (`+
		`id, name, display_name, parent_id, level, path, active, post_count, follower_count,`+
		`weekly_growth, monthly_growth, keywords, related_ids, created_at, updated_at`+
		`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	args, err := interestArgs(in)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("insert interest %s: %w", in.ID, err)
	}
	return nil
}

// Update implements taxonomy.Repository.
func (db *DB) Update(ctx context.Context, in *taxonomy.Interest) error {
	stmt, err := db.getStmt(ctx, `UPDATE interests SET
		name = ?, display_name = ?, parent_id = ?, level = ?, path = ?, active = ?,
		post_count = ?, follower_count = ?, weekly_growth = ?, monthly_growth = ?,
		keywords = ?, related_ids = ?, created_at = ?, updated_at = ?
		WHERE id = ?`)
	if err != nil {
		return err
	}

	args, err := interestArgs(in)
	if err != nil {
		return err
	}
	// interestArgs puts the ID first; UPDATE wants it last.
	args = append(args[1:], args[0])

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return fmt.Errorf("update interest %s: %w", in.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return taxonomy.ErrNotFound
	}
	return nil
}

// CountClassifiedPosts implements taxonomy.Repository using the
// per-interest link table maintained by ReplaceClassification.
func (db *DB) CountClassifiedPosts(ctx context.Context, interestID string) (int64, error) {
	stmt, err := db.getStmt(ctx, `SELECT COUNT(*) FROM post_interest_links WHERE interest_id = ?`)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := stmt.QueryRowContext(ctx, interestID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count classified posts for %s: %w", interestID, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterest(row rowScanner) (*taxonomy.Interest, error) {
	var (
		in                         taxonomy.Interest
		path, keywords, relatedIDs string
	)
	err := row.Scan(&in.ID, &in.Name, &in.DisplayName, &in.ParentID, &in.Level, &path,
		&in.Active, &in.PostCount, &in.FollowerCount, &in.WeeklyGrowth, &in.MonthlyGrowth,
		&keywords, &relatedIDs, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(path), &in.Path); err != nil {
		return nil, fmt.Errorf("decode path for %s: %w", in.ID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &in.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords for %s: %w", in.ID, err)
	}
	if err := json.Unmarshal([]byte(relatedIDs), &in.RelatedIDs); err != nil {
		return nil, fmt.Errorf("decode related ids for %s: %w", in.ID, err)
	}
	return &in, nil
}

func collectInterests(rows *sql.Rows) ([]*taxonomy.Interest, error) {
	var out []*taxonomy.Interest
	for rows.Next() {
		in, err := scanInterest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func interestArgs(in *taxonomy.Interest) ([]any, error) {
	path, err := json.Marshal(in.Path)
	if err != nil {
		return nil, fmt.Errorf("encode path: %w", err)
	}
	keywords, err := json.Marshal(emptyIfNil(in.Keywords))
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}
	relatedIDs, err := json.Marshal(emptyIfNil(in.RelatedIDs))
	if err != nil {
		return nil, fmt.Errorf("encode related ids: %w", err)
	}

	var parentID any
	if in.ParentID != "" {
		parentID = in.ParentID
	}

	return []any{
		in.ID, in.Name, in.DisplayName, parentID, in.Level, string(path), in.Active,
		in.PostCount, in.FollowerCount, in.WeeklyGrowth, in.MonthlyGrowth,
		string(keywords), string(relatedIDs), in.CreatedAt, in.UpdatedAt,
	}, nil
}

// emptyIfNil keeps stored JSON as [] instead of null.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
