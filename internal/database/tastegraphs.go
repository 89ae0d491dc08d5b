// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/latticesocial/lattice/internal/tastegraph"
)

// Graph implements tastegraph.Repository. Unknown users get an empty
// graph, never an error.
func (db *DB) Graph(ctx context.Context, userID string) (*tastegraph.TasteGraph, error) {
	stmt, err := db.getStmt(ctx, `SELECT interest_id, score, source, engagement_count,
		first_engagement, last_engagement, decay_factor
		FROM taste_affinities WHERE user_id = ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load taste graph for %s: %w", userID, err)
	}
	defer rows.Close()

	g := tastegraph.NewTasteGraph(userID)
	var latest time.Time
	for rows.Next() {
		var a tastegraph.Affinity
		var source string
		err := rows.Scan(&a.InterestID, &a.Score, &source, &a.EngagementCount,
			&a.FirstEngagement, &a.LastEngagement, &a.DecayFactor)
		if err != nil {
			return nil, fmt.Errorf("scan affinity: %w", err)
		}
		a.Source = tastegraph.Source(source)
		g.Interests[a.InterestID] = &a
		if a.LastEngagement.After(latest) {
			latest = a.LastEngagement
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load taste graph for %s: %w", userID, err)
	}

	g.LastUpdated = latest
	return g, nil
}

// UpsertAffinity implements tastegraph.Repository.
func (db *DB) UpsertAffinity(ctx context.Context, userID string, a *tastegraph.Affinity) error {
	stmt, err := db.getStmt(ctx, `INSERT OR REPLACE INTO taste_affinities
		(user_id, interest_id, score, source, engagement_count, first_engagement, last_engagement, decay_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, userID, a.InterestID, a.Score, string(a.Source),
		a.EngagementCount, a.FirstEngagement, a.LastEngagement, a.DecayFactor)
	if err != nil {
		return fmt.Errorf("upsert affinity %s/%s: %w", userID, a.InterestID, err)
	}
	return nil
}
