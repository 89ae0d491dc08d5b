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
	"time"

	"github.com/goccy/go-json"

	"github.com/latticesocial/lattice/internal/classify"
)

// ClassificationStore adapts DB to classify.Repository. The adapter exists
// because the taxonomy repository already claims the Get method name on DB.
type ClassificationStore struct {
	db *DB
}

// Classifications returns the classify.Repository view of the database.
func (db *DB) Classifications() *ClassificationStore {
	return &ClassificationStore{db: db}
}

func (s *ClassificationStore) Get(ctx context.Context, postID string) (*classify.PostClassification, error) {
	return s.db.GetClassification(ctx, postID)
}

func (s *ClassificationStore) Replace(ctx context.Context, pc *classify.PostClassification) error {
	return s.db.ReplaceClassification(ctx, pc)
}

func (s *ClassificationStore) ListPostIDs(ctx context.Context, afterID string, limit int, unclassifiedOnly bool) ([]string, error) {
	return s.db.ListPostIDs(ctx, afterID, limit, unclassifiedOnly)
}

func (s *ClassificationStore) Scan(ctx context.Context, fn func(*classify.PostClassification) error) error {
	return s.db.ScanClassifications(ctx, fn)
}

// GetClassification returns the stored classification for a post, or
// nil, nil when the post has none.
func (db *DB) GetClassification(ctx context.Context, postID string) (*classify.PostClassification, error) {
	stmt, err := db.getStmt(ctx, `SELECT post_id, classifications, classified_at, version
		FROM post_classifications WHERE post_id = ?`)
	if err != nil {
		return nil, err
	}

	pc, err := scanClassification(stmt.QueryRowContext(ctx, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get classification for %s: %w", postID, err)
	}
	return pc, nil
}

// ReplaceClassification implements classify.Repository.Replace: the
// classification row and its per-interest links are swapped in one
// transaction, so readers never see a partial set.
func (db *DB) ReplaceClassification(ctx context.Context, pc *classify.PostClassification) error {
	encoded, err := json.Marshal(pc.Classifications)
	if err != nil {
		return fmt.Errorf("encode classifications: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin classification replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM post_interest_links WHERE post_id = ?`, pc.PostID); err != nil {
		return fmt.Errorf("clear interest links for %s: %w", pc.PostID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO post_classifications (post_id, classifications, classified_at, version)
		VALUES (?, ?, ?, ?)`,
		pc.PostID, string(encoded), pc.ClassifiedAt, pc.Version); err != nil {
		return fmt.Errorf("store classification for %s: %w", pc.PostID, err)
	}
	for _, c := range pc.Classifications {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_interest_links (post_id, interest_id, confidence) VALUES (?, ?, ?)`,
			pc.PostID, c.InterestID, c.Confidence); err != nil {
			return fmt.Errorf("store interest link %s/%s: %w", pc.PostID, c.InterestID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit classification replace: %w", err)
	}
	return nil
}

// ListPostIDs implements classify.Repository.
func (db *DB) ListPostIDs(ctx context.Context, afterID string, limit int, unclassifiedOnly bool) ([]string, error) {
	query := `SELECT id FROM posts WHERE id > ? ORDER BY id LIMIT ?`
	if unclassifiedOnly {
		query = `SELECT p.id FROM posts p
			LEFT JOIN post_classifications pc ON pc.post_id = p.id
			WHERE p.id > ? AND pc.post_id IS NULL
			ORDER BY p.id LIMIT ?`
	}

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list post ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ScanClassifications implements classify.Repository.Scan.
func (db *DB) ScanClassifications(ctx context.Context, fn func(*classify.PostClassification) error) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT post_id, classifications, classified_at, version FROM post_classifications`)
	if err != nil {
		return fmt.Errorf("scan classifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pc, err := scanClassification(rows)
		if err != nil {
			return fmt.Errorf("scan classification row: %w", err)
		}
		if err := fn(pc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Signals implements classify.SignalSource.
func (db *DB) Signals(ctx context.Context, postID string) (*classify.PostSignals, error) {
	stmt, err := db.getStmt(ctx,
		`SELECT id, author_id, caption, tags, tagged_interest_ids, board_names FROM posts WHERE id = ?`)
	if err != nil {
		return nil, err
	}

	var (
		sig                         classify.PostSignals
		tags, taggedIDs, boardNames string
	)
	err = stmt.QueryRowContext(ctx, postID).Scan(&sig.PostID, &sig.AuthorID, &sig.Caption,
		&tags, &taggedIDs, &boardNames)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %q: %w", postID, classify.ErrPostNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load signals for %s: %w", postID, err)
	}

	if err := json.Unmarshal([]byte(tags), &sig.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", postID, err)
	}
	if err := json.Unmarshal([]byte(taggedIDs), &sig.TaggedInterestIDs); err != nil {
		return nil, fmt.Errorf("decode tagged interests for %s: %w", postID, err)
	}
	if err := json.Unmarshal([]byte(boardNames), &sig.BoardNames); err != nil {
		return nil, fmt.Errorf("decode board names for %s: %w", postID, err)
	}
	return &sig, nil
}

// SimilarClassified implements classify.SignalSource: classifications of
// the post's content-similarity neighborhood, strongest first.
func (db *DB) SimilarClassified(ctx context.Context, postID string, limit int) ([]*classify.PostClassification, error) {
	stmt, err := db.getStmt(ctx, `SELECT pc.post_id, pc.classifications, pc.classified_at, pc.version
		FROM post_similarities ps
		JOIN post_classifications pc ON pc.post_id = ps.similar_post_id
		WHERE ps.post_id = ?
		ORDER BY ps.similarity DESC
		LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("load similar classifications for %s: %w", postID, err)
	}
	defer rows.Close()

	var out []*classify.PostClassification
	for rows.Next() {
		pc, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan similar classification: %w", err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// CoEngagedAffinities implements classify.SignalSource: the mean affinity
// per interest across users who engaged with the post.
func (db *DB) CoEngagedAffinities(ctx context.Context, postID string, usersLimit int) (map[string]float64, error) {
	stmt, err := db.getStmt(ctx, `SELECT ta.interest_id, AVG(ta.score)
		FROM (
			SELECT DISTINCT user_id FROM post_engagements WHERE post_id = ? LIMIT ?
		) eng
		JOIN taste_affinities ta ON ta.user_id = eng.user_id
		GROUP BY ta.interest_id`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, postID, usersLimit)
	if err != nil {
		return nil, fmt.Errorf("load co-engagement affinities for %s: %w", postID, err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var interestID string
		var strength float64
		if err := rows.Scan(&interestID, &strength); err != nil {
			return nil, fmt.Errorf("scan co-engagement affinity: %w", err)
		}
		out[interestID] = strength
	}
	return out, rows.Err()
}

// InsertPost stores a post's classification inputs.
func (db *DB) InsertPost(ctx context.Context, sig *classify.PostSignals, createdAt time.Time) error {
	tags, err := json.Marshal(emptyIfNil(sig.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	taggedIDs, err := json.Marshal(emptyIfNil(sig.TaggedInterestIDs))
	if err != nil {
		return fmt.Errorf("encode tagged interests: %w", err)
	}
	boardNames, err := json.Marshal(emptyIfNil(sig.BoardNames))
	if err != nil {
		return fmt.Errorf("encode board names: %w", err)
	}

	stmt, err := db.getStmt(ctx, `INSERT OR REPLACE INTO posts
		(id, author_id, caption, tags, tagged_interest_ids, board_names, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, sig.PostID, sig.AuthorID, sig.Caption,
		string(tags), string(taggedIDs), string(boardNames), createdAt)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", sig.PostID, err)
	}
	return nil
}

// InsertEngagement records one user action on a post for the co-engagement
// signal.
func (db *DB) InsertEngagement(ctx context.Context, postID, userID, action string, at time.Time) error {
	stmt, err := db.getStmt(ctx,
		`INSERT INTO post_engagements (post_id, user_id, action, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, postID, userID, action, at); err != nil {
		return fmt.Errorf("insert engagement %s/%s: %w", postID, userID, err)
	}
	return nil
}

// InsertSimilarity records a content-similarity edge between two posts.
func (db *DB) InsertSimilarity(ctx context.Context, postID, similarPostID string, similarity float64) error {
	stmt, err := db.getStmt(ctx, `INSERT OR REPLACE INTO post_similarities
		(post_id, similar_post_id, similarity) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, postID, similarPostID, similarity); err != nil {
		return fmt.Errorf("insert similarity %s/%s: %w", postID, similarPostID, err)
	}
	return nil
}

func scanClassification(row rowScanner) (*classify.PostClassification, error) {
	var pc classify.PostClassification
	var encoded string
	if err := row.Scan(&pc.PostID, &encoded, &pc.ClassifiedAt, &pc.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(encoded), &pc.Classifications); err != nil {
		return nil, fmt.Errorf("decode classifications for %s: %w", pc.PostID, err)
	}
	return &pc, nil
}
