// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/latticesocial/lattice/internal/checkpoint"
	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/metrics"
)

// Engine runs the two-stage classification pipeline.
type Engine struct {
	repo        Repository
	source      SignalSource
	index       InterestIndex
	checkpoints checkpoint.Store
	cfg         config.ClassifyConfig
	generators  []Generator
	logger      zerolog.Logger

	// postLocks serializes classification per post ID, so concurrent
	// batches over disjoint ranges never block each other.
	postLocks sync.Map
}

// NewEngine wires the standard generator set. checkpoints may be nil when
// batch resumability is not needed (tests, one-shot CLI runs).
func NewEngine(repo Repository, source SignalSource, index InterestIndex,
	checkpoints checkpoint.Store, cfg config.ClassifyConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		repo:        repo,
		source:      source,
		index:       index,
		checkpoints: checkpoints,
		cfg:         cfg,
		generators: []Generator{
			&userTaggedGenerator{index: index},
			&tagMatchGenerator{index: index},
			&captionMatchGenerator{index: index},
			&boardNameGenerator{index: index},
			&similarPostsGenerator{source: source, limit: cfg.SimilarPostsLimit},
			&userBehaviorGenerator{source: source, usersLimit: cfg.BehaviorUsersLimit},
			&noopGenerator{kind: SignalVisualSimilarity},
			&noopGenerator{kind: SignalTFIDF},
		},
		logger: logger.With().Str("component", "classify").Logger(),
	}
}

// Reclassify recomputes and atomically replaces the classification for one
// post. It is idempotent: identical signals yield an identical
// classification set. Returns ErrPostNotFound for unknown posts.
func (e *Engine) Reclassify(ctx context.Context, postID string) (*PostClassification, error) {
	return e.classify(ctx, postID, "single")
}

// Stored returns the persisted classification for a post, or nil when the
// post has never been classified.
func (e *Engine) Stored(ctx context.Context, postID string) (*PostClassification, error) {
	return e.repo.Get(ctx, postID)
}

func (e *Engine) classify(ctx context.Context, postID, trigger string) (*PostClassification, error) {
	if postID == "" {
		return nil, errors.New("post id must not be empty")
	}

	unlock := e.lockPost(postID)
	defer unlock()

	start := time.Now()

	sig, err := e.source.Signals(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post signals: %w", err)
	}

	candidates := e.generate(ctx, sig)
	pc := &PostClassification{
		PostID:          postID,
		Classifications: e.aggregate(candidates),
		ClassifiedAt:    time.Now().UTC(),
		Version:         e.cfg.Version,
	}

	if err := e.repo.Replace(ctx, pc); err != nil {
		return nil, fmt.Errorf("store classification: %w", err)
	}

	metrics.ClassificationsTotal.WithLabelValues(trigger).Inc()
	metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	for _, c := range pc.Classifications {
		metrics.ClassificationConfidence.Observe(c.Confidence)
	}

	e.logger.Debug().
		Str("post_id", postID).
		Int("interests", len(pc.Classifications)).
		Str("trigger", trigger).
		Msg("post classified")

	return pc, nil
}

// generate runs every generator, tolerating individual failures. A failed
// generator is logged and counted; the rest still contribute.
func (e *Engine) generate(ctx context.Context, sig *PostSignals) []Candidate {
	var all []Candidate
	for _, g := range e.generators {
		cands, err := g.Generate(ctx, sig)
		if err != nil {
			metrics.SignalGeneratorFailures.WithLabelValues(string(g.Kind())).Inc()
			e.logger.Warn().
				Err(err).
				Str("post_id", sig.PostID).
				Str("signal", string(g.Kind())).
				Msg("signal generator failed, continuing with remaining signals")
			continue
		}
		all = append(all, cands...)
	}
	return all
}

// aggregate merges candidates per interest with the saturating combination
// 1 - Π(1 - s_i), unions contributing signal kinds, denormalizes interest
// name and level, and applies the minimum-confidence cutoff. Output is
// ordered by confidence descending with interest ID as tiebreak, so
// repeated runs over identical signals produce identical sets.
func (e *Engine) aggregate(candidates []Candidate) []Classification {
	type merged struct {
		miss    float64 // Π(1 - s_i)
		signals []Signal
	}

	byInterest := make(map[string]*merged)
	for _, c := range candidates {
		s := c.Score
		if s <= 0 {
			continue
		}
		if s > 1 {
			s = 1
		}
		m, ok := byInterest[c.InterestID]
		if !ok {
			m = &merged{miss: 1}
			byInterest[c.InterestID] = m
		}
		m.miss *= 1 - s
		m.signals = append(m.signals, c.Signal)
	}

	out := make([]Classification, 0, len(byInterest))
	for id, m := range byInterest {
		in, ok := e.index.Get(id)
		if !ok || !in.Active {
			// Stale ID from a neighborhood signal; drop it.
			continue
		}

		confidence := 1 - m.miss
		if confidence < e.cfg.MinConfidence {
			continue
		}
		if confidence > 1 {
			confidence = 1
		}

		signals := lo.Uniq(m.signals)
		sort.Slice(signals, func(i, j int) bool { return signals[i] < signals[j] })

		out = append(out, Classification{
			InterestID:    in.ID,
			InterestName:  in.Name,
			InterestLevel: in.Level,
			Confidence:    confidence,
			Signals:       signals,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].InterestID < out[j].InterestID
	})
	return out
}

func (e *Engine) lockPost(postID string) func() {
	muIface, _ := e.postLocks.LoadOrStore(postID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// BatchParams controls one batch classification run.
type BatchParams struct {
	// RunID names the run for checkpointing. Empty disables resumability.
	RunID string

	// Limit caps posts processed in this call. Zero uses the configured
	// batch size.
	Limit int

	// UnclassifiedOnly restricts the run to posts with no stored
	// classification.
	UnclassifiedOnly bool
}

// BatchResult reports batch progress.
type BatchResult struct {
	Processed  int64  `json:"processed"`
	Failed     int64  `json:"failed"`
	LastPostID string `json:"last_post_id,omitempty"`

	// Completed is true when the run exhausted matching posts; false means
	// a limit or cancellation stopped it and the cursor was kept.
	Completed bool `json:"completed"`

	// Resumed is true when the run continued from a saved cursor.
	Resumed bool `json:"resumed"`
}

// batchPageSize bounds one repository page inside a batch run.
const batchPageSize = 100

// ClassifyBatch classifies posts in bounded, resumable batches. Progress
// is checkpointed after every page, so a crash mid-run never corrupts
// classifications already written; the next call with the same RunID
// resumes after the last committed post.
func (e *Engine) ClassifyBatch(ctx context.Context, p BatchParams) (BatchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = e.cfg.BatchSize
	}

	cur, res, err := e.loadCursor(ctx, p.RunID)
	if err != nil {
		return res, err
	}

	for res.Processed+res.Failed < int64(limit) {
		page := batchPageSize
		if remaining := int(int64(limit) - res.Processed - res.Failed); remaining < page {
			page = remaining
		}

		ids, err := e.repo.ListPostIDs(ctx, cur.LastPostID, page, p.UnclassifiedOnly)
		if err != nil {
			e.saveCursor(ctx, cur, &res)
			return res, fmt.Errorf("list posts: %w", err)
		}
		if len(ids) == 0 {
			res.Completed = true
			break
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				e.saveCursor(ctx, cur, &res)
				return res, err
			}

			if _, err := e.classify(ctx, id, "batch"); err != nil {
				res.Failed++
				cur.Failed++
				e.logger.Error().Err(err).Str("post_id", id).Msg("batch classification failed for post")
			} else {
				res.Processed++
				cur.Processed++
			}
			cur.LastPostID = id
			res.LastPostID = id
			metrics.BatchPostsProcessed.Inc()
		}

		e.saveCursor(ctx, cur, &res)
	}

	if res.Completed {
		e.clearCursor(ctx, p.RunID)
	} else {
		e.saveCursor(ctx, cur, &res)
	}

	e.logger.Info().
		Str("run_id", p.RunID).
		Int64("processed", res.Processed).
		Int64("failed", res.Failed).
		Bool("completed", res.Completed).
		Msg("batch classification finished")

	return res, nil
}

func (e *Engine) loadCursor(ctx context.Context, runID string) (*checkpoint.Cursor, BatchResult, error) {
	cur := &checkpoint.Cursor{
		RunID:     runID,
		Version:   e.cfg.Version,
		StartedAt: time.Now().UTC(),
	}
	var res BatchResult

	if e.checkpoints == nil || runID == "" {
		return cur, res, nil
	}

	saved, err := e.checkpoints.Load(ctx, runID)
	if err != nil {
		return cur, res, fmt.Errorf("load batch cursor: %w", err)
	}
	if saved != nil {
		cur = saved
		res.Resumed = true
		res.LastPostID = saved.LastPostID
		e.logger.Info().
			Str("run_id", runID).
			Str("last_post_id", saved.LastPostID).
			Int64("already_processed", saved.Processed).
			Msg("resuming batch classification from checkpoint")
	}
	return cur, res, nil
}

func (e *Engine) saveCursor(ctx context.Context, cur *checkpoint.Cursor, res *BatchResult) {
	if e.checkpoints == nil || cur.RunID == "" {
		return
	}
	cur.LastCommitted = time.Now().UTC()
	if err := e.checkpoints.Save(ctx, cur); err != nil {
		// The run keeps going; a lost checkpoint only costs a re-resume.
		e.logger.Warn().Err(err).Str("run_id", cur.RunID).Msg("saving batch cursor failed")
	}
}

func (e *Engine) clearCursor(ctx context.Context, runID string) {
	if e.checkpoints == nil || runID == "" {
		return
	}
	if err := e.checkpoints.Clear(ctx, runID); err != nil {
		e.logger.Warn().Err(err).Str("run_id", runID).Msg("clearing batch cursor failed")
	}
}
