// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Lattice serves the personalization subsystem: interest taxonomy,
// per-user taste graphs, post classification and feed ranking behind one
// HTTP API, with an optional NATS consumer feeding engagement events into
// the taste graphs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/latticesocial/lattice/internal/api"
	"github.com/latticesocial/lattice/internal/checkpoint"
	"github.com/latticesocial/lattice/internal/classify"
	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/database"
	"github.com/latticesocial/lattice/internal/events"
	"github.com/latticesocial/lattice/internal/logging"
	"github.com/latticesocial/lattice/internal/rank"
	"github.com/latticesocial/lattice/internal/supervisor"
	"github.com/latticesocial/lattice/internal/tastegraph"
	"github.com/latticesocial/lattice/internal/taxonomy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("Lattice starting")

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Badger holds batch-classification checkpoints so interrupted runs
	// resume instead of restarting.
	badgerOpts := badger.DefaultOptions(cfg.Classify.CheckpointPath).WithLogger(nil)
	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Classify.CheckpointPath).
			Msg("Failed to open checkpoint store")
	}
	defer func() {
		if err := badgerDB.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing checkpoint store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Domain services.
	cache := taxonomy.NewCache(db, cfg.Taxonomy.CacheRefreshInterval, logger)
	if err := cache.Refresh(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load taxonomy cache")
	}
	store := taxonomy.NewStore(db, cfg.Taxonomy, cache, logger)
	taste := tastegraph.NewService(db, cfg.TasteGraph, logger)
	engine := classify.NewEngine(db.Classifications(), db, cache,
		checkpoint.NewBadgerStore(badgerDB), cfg.Classify, logger)
	ranker := rank.NewEngine(taste, cfg.Rank, logger)

	handler := api.NewHandler(cfg.API, store, cache, taste, engine, ranker, db, logger)
	router := api.NewRouter(handler, api.NewMiddleware(cfg.API))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.New(supervisor.DefaultConfig(), logger)
	tree.Add(cache)
	tree.Add(supervisor.NewHTTPServerService(server, 10*time.Second))

	if cfg.Events.Enabled {
		tree.Add(events.NewConsumer(cfg.Events, taste, logger))
		logger.Info().
			Str("url", cfg.Events.URL).
			Str("topic", cfg.Events.Topic).
			Msg("Engagement event consumer enabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logger.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logger.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logger.Info().Msg("Lattice stopped")
}
