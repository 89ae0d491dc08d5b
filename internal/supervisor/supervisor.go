// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package supervisor wraps suture v4 process supervision. Long-running
// services (HTTP server, taxonomy cache refresher, event consumer) run
// under one tree and are restarted with backoff when they fail.
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// Tree supervises the application's long-running services.
type Tree struct {
	root   *suture.Supervisor
	logger zerolog.Logger
}

// Config tunes restart behavior.
type Config struct {
	// FailureThreshold is how many failures within the decay window trip
	// the supervisor itself.
	FailureThreshold float64

	// FailureBackoff is the pause after the threshold trips.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a stopping service may take before
	// it is reported as stuck.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns suture's production defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// New creates a supervision tree. Suture events flow into the logger.
func New(cfg Config, logger zerolog.Logger) *Tree {
	log := logger.With().Str("component", "supervisor").Logger()

	root := suture.New("lattice", suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
		EventHook: func(e suture.Event) {
			switch e.Type() {
			case suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
				log.Warn().Str("event", e.String()).Msg("Supervised service event")
			default:
				log.Info().Str("event", e.String()).Msg("Supervised service event")
			}
		},
	})

	return &Tree{root: root, logger: log}
}

// Add registers a service with the tree.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// ServeBackground starts the tree. The returned channel yields the tree's
// terminal error once ctx is canceled and all services have stopped.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that failed to stop within the
// shutdown timeout.
func (t *Tree) UnstoppedServiceReport() (suture.UnstoppedServiceReport, error) {
	return t.root.UnstoppedServiceReport()
}
