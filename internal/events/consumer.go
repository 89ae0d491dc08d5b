// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

// Package events ingests engagement events from NATS JetStream and feeds
// them into users' taste graphs. The consumer is optional: when disabled,
// engagements are recorded only through the HTTP API.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/tastegraph"
)

// EngagementEvent is the wire format published by the content pipeline
// whenever a user interaction qualifies as interest evidence. The pipeline
// resolves posts to interest IDs before publishing.
type EngagementEvent struct {
	UserID     string    `json:"user_id"`
	InterestID string    `json:"interest_id"`
	Source     string    `json:"source"`
	Weight     float64   `json:"weight"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate checks the fields a taste-graph write requires.
func (e *EngagementEvent) Validate() error {
	if e.UserID == "" {
		return errors.New("user_id is required")
	}
	if e.InterestID == "" {
		return errors.New("interest_id is required")
	}
	if !tastegraph.Source(e.Source).Valid() {
		return fmt.Errorf("unknown engagement source %q", e.Source)
	}
	return nil
}

// EngagementRecorder is the taste-graph write surface the consumer needs.
// *tastegraph.Service satisfies it.
type EngagementRecorder interface {
	RecordEngagement(ctx context.Context, userID, interestID string, source tastegraph.Source, weight float64) error
}

// Consumer subscribes to the engagement topic and records each event. It
// implements suture.Service and is restarted by the supervisor on failure.
type Consumer struct {
	cfg      config.EventsConfig
	recorder EngagementRecorder
	logger   zerolog.Logger

	// newSubscriber is swapped in tests.
	newSubscriber func() (message.Subscriber, error)
}

// NewConsumer builds the JetStream consumer. It does not connect until
// Serve runs, so construction never fails on broker availability.
func NewConsumer(cfg config.EventsConfig, recorder EngagementRecorder, logger zerolog.Logger) *Consumer {
	c := &Consumer{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With().Str("component", "events").Logger(),
	}
	c.newSubscriber = c.natsSubscriber
	return c
}

func (c *Consumer) natsSubscriber() (message.Subscriber, error) {
	wmLogger := newWatermillLogger(c.logger)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				c.logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			c.logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.AckWait(c.cfg.AckWait),
		natsgo.DeliverNew(),
	}

	return wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              c.cfg.URL,
		QueueGroupPrefix: c.cfg.QueueGroup,
		SubscribersCount: c.cfg.SubscribersCount,
		AckWaitTimeout:   c.cfg.AckWait,
		CloseTimeout:     c.cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    true,
			SubscribeOptions: subOpts,
			DurablePrefix:    c.cfg.DurableName,
		},
	}, wmLogger)
}

// Serve consumes engagement events until the context is canceled.
func (c *Consumer) Serve(ctx context.Context) error {
	sub, err := c.newSubscriber()
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("closing subscriber failed")
		}
	}()

	messages, err := sub.Subscribe(ctx, c.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.cfg.Topic, err)
	}

	c.logger.Info().Str("topic", c.cfg.Topic).Msg("engagement consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("subscription channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

// handle records one event. Malformed payloads are acked and dropped:
// redelivery cannot fix them. Recording failures are nacked for retry.
func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	var ev EngagementEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable engagement event")
		msg.Ack()
		return
	}
	if err := ev.Validate(); err != nil {
		c.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("dropping invalid engagement event")
		msg.Ack()
		return
	}

	err := c.recorder.RecordEngagement(ctx, ev.UserID, ev.InterestID, tastegraph.Source(ev.Source), ev.Weight)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Str("user_id", ev.UserID).
			Msg("recording engagement failed, message will be redelivered")
		msg.Nack()
		return
	}

	msg.Ack()
}

// String names the service in supervisor logs.
func (c *Consumer) String() string { return "engagement-consumer" }
