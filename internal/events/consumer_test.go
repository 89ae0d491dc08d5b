// Lattice - Social Content Personalization and Feed Ranking
// Copyright 2026 Lattice Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/latticesocial/lattice

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/latticesocial/lattice/internal/config"
	"github.com/latticesocial/lattice/internal/tastegraph"
)

type recordedEngagement struct {
	userID     string
	interestID string
	source     tastegraph.Source
	weight     float64
}

type mockRecorder struct {
	mu       sync.Mutex
	recorded []recordedEngagement
	err      error
	notify   chan struct{}
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{notify: make(chan struct{}, 16)}
}

func (r *mockRecorder) RecordEngagement(_ context.Context, userID, interestID string, source tastegraph.Source, weight float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.recorded = append(r.recorded, recordedEngagement{userID, interestID, source, weight})
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func (r *mockRecorder) all() []recordedEngagement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEngagement(nil), r.recorded...)
}

// runConsumer starts a Consumer over an in-memory pub/sub and returns the
// publisher and a stop function.
func runConsumer(t *testing.T, recorder EngagementRecorder) (*gochannel.GoChannel, func()) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	c := NewConsumer(config.EventsConfig{Topic: "engagement.recorded"}, recorder, zerolog.Nop())
	c.newSubscriber = func() (message.Subscriber, error) {
		return pubSub, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Serve(ctx)
	}()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("consumer did not stop")
		}
	}
	return pubSub, stop
}

func publishEvent(t *testing.T, pub *gochannel.GoChannel, ev EngagementEvent) {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	// Publishing can race the subscription becoming active; retry briefly.
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := pub.Publish("engagement.recorded", msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func waitRecorded(t *testing.T, r *mockRecorder, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for len(r.all()) < n {
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("recorded %d engagements, want %d", len(r.all()), n)
		}
	}
}

func TestConsumerRecordsEngagements(t *testing.T) {
	recorder := newMockRecorder()
	pub, stop := runConsumer(t, recorder)
	defer stop()

	// Give the subscription a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	publishEvent(t, pub, EngagementEvent{
		UserID:     "u1",
		InterestID: "fashion",
		Source:     string(tastegraph.SourceSave),
		Weight:     0.6,
		OccurredAt: time.Now().UTC(),
	})

	waitRecorded(t, recorder, 1)

	got := recorder.all()[0]
	if got.userID != "u1" || got.interestID != "fashion" ||
		got.source != tastegraph.SourceSave || got.weight != 0.6 {
		t.Errorf("recorded = %+v, want the published event", got)
	}
}

func TestConsumerDropsInvalidEvents(t *testing.T) {
	recorder := newMockRecorder()
	pub, stop := runConsumer(t, recorder)
	defer stop()

	time.Sleep(50 * time.Millisecond)

	// Missing user and bogus source are acked and dropped, then a valid
	// event must still come through.
	publishEvent(t, pub, EngagementEvent{InterestID: "fashion", Source: string(tastegraph.SourceView)})
	publishEvent(t, pub, EngagementEvent{UserID: "u1", InterestID: "fashion", Source: "bogus"})
	publishEvent(t, pub, EngagementEvent{
		UserID:     "u1",
		InterestID: "fashion",
		Source:     string(tastegraph.SourceView),
		Weight:     0.2,
	})

	waitRecorded(t, recorder, 1)

	if got := recorder.all(); len(got) != 1 || got[0].weight != 0.2 {
		t.Errorf("recorded = %+v, want only the valid event", got)
	}
}

func TestEngagementEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		ev      EngagementEvent
		wantErr bool
	}{
		{"valid", EngagementEvent{UserID: "u", InterestID: "i", Source: string(tastegraph.SourceSave)}, false},
		{"missing user", EngagementEvent{InterestID: "i", Source: string(tastegraph.SourceSave)}, true},
		{"missing interest", EngagementEvent{UserID: "u", Source: string(tastegraph.SourceSave)}, true},
		{"unknown source", EngagementEvent{UserID: "u", InterestID: "i", Source: "telepathy"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
