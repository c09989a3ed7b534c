package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"opencast/internal/shared/events"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	if err := bus.Subscribe(ctx, "org-events", "audit", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	envelope := events.Envelope{EventID: "evt_1", EventType: "organization.created"}
	if err := bus.Publish(context.Background(), "org-events", envelope); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-received:
		if got.EventID != "evt_1" || got.EventType != "organization.created" {
			t.Fatalf("unexpected envelope %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber never received the event")
	}
}

func TestPublishIsScopedToTopic(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	if err := bus.Subscribe(ctx, "other-topic", "audit", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), "org-events", events.Envelope{EventID: "evt_1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-received:
		t.Fatalf("subscriber on another topic received %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandlerErrorDoesNotStopConsumption(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 2)
	if err := bus.Subscribe(ctx, "org-events", "audit", func(_ context.Context, event events.Envelope) error {
		received <- event.EventID
		if event.EventID == "evt_1" {
			return errors.New("handler failed")
		}
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for _, id := range []string{"evt_1", "evt_2"} {
		if err := bus.Publish(context.Background(), "org-events", events.Envelope{EventID: id}); err != nil {
			t.Fatalf("publish %s failed: %v", id, err)
		}
	}

	for _, want := range []string{"evt_1", "evt_2"} {
		select {
		case got := <-received:
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber never received %s", want)
		}
	}
}
