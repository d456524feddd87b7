package notify

import (
	"context"
	"testing"
	"time"
)

func TestHubTargetedDelivery(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := hub.Subscribe(ctx, "alice@example.com")
	bob := hub.Subscribe(ctx, "bob@example.com")

	hub.Publish(Event{Email: "alice@example.com", Kind: "offer", Title: "hi"})

	select {
	case evt := <-alice:
		if evt.Title != "hi" {
			t.Fatalf("unexpected event %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp must be stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("alice did not receive the event")
	}

	select {
	case evt := <-bob:
		t.Fatalf("bob must not receive alice's event, got %+v", evt)
	default:
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx, "a@example.com")
	b := hub.Subscribe(ctx, "b@example.com")

	hub.Publish(Event{Kind: "announcement", Title: "all hands"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			if evt.Kind != "announcement" {
				t.Fatalf("unexpected event %+v", evt)
			}
		case <-time.After(time.Second):
			t.Fatal("broadcast not delivered")
		}
	}
}

func TestHubUnsubscribesOnContextDone(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx, "gone@example.com")
	if got := hub.Connected("gone@example.com"); got != 1 {
		t.Fatalf("connected = %d", got)
	}

	cancel()

	deadline := time.After(time.Second)
	for hub.Connected("gone@example.com") != 0 {
		select {
		case <-deadline:
			t.Fatal("subscription not removed after cancel")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, open := <-ch; open {
		// Drain any buffered event; the channel must eventually close.
		for range ch {
		}
	}
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = hub.Subscribe(ctx, "slow@example.com")

	// More events than the channel buffers; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(Event{Email: "slow@example.com", Kind: "offer"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
