package notify

import (
	"context"
	"sync"
	"time"
)

// Event is a realtime notification pushed to a connected account.
type Event struct {
	Email     string    `json:"email"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriber struct {
	email string
	ch    chan Event
}

// Hub is the presence registry for connected clients: connection id →
// email, with per-subscriber fan-out channels. All access goes through the
// mutex; there is no bare shared map.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// NewHub initialises an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscriber)}
}

// Subscribe registers the connection under the given email and returns a
// channel which will receive events addressed to it. The channel is closed
// when the provided context ends.
func (h *Hub) Subscribe(ctx context.Context, email string) <-chan Event {
	ch := make(chan Event, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscriber{email: email, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish delivers the event to every connection registered under the
// target email. Empty target broadcasts to all.
func (h *Hub) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if evt.Email != "" && sub.email != evt.Email {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Connected reports how many connections are registered for the email.
func (h *Hub) Connected(email string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, sub := range h.subs {
		if sub.email == email {
			n++
		}
	}
	return n
}
