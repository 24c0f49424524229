// Package stream implements the one-way status stream: a registry of
// server-sent-event subscribers receiving hello, status, keepalive, and
// config events.
package stream

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pscheid92/pulsecast/internal/domain"
	"github.com/pscheid92/pulsecast/internal/metrics"
)

const eventBufferSize = 16

// Event is one named server-sent event with a structured payload.
type Event struct {
	Name string
	Data any
}

// Hub tracks one-way subscribers. Unlike the bidirectional hub there is no
// capacity bound and no inbound traffic, so a mutex with short critical
// sections is enough.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]chan Event)}
}

// Subscribe registers a new subscriber and returns its id, event channel,
// and a cancel function. Cancel closes the channel and deregisters.
func (h *Hub) Subscribe() (uuid.UUID, <-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, eventBufferSize)

	h.mu.Lock()
	h.subs[id] = ch
	count := len(h.subs)
	h.mu.Unlock()

	metrics.StreamSubscribers.Set(float64(count))
	slog.Debug("Stream subscriber registered", "subscriber_id", id.String(), "total", count)

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; !ok {
			h.mu.Unlock()
			return
		}
		delete(h.subs, id)
		remaining := len(h.subs)
		h.mu.Unlock()

		close(ch)
		metrics.StreamSubscribers.Set(float64(remaining))
		slog.Debug("Stream subscriber deregistered", "subscriber_id", id.String(), "remaining", remaining)
	}

	return id, ch, cancel
}

// PublishStatus fans the per-tick status update out to all subscribers.
// Slow subscribers have the event dropped rather than blocking the caller.
func (h *Hub) PublishStatus(update domain.StatusUpdate) {
	h.publish(Event{Name: "status", Data: update})
}

// PublishConfig fans a configuration snapshot out to all subscribers.
func (h *Hub) PublishConfig(snapshot domain.ConfigSnapshot) {
	h.publish(Event{Name: "config", Data: snapshot})
}

func (h *Hub) publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			slog.Warn("Dropping event for slow stream subscriber", "subscriber_id", id.String(), "event", event.Name)
		}
	}
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
