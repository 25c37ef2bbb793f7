// internal/broadcast/hub.go
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"telemetry-gateway/internal/metrics"
	"telemetry-gateway/internal/reading"
)

const defaultSubscriberBuffer = 256

// Subscription is one live observer's view of the hub. Events arrive on
// Events(); Done() is closed when the subscription is removed, whether
// by the owner calling Close or by the hub dropping a dead subscriber.
type Subscription struct {
	ID uuid.UUID

	hub  *Hub
	ch   chan []byte
	done chan struct{}
}

// Events returns the stream of serialized broadcast events.
func (s *Subscription) Events() <-chan []byte { return s.ch }

// Done is closed once no further events will be delivered.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unregisters the subscription. Safe to call more than once and
// concurrently with hub publishes.
func (s *Subscription) Close() { s.hub.Unregister(s.ID) }

// Hub maintains the set of live subscribers and fans accepted readings
// out to all of them. All methods are safe for concurrent use.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// NewHub creates a hub whose subscribers buffer up to buffer events; a
// non-positive buffer selects the default.
func NewHub(logger *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[uuid.UUID]*Subscription),
	}
}

// Register adds a new subscriber to the live set. Only events published
// after registration are delivered; there is no history replay.
func (h *Hub) Register() *Subscription {
	sub := &Subscription{
		ID:   uuid.New(),
		hub:  h,
		ch:   make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	count := len(h.subs)
	h.mu.Unlock()

	metrics.SubscribersActive.Set(float64(count))
	h.logger.Info("subscriber registered", "subscriber", sub.ID, "active", count)
	return sub
}

// Unregister removes a subscriber from the live set. A no-op for
// unknown handles, so concurrent duplicate removal is harmless.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.done)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if ok {
		metrics.SubscribersActive.Set(float64(count))
		h.logger.Info("subscriber unregistered", "subscriber", id, "active", count)
	}
}

// Publish serializes the stored reading and delivers it to every
// currently registered subscriber. Each delivery is a non-blocking
// send: a subscriber whose buffer is full or whose subscription is
// finished is dropped from the live set, without affecting delivery to
// the others.
func (h *Hub) Publish(r reading.StoredReading) {
	payload, err := json.Marshal(reading.EventOf(r))
	if err != nil {
		h.logger.Error("marshal broadcast event", "error", err)
		return
	}

	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	for _, sub := range snapshot {
		select {
		case <-sub.done:
			// Already removed between snapshot and send.
		case sub.ch <- payload:
		default:
			h.logger.Warn("subscriber too slow, dropping", "subscriber", sub.ID)
			metrics.SubscribersDropped.Inc()
			h.Unregister(sub.ID)
		}
	}
}

// Len reports the current number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
