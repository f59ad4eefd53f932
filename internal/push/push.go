// Package push broadcasts per-tick status events to real-time consumers
// (UI clients). Broadcast, not a durable queue: slow consumers miss
// events rather than slowing the scheduler.
package push

import (
	"context"
	"sync"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

type Broadcaster interface {
	Publish(ctx context.Context, ev domain.StatusChangedEvent) error
}

// Multi publishes to several broadcasters, best effort.
type Multi []Broadcaster

func (m Multi) Publish(ctx context.Context, ev domain.StatusChangedEvent) error {
	var firstErr error
	for _, b := range m {
		if b == nil {
			continue
		}
		if err := b.Publish(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Hub is the in-process broadcaster. Subscribers get a buffered channel;
// a full channel drops the event for that subscriber only.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan domain.StatusChangedEvent
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan domain.StatusChangedEvent)}
}

func (h *Hub) Publish(_ context.Context, ev domain.StatusChangedEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe returns an event channel and a cancel func. The channel is
// closed on cancel.
func (h *Hub) Subscribe(buffer int) (<-chan domain.StatusChangedEvent, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan domain.StatusChangedEvent, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
