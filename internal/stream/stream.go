package stream

import (
	"context"
	"sync"
)

// Hub fans out values to every active subscriber. It backs the agent's change
// signals: recent-visit updates, poller snapshots and logout broadcasts.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	next   int
	buffer int
}

// New returns an empty hub whose subscriber channels hold up to 16 pending values.
func New[T any]() *Hub[T] {
	return NewBuffered[T](16)
}

// NewBuffered returns an empty hub with the given per-subscriber buffer.
func NewBuffered[T any](buffer int) *Hub[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub[T]{subs: make(map[int]chan T), buffer: buffer}
}

// Subscribe registers a subscriber and returns a channel which will receive values.
// The channel is closed when the provided context ends.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
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

// Publish fans out v to all subscribers.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- v:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub[T]) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
