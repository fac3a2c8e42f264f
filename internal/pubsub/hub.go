// Package pubsub delivers state snapshots to listeners in publication order.
package pubsub

import (
	"slices"
	"sync"
)

// Hub fans snapshots of T out to subscribed listeners. Deliveries are
// serialized, so every listener sees snapshots in publication order.
// Listeners must not publish to the same hub synchronously.
type Hub[T any] struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]func(T)

	deliver sync.Mutex
}

// Subscribe registers fn and immediately delivers current(). The returned
// function removes fn and is safe to call more than once.
func (h *Hub[T]) Subscribe(fn func(T), current func() T) (unsubscribe func()) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	h.mu.Lock()
	if h.listeners == nil {
		h.listeners = make(map[uint64]func(T))
	}
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()

	fn(current())

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers latest() to every listener. latest is read after the
// delivery lock is taken, so a burst of publishes never delivers an older
// snapshot after a newer one.
func (h *Hub[T]) Publish(latest func() T) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	h.mu.Lock()
	fns := make([]func(T), 0, len(h.listeners))
	ids := make([]uint64, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, h.listeners[id])
	}
	h.mu.Unlock()

	if len(fns) == 0 {
		return
	}
	v := latest()
	for _, fn := range fns {
		fn(v)
	}
}

// Len reports the number of listeners.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
