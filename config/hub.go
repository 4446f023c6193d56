package config

import (
	"sync"
	"sync/atomic"

	"github.com/mrcuijt/Kamon/internal/log"
)

// Subscriber is notified after a successful Reconfigure with the old and
// new snapshots. Subscribers must not block; they are called
// synchronously, under the Hub's reconfigure path, while other
// subscribers wait (spec §5: "reconfigure... may briefly block each
// other under an internal mutex").
type Subscriber func(old, next *Snapshot)

// Hub holds the single active Snapshot and fans out reconfigure events.
// Hot-path readers call Current(), which is a single atomic load with no
// locking, so measurement and span paths never contend with reconfigure
// (design note §9). The zero Hub is not ready to use; call NewHub.
type Hub struct {
	current atomic.Pointer[Snapshot]

	mu          sync.Mutex // serializes Reconfigure calls and subscriber mutation
	subscribers []Subscriber
}

// NewHub returns a Hub initialized with snap (typically config.Default()
// or the result of config.Build).
func NewHub(snap *Snapshot) *Hub {
	h := &Hub{}
	h.current.Store(snap)
	return h
}

// Current returns the active Snapshot. Safe to call from any goroutine
// without locking.
func (h *Hub) Current() *Snapshot {
	return h.current.Load()
}

// Subscribe registers fn to run after every future Reconfigure. Returns
// an unsubscribe function.
func (h *Hub) Subscribe(fn Subscriber) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, fn)
	idx := len(h.subscribers) - 1
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if idx < len(h.subscribers) {
			h.subscribers[idx] = nil
		}
	}
}

// Reconfigure atomically swaps in next and notifies subscribers in
// registration order. Per design note §9(a), a reduced
// trace.ReporterQueueSize is honored by replacing the buffer outright;
// this Hub does not handle it itself (the tracer's subscriber builds a
// new ring on every reconfigure).
func (h *Hub) Reconfigure(next *Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.current.Swap(next)
	for _, sub := range h.subscribers {
		if sub == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("config: subscriber panicked during reconfigure: %v", r)
				}
			}()
			sub(old, next)
		}()
	}
}
