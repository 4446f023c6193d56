// Package propagation composes the named HTTP and binary channels from
// configuration into a lookup surface callers use to extract and inject
// trace context across a transport boundary (spec §4.4 "Channels").
package propagation

import (
	"sync"

	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/trace"
)

// Registry holds every configured HTTP and binary channel, keyed by
// name. Reconfigure replaces the whole map atomically under a mutex
// (spec §4.4 "Channels are immutable after construction; reconfigure
// replaces the channel map atomically").
type Registry struct {
	mu     sync.RWMutex
	http   map[string]*trace.HTTPChannel
	binary map[string]*trace.BinaryChannel
}

// NewRegistry builds a Registry from the Hub's current configuration and
// keeps it in sync with future Reconfigure calls.
func NewRegistry(hub *config.Hub) *Registry {
	r := &Registry{}
	r.apply(hub.Current())
	hub.Subscribe(func(_, next *config.Snapshot) { r.apply(next) })
	return r
}

func (r *Registry) apply(cfg *config.Snapshot) {
	http := make(map[string]*trace.HTTPChannel, len(cfg.Propagation.HTTP))
	for name, ch := range cfg.Propagation.HTTP {
		http[name] = trace.NewHTTPChannel(ch)
	}
	binary := make(map[string]*trace.BinaryChannel, len(cfg.Propagation.Binary))
	for name, ch := range cfg.Propagation.Binary {
		binary[name] = trace.NewBinaryChannel(ch)
	}

	r.mu.Lock()
	r.http, r.binary = http, binary
	r.mu.Unlock()
}

// HTTP returns the named HTTP channel. Callers should generally use
// config.DefaultChannel unless the host exposes multiple named channels.
func (r *Registry) HTTP(name string) (*trace.HTTPChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.http[name]
	if !ok {
		log.Warn("propagation: http channel %q not configured", name)
	}
	return ch, ok
}

// Binary returns the named binary channel.
func (r *Registry) Binary(name string) (*trace.BinaryChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.binary[name]
	if !ok {
		log.Warn("propagation: binary channel %q not configured", name)
	}
	return ch, ok
}
