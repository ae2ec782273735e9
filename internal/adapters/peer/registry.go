package peer

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"labrelay/internal/core"
)

var errIDTaken = errors.New("peer id already registered")

const maxPeerIDLen = 64

// Registry is a plain id-to-connection lookup table. Entries appear on
// registration and vanish on disconnect.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]core.Conn
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]core.Conn)}
}

func (r *Registry) Register(id string, conn core.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[id]; ok {
		return errIDTaken
	}
	r.peers[id] = conn
	log.Info().Str("module", "peer.registry").Str("peer", id).Msg("peer registered")
	return nil
}

func (r *Registry) Lookup(id string) (core.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.peers[id]
	return conn, ok
}

// Unregister removes the id only while it still maps to the given
// connection, so a reconnect that re-registered the id is not clobbered
// by the old connection's teardown.
func (r *Registry) Unregister(id string, conn core.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.peers[id]; ok && cur == conn {
		delete(r.peers, id)
		log.Info().Str("module", "peer.registry").Str("peer", id).Msg("peer unregistered")
	}
}

// IDs lists the registered peer ids for the discovery endpoint.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	return out
}
