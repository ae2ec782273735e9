package core

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Registry tracks every live connection, its room memberships, and the
// process-wide presence gauge. Rooms have no existence of their own: an
// entry appears on first join and is deleted when its member set empties.
type Registry struct {
	mu     sync.RWMutex
	conns  map[ConnID]Conn
	rooms  map[string]map[ConnID]struct{}
	joined map[ConnID]map[string]struct{}

	presence atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[ConnID]Conn),
		rooms:  make(map[string]map[ConnID]struct{}),
		joined: make(map[ConnID]map[string]struct{}),
	}
}

// Add admits a connection and returns the new presence count.
func (r *Registry) Add(id ConnID, conn Conn) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		return r.presence.Load()
	}
	r.conns[id] = conn
	count := r.presence.Add(1)
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Int64("presence", count).Msg("connection added")
	return count
}

// Remove drops a connection, leaving every room it had joined, and returns
// the new presence count. Idempotent: removing an unknown id is a no-op.
func (r *Registry) Remove(id ConnID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return r.presence.Load()
	}
	for key := range r.joined[id] {
		r.leaveLocked(id, key)
	}
	delete(r.joined, id)
	delete(r.conns, id)
	count := r.presence.Add(-1)
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Int64("presence", count).Msg("connection removed")
	return count
}

// Join adds the connection to a room, creating the room lazily.
// Idempotent; any string is a valid room key. Joining with an id the
// registry has never admitted is ignored.
func (r *Registry) Join(id ConnID, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return
	}
	members, ok := r.rooms[key]
	if !ok {
		members = make(map[ConnID]struct{})
		r.rooms[key] = members
	}
	members[id] = struct{}{}
	rooms, ok := r.joined[id]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[id] = rooms
	}
	rooms[key] = struct{}{}
	log.Debug().Str("module", "core.registry").Str("conn", string(id)).Str("room", key).Msg("joined room")
}

// Leave removes the connection from a room. A leave for a non-member is
// a no-op.
func (r *Registry) Leave(id ConnID, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(id, key)
	if rooms, ok := r.joined[id]; ok {
		delete(rooms, key)
	}
}

func (r *Registry) leaveLocked(id ConnID, key string) {
	members, ok := r.rooms[key]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, key)
	}
}

// Broadcast delivers a frame to every current member of the room except
// the sender. An unknown or empty room is a silent no-op. A full outbound
// queue on one member never blocks delivery to the others; such members
// are reported in PublishResult.Dropped.
func (r *Registry) Broadcast(key string, from ConnID, frame Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id := range r.rooms[key] {
		if id == from {
			continue
		}
		if err := r.conns[id].TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.registry").Str("room", key).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// BroadcastAll delivers a frame to every connection in the registry
// regardless of room membership.
func (r *Registry) BroadcastAll(frame Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, conn := range r.conns {
		if err := conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	return res
}

// SendTo unicasts a frame to a single connection.
func (r *Registry) SendTo(id ConnID, frame Frame) error {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownConn
	}
	return conn.TrySend(frame)
}

// Conn returns the transport endpoint for an id, if still registered.
func (r *Registry) Conn(id ConnID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Presence returns the current presence count. Never negative: decrements
// only happen for connections previously admitted.
func (r *Registry) Presence() int64 {
	return r.presence.Load()
}

// MemberCount reports the current size of a room (0 for unknown keys).
func (r *Registry) MemberCount(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[key])
}
