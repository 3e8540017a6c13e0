// Package registry tracks which live connections belong to which role rooms.
// Membership is a pure runtime fact: it is rebuilt on every reconnect and never
// persisted.
package registry

import (
	"log/slog"
	"sync"
)

// Session is a live connected client as the registry and dispatcher see it.
// Send must not block beyond its own short internal deadline; a full or dead
// connection returns an error instead of stalling the caller.
type Session interface {
	ID() string
	Send(message []byte) error
}

type member struct {
	session Session
	rooms   map[string]struct{}
}

// Registry maintains the mapping from room name to the set of currently
// connected sessions. All operations are idempotent set mutations guarded by a
// single mutex; no I/O happens under the lock.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*member
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{members: make(map[string]*member)}
}

// Register adds a connected session with no room memberships. Re-registering
// the same connection id replaces the previous session.
func (r *Registry) Register(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[s.ID()] = &member{session: s, rooms: make(map[string]struct{})}
	slog.Debug("Session registered", "connection_id", s.ID(), "total", len(r.members))
}

// Unregister removes a session and all its room memberships. Called on
// disconnect; removing an unknown connection is a no-op.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[connectionID]; !ok {
		return
	}
	delete(r.members, connectionID)
	slog.Debug("Session unregistered", "connection_id", connectionID, "total", len(r.members))
}

// Join adds the connection to a room. Joining an already-member connection or
// an unknown connection is a no-op.
func (r *Registry) Join(connectionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connectionID]
	if !ok {
		return
	}
	m.rooms[room] = struct{}{}
}

// Leave removes the connection from a room. Removing a non-member is a no-op.
func (r *Registry) Leave(connectionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[connectionID]; ok {
		delete(m.rooms, room)
	}
}

// LeaveAll removes the connection from every room it has joined, keeping the
// session itself registered.
func (r *Registry) LeaveAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[connectionID]; ok {
		m.rooms = make(map[string]struct{})
	}
}

// MembersOf returns a snapshot of the sessions currently in room. Sessions
// joining mid-dispatch may miss in-flight events; clients reconcile by
// re-fetching the alert list on connect.
func (r *Registry) MembersOf(room string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sessions []Session
	for _, m := range r.members {
		if _, ok := m.rooms[room]; ok {
			sessions = append(sessions, m.session)
		}
	}
	return sessions
}

// All returns a snapshot of every connected session regardless of room.
func (r *Registry) All() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]Session, 0, len(r.members))
	for _, m := range r.members {
		sessions = append(sessions, m.session)
	}
	return sessions
}

// Count returns the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
