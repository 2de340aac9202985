// Package registry tracks which realtime connections belong to which
// user, and the ad-hoc rooms used for ride tracking.
package registry

import (
	"sync"

	"github.com/Etopia1/UberAppBackend/internal/events"
)

// Conn is a live connection handle. Push must not block; it reports
// whether the event was accepted (slow consumers drop).
type Conn interface {
	ID() string
	UserID() string
	Push(ev events.Event) bool
}

type Registry struct {
	mu    sync.RWMutex
	users map[string]map[Conn]struct{} // userID -> connection set
	conns map[Conn]string              // reverse lookup for unregister
	rooms map[string]map[Conn]struct{} // roomID -> connection set
}

func New() *Registry {
	return &Registry{
		users: make(map[string]map[Conn]struct{}),
		conns: make(map[Conn]string),
		rooms: make(map[string]map[Conn]struct{}),
	}
}

// Register adds c to userID's set. It reports whether this was the
// user's first live connection (the 0->1 presence edge). Registering
// the same handle twice is a no-op.
func (r *Registry) Register(userID string, c Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; ok {
		return false
	}
	set, ok := r.users[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.users[userID] = set
	}
	set[c] = struct{}{}
	r.conns[c] = userID
	return len(set) == 1
}

// Unregister removes c from whichever user it was registered under and
// from every room. It reports the owning user and whether that user
// now has zero connections (the 1->0 presence edge). Unknown handles
// are a no-op.
func (r *Registry) Unregister(c Conn) (userID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.conns[c]
	if !ok {
		return "", false
	}
	delete(r.conns, c)
	if set, ok := r.users[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.users, userID)
			last = true
		}
	}
	for room, set := range r.rooms {
		delete(set, c)
		if len(set) == 0 {
			delete(r.rooms, room)
		}
	}
	return userID, last
}

// ConnectionsOf returns a snapshot of the user's live connections.
func (r *Registry) ConnectionsOf(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[userID]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// JoinRoom adds c to a room. Rooms are independent of the per-user
// sets and are used for ride-tracking relays.
func (r *Registry) JoinRoom(roomID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[Conn]struct{})
		r.rooms[roomID] = set
	}
	set[c] = struct{}{}
}

// RoomConns returns a snapshot of the room's connections.
func (r *Registry) RoomConns(roomID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[roomID]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
