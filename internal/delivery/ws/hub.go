package ws

import (
	"encoding/json"
	"sync"

	"github.com/davidmr/geotrack/internal/domain"
)

// Conn is the hub-facing side of one live connection. Send must never block;
// it reports whether the message was accepted (a closed or saturated
// connection simply declines).
type Conn interface {
	ID() string
	Send(msg []byte) bool
}

// Session is the authentication state attached to one connection. The zero
// value means unauthenticated.
type Session struct {
	UserID string
	Name   string
	Room   string
}

// Authenticated reports whether the session has passed the auth handshake
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Hub owns the connection registry and the room directory. All mutation goes
// through its lock; callers never see the maps. Broadcasts snapshot the
// member set under the lock and send outside it, so a join or leave racing a
// broadcast observes consistent membership.
type Hub struct {
	mu       sync.RWMutex
	sessions map[Conn]Session
	rooms    map[string]map[Conn]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[Conn]Session),
		rooms:    make(map[string]map[Conn]struct{}),
	}
}

// Register tracks a newly accepted connection as unauthenticated
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[c] = Session{}
}

// Session returns the connection's current state. Unknown connections get
// the unauthenticated zero value rather than an error.
func (h *Hub) Session(c Conn) Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[c]
}

// Authenticate transitions the connection into the named room, leaving any
// previously joined room first. It reports the prior room (empty if none)
// and whether the connection was still registered; a connection removed by a
// concurrent close is a no-op.
func (h *Hub) Authenticate(c Conn, userID, name, room string) (prevRoom string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, present := h.sessions[c]
	if !present {
		return "", false
	}
	if prev.Room != "" {
		delete(h.rooms[prev.Room], c)
	}

	h.sessions[c] = Session{UserID: userID, Name: name, Room: room}
	members, exists := h.rooms[room]
	if !exists {
		members = make(map[Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	return prev.Room, true
}

// Remove deletes the connection and its room membership. Safe to call more
// than once: only the first call reports the room the connection was in.
func (h *Hub) Remove(c Conn) (room string, wasMember bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, present := h.sessions[c]
	if !present {
		return "", false
	}
	delete(h.sessions, c)
	if s.Room == "" {
		return "", false
	}
	delete(h.rooms[s.Room], c)
	return s.Room, true
}

// BroadcastToRoom delivers msg to every current member of the room.
// Unwritable connections are skipped; reaping happens on the close path.
func (h *Hub) BroadcastToRoom(room string, msg []byte) {
	for _, c := range h.members(room) {
		c.Send(msg)
	}
}

// BroadcastRoster sends the room's current member list to every member
func (h *Hub) BroadcastRoster(room string) {
	h.mu.RLock()
	members := make([]Conn, 0, len(h.rooms[room]))
	users := make([]domain.RoomMember, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
		if s := h.sessions[c]; s.Authenticated() {
			users = append(users, domain.RoomMember{ID: s.UserID, Name: s.Name})
		}
	}
	h.mu.RUnlock()

	msg, err := json.Marshal(domain.MetaMessage{Type: domain.MessageTypeMeta, Users: users})
	if err != nil {
		return
	}
	for _, c := range members {
		c.Send(msg)
	}
}

// Stats returns the number of non-empty rooms and live connections
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, members := range h.rooms {
		if len(members) > 0 {
			rooms++
		}
	}
	return rooms, len(h.sessions)
}

// members snapshots a room's member set under the read lock
func (h *Hub) members(room string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		conns = append(conns, c)
	}
	return conns
}
