package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/davidmr/geotrack/internal/domain"
	"github.com/davidmr/geotrack/internal/storage"
)

// IdentityStore resolves an auth token to the identity it was issued to
type IdentityStore interface {
	LookupByToken(ctx context.Context, token string) (domain.User, error)
}

// LocationSink accepts position updates for fire-and-forget persistence
type LocationSink interface {
	Enqueue(ev domain.LocationEvent)
}

// Engine interprets inbound messages and drives each connection's session
// state: unauthenticated until a valid auth message, then authenticated in a
// room. One Engine serves every connection; per-connection ordering comes
// from each connection's single read loop.
type Engine struct {
	hub            *Hub
	identities     IdentityStore
	locations      LocationSink
	defaultRoom    string
	maxMessageSize int64
	now            func() int64
}

// NewEngine creates the protocol engine
func NewEngine(hub *Hub, identities IdentityStore, locations LocationSink, defaultRoom string) *Engine {
	if defaultRoom == "" {
		defaultRoom = domain.DefaultRoom
	}
	return &Engine{
		hub:            hub,
		identities:     identities,
		locations:      locations,
		defaultRoom:    defaultRoom,
		maxMessageSize: domain.MaxMessageSize,
		now:            func() int64 { return time.Now().UnixMilli() },
	}
}

// SetMaxMessageSize overrides the per-frame read limit applied to new
// connections
func (e *Engine) SetMaxMessageSize(size int) {
	if size > 0 {
		e.maxMessageSize = int64(size)
	}
}

// Hub exposes the engine's hub for stats endpoints
func (e *Engine) Hub() *Hub {
	return e.hub
}

// Connect registers a newly accepted connection as unauthenticated
func (e *Engine) Connect(c Conn) {
	e.hub.Register(c)
}

// Disconnect removes the connection and, if it had joined a room, notifies
// the remaining members. Calling it again for the same connection does
// nothing.
func (e *Engine) Disconnect(c Conn) {
	room, wasMember := e.hub.Remove(c)
	if wasMember {
		e.hub.BroadcastRoster(room)
	}
}

// Handle processes one inbound frame from the connection. Malformed or
// unknown messages are dropped without a reply.
func (e *Engine) Handle(ctx context.Context, c Conn, data []byte) {
	var msg domain.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("discarding malformed message from %s: %v", c.ID(), err)
		return
	}

	switch msg.Type {
	case domain.MessageTypeAuth:
		e.handleAuth(ctx, c, msg)
	case domain.MessageTypeLocation:
		e.handleLocation(c, msg)
	default:
		// Unknown types are ignored per protocol
	}
}

func (e *Engine) handleAuth(ctx context.Context, c Conn, msg domain.Inbound) {
	room := msg.Room
	if room == "" {
		room = e.defaultRoom
	}

	user, err := e.identities.LookupByToken(ctx, msg.Token)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.Printf("token lookup failed for %s: %v", c.ID(), err)
		}
		e.sendError(c, "invalid token")
		return
	}

	prevRoom, ok := e.hub.Authenticate(c, user.ID, user.Name, room)
	if !ok {
		// Connection closed while the lookup was in flight
		return
	}

	e.send(c, domain.WelcomeMessage{Type: domain.MessageTypeWelcome, ClientID: user.ID})
	if prevRoom != "" && prevRoom != room {
		e.hub.BroadcastRoster(prevRoom)
	}
	e.hub.BroadcastRoster(room)
}

func (e *Engine) handleLocation(c Conn, msg domain.Inbound) {
	session := e.hub.Session(c)
	if !session.Authenticated() {
		e.sendError(c, "not authenticated")
		return
	}

	ts := msg.Ts
	if ts == 0 {
		ts = e.now()
	}

	e.locations.Enqueue(domain.LocationEvent{
		UserID:   session.UserID,
		Lat:      msg.Lat,
		Lng:      msg.Lng,
		Accuracy: msg.Accuracy,
		Ts:       ts,
	})

	payload, err := json.Marshal(domain.LocationMessage{
		Type:     domain.MessageTypeLocation,
		ClientID: session.UserID,
		Name:     session.Name,
		Lat:      msg.Lat,
		Lng:      msg.Lng,
		Ts:       ts,
		Accuracy: msg.Accuracy,
	})
	if err != nil {
		return
	}
	e.hub.BroadcastToRoom(session.Room, payload)
}

func (e *Engine) send(c Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Send(data)
}

func (e *Engine) sendError(c Conn, reason string) {
	e.send(c, domain.ErrorMessage{Type: domain.MessageTypeError, Error: reason})
}
