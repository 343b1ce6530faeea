package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/observability"
	"fmt"
	"sync"
)

// connection is the registry record of one live transport connection.
// Its lock serializes the connection's own room changes; it is never held
// together with another connection's lock.
type connection struct {
	mu     sync.Mutex
	user   string
	sink   contract.EventSink
	room   chat.RoomName
	closed bool
}

// Presence is the membership of a room right after a change.
type Presence struct {
	Room  chat.RoomName
	Users []string
}

// RoomChange describes the effect of a join: the room entered and, when the
// connection switched rooms, the room it vacated.
type RoomChange struct {
	Joined Presence
	Left   *Presence
}

func (c RoomChange) IsZero() bool {
	return c.Joined.Room == "" && c.Left == nil
}

// Registry maps connections to users and rooms. JoinRoom, LeaveRoom and
// Unregister are the only entry points mutating room membership, which keeps
// the connection -> room map and the Broadcaster's room -> members map in sync.
type Registry struct {
	mu          sync.RWMutex
	connections map[chat.ConnectionID]*connection
	broadcaster *Broadcaster
	metrics     *observability.Metrics
}

func NewRegistry(broadcaster *Broadcaster, metrics *observability.Metrics) *Registry {
	return &Registry{
		connections: make(map[chat.ConnectionID]*connection),
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

// Register binds a live connection to a user. Several connections may share a
// user. Registering a known connection again keeps the first binding and
// returns false.
func (r *Registry) Register(connID chat.ConnectionID, userID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[connID]; ok {
		return false
	}
	r.connections[connID] = &connection{user: userID, sink: sink}
	r.metrics.Connections.Inc()
	return true
}

func (r *Registry) lookup(connID chat.ConnectionID) (*connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[connID]
	return c, ok
}

// User returns the identity bound to a connection.
func (r *Registry) User(connID chat.ConnectionID) (string, bool) {
	c, ok := r.lookup(connID)
	if !ok {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, !c.closed
}

// Room returns the current room of a connection, false until it joins one.
func (r *Registry) Room(connID chat.ConnectionID) (chat.RoomName, bool) {
	c, ok := r.lookup(connID)
	if !ok {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.room != "" && !c.closed
}

// JoinRoom moves a connection into room, leaving its previous room first.
// Joining the current room again only returns its presence.
// An unknown connection yields a zero RoomChange.
func (r *Registry) JoinRoom(connID chat.ConnectionID, room chat.RoomName) (RoomChange, error) {
	if _, ok := r.broadcaster.rooms[room]; !ok {
		return RoomChange{}, fmt.Errorf("%w: %s", errors.ErrUnknownRoom, room)
	}
	c, ok := r.lookup(connID)
	if !ok {
		return RoomChange{}, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return RoomChange{}, nil
	}

	var change RoomChange
	if c.room != "" && c.room != room {
		users := r.broadcaster.remove(c.room, connID)
		change.Left = &Presence{Room: c.room, Users: users}
	}
	users, err := r.broadcaster.add(room, connID, c.user, c.sink)
	if err != nil {
		return RoomChange{}, err
	}
	c.room = room
	change.Joined = Presence{Room: room, Users: users}
	return change, nil
}

// LeaveRoom takes a connection out of its room without unregistering it.
// It returns the vacated room presence, nil when there was none.
func (r *Registry) LeaveRoom(connID chat.ConnectionID) *Presence {
	c, ok := r.lookup(connID)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.room == "" {
		return nil
	}
	left := &Presence{Room: c.room, Users: r.broadcaster.remove(c.room, connID)}
	c.room = ""
	return left
}

// Unregister forgets a connection and removes it from its room.
// It returns the vacated room presence so the caller can push it.
// Unknown or already removed connections are ignored.
func (r *Registry) Unregister(connID chat.ConnectionID) (string, *Presence) {
	c, ok := r.lookup(connID)
	if !ok {
		return "", nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", nil
	}
	c.closed = true
	var left *Presence
	if c.room != "" {
		left = &Presence{Room: c.room, Users: r.broadcaster.remove(c.room, connID)}
		c.room = ""
	}
	user := c.user
	c.mu.Unlock()

	r.mu.Lock()
	delete(r.connections, connID)
	r.mu.Unlock()
	r.metrics.Connections.Dec()
	return user, left
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
