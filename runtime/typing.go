package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"log/slog"
	"sync"
	"time"
)

const DefaultTypingExpiry = time.Second

type typingEntry struct {
	timer  Timer
	gen    uint64
	origin chat.ConnectionID
}

type roomTyping struct {
	mu    sync.Mutex
	users map[string]*typingEntry
}

// TypingCoordinator keeps who is typing in each room. Nothing here is
// persisted: an indicator lives until its timer fires, the user stops or the
// user sends a message. Events are published while the room lock is held so
// a start is never overtaken by the stop of the previous indicator.
type TypingCoordinator struct {
	log       *slog.Logger
	clock     Clock
	expiry    time.Duration
	publisher contract.IPublisher
	metrics   *observability.Metrics
	rooms     sync.Map // chat.RoomName -> *roomTyping
}

func NewTypingCoordinator(
	log *slog.Logger,
	clock Clock,
	expiry time.Duration,
	publisher contract.IPublisher,
	metrics *observability.Metrics,
) *TypingCoordinator {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingCoordinator{log: log, clock: clock, expiry: expiry, publisher: publisher, metrics: metrics}
}

func (t *TypingCoordinator) room(name chat.RoomName) *roomTyping {
	if r, ok := t.rooms.Load(name); ok {
		return r.(*roomTyping)
	}
	r, _ := t.rooms.LoadOrStore(name, &roomTyping{users: make(map[string]*typingEntry)})
	return r.(*roomTyping)
}

// SetTyping marks user as typing and restarts the expiry timer.
// Only the idle -> typing transition is published; repeated keystrokes
// just push the deadline back.
func (t *TypingCoordinator) SetTyping(room chat.RoomName, user string, origin chat.ConnectionID) {
	r := t.room(room)
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.users[user]; ok {
		entry.timer.Stop()
		entry.gen++
		entry.origin = origin
		entry.timer = t.arm(room, user, r, entry.gen)
		return
	}
	entry := &typingEntry{origin: origin}
	entry.timer = t.arm(room, user, r, entry.gen)
	r.users[user] = entry
	t.metrics.TypingActive.Inc()
	t.publish(event.Envelope{Event: event.TypingStarted{Room: room, User: user}, Exclude: origin})
}

func (t *TypingCoordinator) arm(room chat.RoomName, user string, r *roomTyping, gen uint64) Timer {
	return t.clock.AfterFunc(t.expiry, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entry, ok := r.users[user]
		// A reset after this timer fired but before it got the lock bumps gen.
		if !ok || entry.gen != gen {
			return
		}
		t.log.Debug("Typing indicator expired", "room", room, "user", user)
		t.stopLocked(room, user, r, entry)
	})
}

// ClearTyping stops the indicator of user, used on explicit stop, on send and
// on disconnect. Clearing an idle user does nothing.
func (t *TypingCoordinator) ClearTyping(room chat.RoomName, user string) {
	r := t.room(room)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.users[user]
	if !ok {
		return
	}
	entry.timer.Stop()
	t.stopLocked(room, user, r, entry)
}

func (t *TypingCoordinator) stopLocked(room chat.RoomName, user string, r *roomTyping, entry *typingEntry) {
	delete(r.users, user)
	t.metrics.TypingActive.Dec()
	t.publish(event.Envelope{Event: event.TypingStopped{Room: room, User: user}, Exclude: entry.origin})
}

// Typing lists the users currently typing in a room.
func (t *TypingCoordinator) Typing(room chat.RoomName) []string {
	r := t.room(room)
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.users))
	for user := range r.users {
		users = append(users, user)
	}
	return users
}

func (t *TypingCoordinator) publish(envelope event.Envelope) {
	if err := t.publisher.Publish(envelope); err != nil {
		t.log.Warn("Typing event not published", "room", envelope.Event.RoomName(), "error", err)
	}
}
