package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type member struct {
	user    string
	sink    contract.EventSink
	joinSeq uint64
}

// roomMembers is the membership of one room, guarded by its own lock.
type roomMembers struct {
	mu      sync.Mutex
	members map[chat.ConnectionID]member
}

// Broadcaster owns room membership and delivers events to room members.
// One slot per known room is allocated up front, so looking a room up never
// takes a lock and two rooms never contend.
type Broadcaster struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	rooms       map[chat.RoomName]*roomMembers
	joinSeq     atomic.Uint64
	sinkTimeout time.Duration
	maxAttempts int
}

func NewBroadcaster(
	log *slog.Logger,
	catalog chat.Catalog,
	metrics *observability.Metrics,
	sinkTimeout time.Duration,
	maxAttempts int,
) *Broadcaster {
	rooms := make(map[chat.RoomName]*roomMembers)
	for _, room := range catalog.Rooms() {
		rooms[room] = &roomMembers{members: make(map[chat.ConnectionID]member)}
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Broadcaster{
		log:         log,
		metrics:     metrics,
		rooms:       rooms,
		sinkTimeout: sinkTimeout,
		maxAttempts: maxAttempts,
	}
}

// add puts a connection in a room and returns the room presence afterwards.
// Only the Registry calls it.
func (b *Broadcaster) add(room chat.RoomName, connID chat.ConnectionID, user string, sink contract.EventSink) ([]string, error) {
	slot, ok := b.rooms[room]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownRoom, room)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if _, already := slot.members[connID]; !already {
		slot.members[connID] = member{user: user, sink: sink, joinSeq: b.joinSeq.Add(1)}
	}
	return slot.presenceLocked(), nil
}

// remove takes a connection out of a room and returns the remaining presence.
// Only the Registry calls it.
func (b *Broadcaster) remove(room chat.RoomName, connID chat.ConnectionID) []string {
	slot, ok := b.rooms[room]
	if !ok {
		return []string{}
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	delete(slot.members, connID)
	return slot.presenceLocked()
}

// PresenceSnapshot lists the users of a room ordered by their earliest join.
// A user with several connections appears once. Unknown rooms are empty.
func (b *Broadcaster) PresenceSnapshot(room chat.RoomName) []string {
	slot, ok := b.rooms[room]
	if !ok {
		return []string{}
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.presenceLocked()
}

func (r *roomMembers) presenceLocked() []string {
	firstJoin := make(map[string]uint64, len(r.members))
	for _, m := range r.members {
		if seq, seen := firstJoin[m.user]; !seen || m.joinSeq < seq {
			firstJoin[m.user] = m.joinSeq
		}
	}
	users := make([]string, 0, len(firstJoin))
	for user := range firstJoin {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return firstJoin[users[i]] < firstJoin[users[j]]
	})
	return users
}

func (b *Broadcaster) sinks(room chat.RoomName, exclude chat.ConnectionID) []contract.EventSink {
	slot, ok := b.rooms[room]
	if !ok {
		return nil
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	sinks := make([]contract.EventSink, 0, len(slot.members))
	for connID, m := range slot.members {
		if exclude != "" && connID == exclude {
			continue
		}
		sinks = append(sinks, m.sink)
	}
	return sinks
}

// Broadcast delivers an event to every live connection of a room except
// exclude. Sinks are served concurrently and outside the room lock, so a slow
// connection delays this event only, never a join or another room.
// Transient sink errors are retried; the joined error lists what was lost.
func (b *Broadcaster) Broadcast(ctx context.Context, room chat.RoomName, evt event.DomainEvent, exclude chat.ConnectionID) error {
	sinks := b.sinks(room, exclude)
	if len(sinks) == 0 {
		return nil
	}
	errs := make([]error, len(sinks))
	var wg sync.WaitGroup
	for i, sink := range sinks {
		wg.Add(1)
		go func(i int, sink contract.EventSink) {
			defer wg.Done()
			errs[i] = b.deliver(ctx, sink, evt)
		}(i, sink)
	}
	wg.Wait()
	return stderrors.Join(errs...)
}

func (b *Broadcaster) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) error {
	var err error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		err = b.consume(ctx, sink, evt)
		switch {
		case err == nil:
			b.metrics.Deliveries.WithLabelValues(observability.DeliveryDelivered).Inc()
			return nil
		case stderrors.Is(err, errors.ErrSinkClosed):
			// The connection is gone, its disconnect cleans the membership up.
			b.metrics.Deliveries.WithLabelValues(observability.DeliveryClosed).Inc()
			return nil
		case ctx.Err() != nil:
			b.metrics.Deliveries.WithLabelValues(observability.DeliveryDropped).Inc()
			return ctx.Err()
		}
		if attempt < b.maxAttempts {
			b.metrics.Deliveries.WithLabelValues(observability.DeliveryRetried).Inc()
			b.log.Debug("Retrying event delivery", "room", evt.RoomName(), "attempt", attempt, "error", err)
		}
	}
	b.metrics.Deliveries.WithLabelValues(observability.DeliveryDropped).Inc()
	b.log.Warn("Event dropped for one connection", "room", evt.RoomName(), "attempts", b.maxAttempts, "error", err)
	return fmt.Errorf("%w: %w", errors.ErrTransport, err)
}

func (b *Broadcaster) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) error {
	sinkCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()
	return sink.Consume(sinkCtx, evt)
}
