package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventFanout is the single consumer of the fan-out queue.
//
// Producers (delivery pipeline, typing coordinator, session lifecycle) only
// enqueue, so a submitter never waits for room members. Run dispatches each
// envelope to a lane owned by its room. A lane hands events to the
// broadcaster one at a time: every member of a room receives event N before
// event N+1, and a slow member only holds back its own room.
//
// The queue outlives a panicking Run, so a supervisor restart resumes with
// the pending events. Envelopes already handed to a lane are lost with it.
type EventFanout struct {
	log            *slog.Logger
	queue          chan event.Envelope
	broadcaster    contract.IBroadcaster
	metrics        *observability.Metrics
	enqueueTimeout time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	broadcaster contract.IBroadcaster,
	metrics *observability.Metrics,
	bufferSize int,
	enqueueTimeout time.Duration,
) *EventFanout {
	return &EventFanout{
		log:            log,
		queue:          make(chan event.Envelope, bufferSize),
		broadcaster:    broadcaster,
		metrics:        metrics,
		enqueueTimeout: enqueueTimeout,
	}
}

// Publish enqueues an envelope, waiting at most enqueueTimeout for room in
// the queue. A full queue drops the event with errors.ErrQueueFull.
func (w *EventFanout) Publish(envelope event.Envelope) error {
	select {
	case w.queue <- envelope:
		return nil
	default:
	}
	timer := time.NewTimer(w.enqueueTimeout)
	defer timer.Stop()
	select {
	case w.queue <- envelope:
		return nil
	case <-timer.C:
		w.metrics.QueueDropped.Inc()
		return errors.ErrQueueFull
	}
}

func (w *EventFanout) Len() int { return len(w.queue) }

func (w *EventFanout) Cap() int { return cap(w.queue) }

func (w *EventFanout) Run(ctx context.Context) error {
	laneCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	lanes := make(map[chat.RoomName]chan event.Envelope)
	for {
		select {
		case envelope := <-w.queue:
			room := envelope.Event.RoomName()
			lane, ok := lanes[room]
			if !ok {
				lane = make(chan event.Envelope, cap(w.queue))
				lanes[room] = lane
				wg.Add(1)
				go w.drain(laneCtx, &wg, room, lane)
			}
			select {
			case lane <- envelope:
			case <-ctx.Done():
				return nil
			}
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fan-out", "pending", len(w.queue))
			return nil
		}
	}
}

func (w *EventFanout) drain(ctx context.Context, wg *sync.WaitGroup, room chat.RoomName, lane <-chan event.Envelope) {
	defer wg.Done()
	for {
		select {
		case envelope := <-lane:
			w.deliver(ctx, envelope)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping room lane", "room", room, "pending", len(lane))
			return
		}
	}
}

// deliver keeps a panicking broadcast from taking the lane down.
func (w *EventFanout) deliver(ctx context.Context, envelope event.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Fan-out panicked", "room", envelope.Event.RoomName(), "panic", r)
		}
	}()
	w.Fanout(ctx, envelope)
}

// Fanout delivers one envelope to its room.
func (w *EventFanout) Fanout(ctx context.Context, envelope event.Envelope) {
	room := envelope.Event.RoomName()
	if err := w.broadcaster.Broadcast(ctx, room, envelope.Event, envelope.Exclude); err != nil {
		w.log.Warn("Fan-out incomplete", "room", room, "event", eventName(envelope.Event), "error", err)
	}
}

func eventName(evt event.DomainEvent) string {
	switch evt.(type) {
	case event.MessageReceived:
		return "receive_message"
	case event.PresenceUpdated:
		return "presence_update"
	case event.TypingStarted:
		return "user_typing"
	case event.TypingStopped:
		return "user_stop_typing"
	default:
		return "unknown"
	}
}
