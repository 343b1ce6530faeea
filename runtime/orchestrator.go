// Package runtime binds live connections to rooms: registry, broadcaster,
// typing state and the delivery pipeline, all driven by supervised workers.
// Domain rules live in domain/chat; persistence is reached through contract.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"time"
)

type Options struct {
	Catalog           chat.Catalog
	Clock             Clock
	FanoutBufferSize  int
	FanoutMaxAttempts int
	EnqueueTimeout    time.Duration
	SinkTimeout       time.Duration
	TypingExpiry      time.Duration
	MetricInterval    time.Duration
	RestartInterval   time.Duration
}

// Orchestrator is the session lifecycle entry point used by transports:
// connect, join, leave, disconnect, submit and typing.
type Orchestrator struct {
	log         *slog.Logger
	supervisor  contract.ISupervisor
	registry    *Registry
	broadcaster *Broadcaster
	typing      *TypingCoordinator
	pipeline    *Pipeline
	fanout      *workers.EventFanout
	metrics     *observability.Metrics
	opts        Options
}

func NewOrchestrator(
	log *slog.Logger,
	opts Options,
	history contract.IHistory,
	blobs contract.IBlobStore,
	moderator contract.IModerator,
	metrics *observability.Metrics,
) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	broadcaster := NewBroadcaster(log, opts.Catalog, metrics, opts.SinkTimeout, opts.FanoutMaxAttempts)
	fanout := workers.NewEventFanout(log, broadcaster, metrics, opts.FanoutBufferSize, opts.EnqueueTimeout)
	typing := NewTypingCoordinator(log, opts.Clock, opts.TypingExpiry, fanout, metrics)
	return &Orchestrator{
		log:         log,
		supervisor:  workers.NewSupervisor(log, metrics, opts.RestartInterval),
		registry:    NewRegistry(broadcaster, metrics),
		broadcaster: broadcaster,
		typing:      typing,
		pipeline:    NewPipeline(log, opts.Catalog, history, blobs, moderator, typing, fanout, opts.Clock, metrics),
		fanout:      fanout,
		metrics:     metrics,
		opts:        opts,
	}
}

// Start runs the fan-out and the monitoring workers until ctx is cancelled
// or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(
		o.fanout,
		workers.NewChannelCapacityWorker(o.log, o.fanout, o.metrics, o.opts.MetricInterval),
		workers.NewProcessStatsWorker(o.log, o.metrics, o.opts.MetricInterval),
	)
	o.log.Info("Starting orchestrator and all supervised workers", "rooms", len(o.opts.Catalog.Rooms()))
	o.supervisor.Run(ctx)
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

func (o *Orchestrator) Rooms() []chat.RoomName { return o.opts.Catalog.Rooms() }

func (o *Orchestrator) Catalog() chat.Catalog { return o.opts.Catalog }

// Room returns the room a connection currently sits in.
func (o *Orchestrator) Room(connID chat.ConnectionID) (chat.RoomName, bool) {
	return o.registry.Room(connID)
}

func (o *Orchestrator) User(connID chat.ConnectionID) (string, bool) {
	return o.registry.User(connID)
}

// Connect registers a live connection for user. It returns false when the
// connection was already registered.
func (o *Orchestrator) Connect(connID chat.ConnectionID, user string, sink contract.EventSink) bool {
	ok := o.registry.Register(connID, user, sink)
	if ok {
		o.log.Debug("Connection registered", "connection_id", connID, "user", user)
	}
	return ok
}

// JoinRoom moves a connection to room and pushes presence to the rooms
// involved. It returns the presence of the joined room.
func (o *Orchestrator) JoinRoom(connID chat.ConnectionID, room chat.RoomName) ([]string, error) {
	change, err := o.registry.JoinRoom(connID, room)
	if err != nil {
		return nil, err
	}
	if change.IsZero() {
		return nil, errors.ErrUnknownIdentity
	}
	if change.Left != nil {
		if user, ok := o.registry.User(connID); ok {
			o.typing.ClearTyping(change.Left.Room, user)
		}
		o.publishPresence(*change.Left)
	}
	o.publishPresence(change.Joined)
	return change.Joined.Users, nil
}

// LeaveRoom takes a connection out of its room, keeping it connected.
func (o *Orchestrator) LeaveRoom(connID chat.ConnectionID) {
	user, _ := o.registry.User(connID)
	left := o.registry.LeaveRoom(connID)
	if left == nil {
		return
	}
	o.typing.ClearTyping(left.Room, user)
	o.publishPresence(*left)
}

// Disconnect cleans every trace of a connection. Calling it twice, or for a
// connection never registered, does nothing.
func (o *Orchestrator) Disconnect(connID chat.ConnectionID) {
	user, left := o.registry.Unregister(connID)
	if user != "" {
		o.log.Debug("Connection unregistered", "connection_id", connID, "user", user)
	}
	if left == nil {
		return
	}
	o.typing.ClearTyping(left.Room, user)
	o.publishPresence(*left)
}

// Submit sends a message on behalf of a connection. The sender is always
// the identity bound to the connection; an empty room defaults to the
// connection's current room.
func (o *Orchestrator) Submit(ctx context.Context, connID chat.ConnectionID, cmd chat.SubmitMessageCommand) (chat.Receipt, error) {
	user, ok := o.registry.User(connID)
	if !ok {
		return o.reject(cmd, errors.ErrUnknownIdentity)
	}
	if cmd.Room == "" {
		room, joined := o.registry.Room(connID)
		if !joined {
			return o.reject(cmd, errors.ErrNotInRoom)
		}
		cmd.Room = room
	}
	cmd.Sender = user
	cmd.Origin = connID
	return o.pipeline.Submit(ctx, cmd)
}

func (o *Orchestrator) reject(cmd chat.SubmitMessageCommand, err error) (chat.Receipt, error) {
	delivery := chat.NewDelivery(cmd.CorrelationID)
	delivery.Fail(err)
	o.metrics.Submissions.WithLabelValues(observability.OutcomeRejected).Inc()
	return chat.Receipt{Delivery: *delivery}, err
}

// StartTyping marks the connection's user as typing in its current room.
func (o *Orchestrator) StartTyping(connID chat.ConnectionID) error {
	room, user, err := o.membership(connID)
	if err != nil {
		return err
	}
	o.typing.SetTyping(room, user, connID)
	return nil
}

func (o *Orchestrator) StopTyping(connID chat.ConnectionID) error {
	room, user, err := o.membership(connID)
	if err != nil {
		return err
	}
	o.typing.ClearTyping(room, user)
	return nil
}

func (o *Orchestrator) membership(connID chat.ConnectionID) (chat.RoomName, string, error) {
	user, ok := o.registry.User(connID)
	if !ok {
		return "", "", errors.ErrUnknownIdentity
	}
	room, joined := o.registry.Room(connID)
	if !joined {
		return "", "", errors.ErrNotInRoom
	}
	return room, user, nil
}

func (o *Orchestrator) Presence(room chat.RoomName) []string {
	return o.broadcaster.PresenceSnapshot(room)
}

func (o *Orchestrator) Typing(room chat.RoomName) []string {
	return o.typing.Typing(room)
}

func (o *Orchestrator) publishPresence(p Presence) {
	envelope := event.Envelope{Event: event.PresenceUpdated{Room: p.Room, Users: p.Users}}
	if err := o.fanout.Publish(envelope); err != nil {
		o.log.Warn("Presence update not published", "room", p.Room, "error", err)
	}
}
