// Package event defines what the broadcaster pushes to room members.
// Events are ephemeral: only the message they may carry is persisted.
package event

import (
	"chat-relay/domain/chat"
)

type DomainEvent interface {
	RoomName() chat.RoomName
}

// MessageReceived carries the canonical persisted copy of a message.
// CorrelationID lets the sender reconcile its optimistic local copy.
type MessageReceived struct {
	Message       chat.Message
	CorrelationID string
}

func (m MessageReceived) RoomName() chat.RoomName {
	return m.Message.Room
}

// PresenceUpdated is pushed to every member whenever membership changes.
type PresenceUpdated struct {
	Room  chat.RoomName
	Users []string
}

func (p PresenceUpdated) RoomName() chat.RoomName {
	return p.Room
}

type TypingStarted struct {
	Room chat.RoomName
	User string
}

func (t TypingStarted) RoomName() chat.RoomName {
	return t.Room
}

type TypingStopped struct {
	Room chat.RoomName
	User string
}

func (t TypingStopped) RoomName() chat.RoomName {
	return t.Room
}

// Envelope is a fan-out request: deliver Event to the room, skipping Exclude.
type Envelope struct {
	Event   DomainEvent
	Exclude chat.ConnectionID
}
