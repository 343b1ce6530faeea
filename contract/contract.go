//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one live connection.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IPublisher hands an event to the fan-out queue without waiting for delivery.
type IPublisher interface {
	Publish(envelope event.Envelope) error
}

// IBroadcaster delivers an event to the live members of a room.
type IBroadcaster interface {
	Broadcast(ctx context.Context, room chat.RoomName, evt event.DomainEvent, exclude chat.ConnectionID) error
}

// IHistory is the room scoped, time ordered message store.
type IHistory interface {
	Append(ctx context.Context, message chat.Message) (chat.Message, error)
	Page(ctx context.Context, query chat.PageQuery) (chat.Page, error)
}

// IBlobStore keeps attachments and returns a retrievable URL.
type IBlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// IIdentity turns a connection credential (or a claimed name when running
// without authentication) into the username trusted by the core.
type IIdentity interface {
	Resolve(token, claimed string) (string, error)
}

type IModerator interface {
	Censor(text string) (string, []string)
}
