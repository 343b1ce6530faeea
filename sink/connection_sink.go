package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"
)

// ConnectionSink is the outbound queue of one live connection.
// The fan-out pushes into it; the connection writer drains Events until Done.
// The events channel is never closed, Close only signals Done, so a late
// Consume can never panic on a closed channel.
type ConnectionSink struct {
	events chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the fan-out.
// A full buffer waits until ctx expires, which the broadcaster treats as a
// transient failure and retries. A closed connection is permanent.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ConnectionSink) Events() <-chan event.DomainEvent { return s.events }

func (s *ConnectionSink) Done() <-chan struct{} { return s.done }

func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.done) })
}
