// Package projection builds a client side view of a room from what the
// client sent and what the server pushed back.
// Does not emit events or talk to the network.
package projection

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	Message       chat.Message
	CorrelationID string
	Status        Status
}

// Timeline is the ordered list of messages a client shows for one room.
// Optimistic local copies are replaced by their canonical copy once the
// server broadcasts it.
type Timeline struct {
	Owner string

	mu      sync.Mutex
	entries []Entry
	known   map[uuid.UUID]struct{}
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{Owner: owner, known: make(map[uuid.UUID]struct{})}
}

// AddLocal appends the optimistic copy of a message being sent.
func (t *Timeline) AddLocal(correlationID string, local chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Message: local, CorrelationID: correlationID, Status: StatusSending})
}

func (t *Timeline) MarkDelivered(correlationID string) {
	t.setStatus(correlationID, StatusDelivered)
}

func (t *Timeline) MarkFailed(correlationID string) {
	t.setStatus(correlationID, StatusFailed)
}

func (t *Timeline) setStatus(correlationID string, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.pending(correlationID); i >= 0 {
		t.entries[i].Status = status
	}
}

// pending finds the local copy still waiting for its canonical message.
// Failed entries are never reconciled.
func (t *Timeline) pending(correlationID string) int {
	if correlationID == "" {
		return -1
	}
	for i, e := range t.entries {
		if e.CorrelationID == correlationID && e.Message.ID == uuid.Nil && e.Status != StatusFailed {
			return i
		}
	}
	return -1
}

// Consume applies a pushed event. Only messages change the timeline.
func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageReceived)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.known[evt.Message.ID]; seen {
		return nil
	}
	t.known[evt.Message.ID] = struct{}{}

	if evt.Message.Sender == t.Owner {
		if i := t.pending(evt.CorrelationID); i >= 0 {
			t.entries[i].Message = evt.Message
			t.entries[i].Status = StatusDelivered
			return nil
		}
	}
	t.entries = append(t.entries, Entry{
		Message:       evt.Message,
		CorrelationID: evt.CorrelationID,
		Status:        StatusDelivered,
	})
	return nil
}

// Prepend inserts an older history page, oldest first, ahead of everything
// already shown. Messages already present are skipped. It returns how many
// were added.
func (t *Timeline) Prepend(page []chat.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	older := make([]Entry, 0, len(page))
	for _, m := range page {
		if _, seen := t.known[m.ID]; seen {
			continue
		}
		t.known[m.ID] = struct{}{}
		older = append(older, Entry{Message: m, Status: StatusDelivered})
	}
	t.entries = append(older, t.entries...)
	return len(older)
}

// Oldest is the cursor for the next backfill request: the oldest persisted
// message shown.
func (t *Timeline) Oldest() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var oldest time.Time
	found := false
	for _, e := range t.entries {
		if e.Message.ID == uuid.Nil {
			continue
		}
		if !found || e.Message.CreatedAt.Before(oldest) {
			oldest, found = e.Message.CreatedAt, true
		}
	}
	return oldest, found
}

func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
