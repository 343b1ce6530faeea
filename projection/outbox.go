package projection

import (
	"chat-relay/domain/chat"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the client visible state of an outbound message.
//
//	sending -> delivered   ack with success
//	sending -> failed      ack with an error, or no ack before the timeout
//
// Both outcomes are final: a late ack for a failed message is ignored.
type Status string

const (
	StatusSending   Status = "sending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

type Outbound struct {
	CorrelationID string
	Status        Status
	Local         chat.Message
	DurableID     uuid.UUID
	Err           string
	SentAt        time.Time
}

// Outbox tracks the messages a client sent, keyed by correlation id.
type Outbox struct {
	mu    sync.Mutex
	items map[string]*Outbound
}

func NewOutbox() *Outbox {
	return &Outbox{items: make(map[string]*Outbound)}
}

func (o *Outbox) Track(correlationID string, local chat.Message, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.items[correlationID]; ok {
		return fmt.Errorf("correlation id %q already tracked", correlationID)
	}
	o.items[correlationID] = &Outbound{
		CorrelationID: correlationID,
		Status:        StatusSending,
		Local:         local,
		SentAt:        at,
	}
	return nil
}

// Acknowledge records a successful ack. It reports false when the message
// is unknown or already settled.
func (o *Outbox) Acknowledge(correlationID string, durableID uuid.UUID) (Outbound, bool) {
	return o.settle(correlationID, func(item *Outbound) {
		item.Status = StatusDelivered
		item.DurableID = durableID
	})
}

// Fail records a failed ack or an ack timeout.
func (o *Outbox) Fail(correlationID, reason string) (Outbound, bool) {
	return o.settle(correlationID, func(item *Outbound) {
		item.Status = StatusFailed
		item.Err = reason
	})
}

func (o *Outbox) settle(correlationID string, apply func(*Outbound)) (Outbound, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[correlationID]
	if !ok || item.Status != StatusSending {
		return Outbound{}, false
	}
	apply(item)
	return *item, true
}

func (o *Outbox) Get(correlationID string) (Outbound, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[correlationID]
	if !ok {
		return Outbound{}, false
	}
	return *item, true
}

// Pending lists the correlation ids still waiting for an ack.
func (o *Outbox) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var ids []string
	for id, item := range o.items {
		if item.Status == StatusSending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
