package chat

import (
	"fmt"

	"github.com/google/uuid"
)

// DeliveryState is the server side lifecycle of one submission.
//
//	Submitted -> Persisted -> Acknowledged
//	Submitted -> Failed
//	Persisted -> Failed    (acknowledgement could not be produced)
type DeliveryState int

const (
	Submitted DeliveryState = iota
	Persisted
	Acknowledged
	Failed
)

func (s DeliveryState) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Persisted:
		return "persisted"
	case Acknowledged:
		return "acknowledged"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s DeliveryState) Terminal() bool {
	return s == Acknowledged || s == Failed
}

func (s DeliveryState) canMoveTo(next DeliveryState) bool {
	switch s {
	case Submitted:
		return next == Persisted || next == Failed
	case Persisted:
		return next == Acknowledged || next == Failed
	default:
		return false
	}
}

// Delivery tracks a single submission through the pipeline.
type Delivery struct {
	CorrelationID string
	State         DeliveryState
	MessageID     uuid.UUID
	Err           error
}

func NewDelivery(correlationID string) *Delivery {
	return &Delivery{CorrelationID: correlationID, State: Submitted}
}

// Advance moves to next, refusing transitions out of a terminal state.
func (d *Delivery) Advance(next DeliveryState) error {
	if !d.State.canMoveTo(next) {
		return fmt.Errorf("delivery %s: illegal transition %s -> %s", d.CorrelationID, d.State, next)
	}
	d.State = next
	return nil
}

// Fail records the reason and moves to Failed when still possible.
func (d *Delivery) Fail(err error) {
	if d.State.Terminal() {
		return
	}
	d.State = Failed
	d.Err = err
}

// Receipt is what the submitter learns about its submission. Message is the
// canonical persisted copy and is zero unless the delivery was acknowledged.
type Receipt struct {
	Delivery Delivery
	Message  Message
}
