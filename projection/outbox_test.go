package projection

import (
	"chat-relay/domain/chat"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOutbox_Acknowledge(t *testing.T) {
	req := require.New(t)
	outbox := NewOutbox()
	id := uuid.Must(uuid.NewV7())

	req.NoError(outbox.Track("x1", chat.Message{Text: "hi"}, base))
	req.Error(outbox.Track("x1", chat.Message{Text: "again"}, base))
	req.Equal([]string{"x1"}, outbox.Pending())

	item, ok := outbox.Acknowledge("x1", id)
	req.True(ok)
	req.Equal(StatusDelivered, item.Status)
	req.Equal(id, item.DurableID)
	req.Empty(outbox.Pending())

	// A settled message cannot fail anymore
	_, ok = outbox.Fail("x1", "late")
	req.False(ok)
	item, _ = outbox.Get("x1")
	req.Equal(StatusDelivered, item.Status)
}

func TestOutbox_LateAckAfterTimeoutIsIgnored(t *testing.T) {
	req := require.New(t)
	outbox := NewOutbox()
	req.NoError(outbox.Track("x2", chat.Message{Text: "slow"}, base))

	// Given the ack timer fired first
	item, ok := outbox.Fail("x2", "no acknowledgement after 10s")
	req.True(ok)
	req.Equal(StatusFailed, item.Status)

	// When the ack finally arrives
	_, ok = outbox.Acknowledge("x2", uuid.New())

	// Then the message stays failed
	req.False(ok)
	item, _ = outbox.Get("x2")
	req.Equal(StatusFailed, item.Status)
	req.Equal(uuid.Nil, item.DurableID)
	req.Equal(base, item.SentAt)

	_, ok = outbox.Acknowledge("unknown", uuid.New())
	req.False(ok)
}
