package client

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/wire"
	"chat-relay/projection"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// pipeConn plays the server side: it sees what the client writes and
// pushes frames back.
type pipeConn struct {
	toClient   chan []byte
	fromClient chan wire.Frame
	closed     chan struct{}
	once       sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		toClient:   make(chan []byte, 16),
		fromClient: make(chan wire.Frame, 16),
		closed:     make(chan struct{}),
	}
}

func (p *pipeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-p.toClient:
		return 1, data, nil
	case <-p.closed:
		return 0, nil, io.EOF
	}
}

func (p *pipeConn) WriteMessage(_ int, data []byte) error {
	frame, err := wire.Decode(data)
	if err != nil {
		return err
	}
	p.fromClient <- frame
	return nil
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) push(t *testing.T, frameType, requestID string, payload any) {
	t.Helper()
	data, err := wire.Encode(frameType, requestID, payload)
	require.NoError(t, err)
	p.toClient <- data
}

func (p *pipeConn) pushEvent(t *testing.T, e event.DomainEvent) {
	t.Helper()
	data, err := wire.EncodeEvent(e)
	require.NoError(t, err)
	p.toClient <- data
}

func (p *pipeConn) next(t *testing.T) wire.Frame {
	t.Helper()
	select {
	case frame := <-p.fromClient:
		return frame
	case <-time.After(2 * time.Second):
		require.FailNow(t, "client wrote nothing")
		return wire.Frame{}
	}
}

func startClient(t *testing.T, opts Options) (*Client, *pipeConn) {
	conn := newPipeConn()
	c := New(slog.Default(), conn, "alice", opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, c.Join("tech"))
	require.Equal(t, wire.TypeJoinRoom, conn.next(t).Type)
	return c, conn
}

func statusOf(c *Client, correlationID string) projection.Status {
	item, _ := c.Outbox().Get(correlationID)
	return item.Status
}

func TestClient_Send_AckThenCanonicalCopy(t *testing.T) {
	req := require.New(t)
	c, conn := startClient(t, Options{})

	// When alice sends
	correlationID, err := c.Send("hello")
	req.NoError(err)
	sent := conn.next(t)
	var payload wire.SendMessage
	req.NoError(wire.Unmarshal(sent, &payload))
	req.Equal(correlationID, payload.CorrelationID)

	// Then the message shows right away as sending
	entries := c.Timeline()
	req.Len(entries, 1)
	req.Equal(projection.StatusSending, entries[0].Status)

	// When the server acks then broadcasts the canonical copy
	id := uuid.Must(uuid.NewV7())
	conn.push(t, wire.TypeAck, "", wire.Ack{CorrelationID: correlationID, Success: true, DurableID: id.String()})
	conn.pushEvent(t, event.MessageReceived{
		Message:       chat.Message{ID: id, Room: "tech", Sender: "alice", Text: "hello", CreatedAt: time.Now().UTC()},
		CorrelationID: correlationID,
	})

	// Then the local copy becomes the delivered canonical one
	req.Eventually(func() bool {
		entries := c.Timeline()
		return len(entries) == 1 && entries[0].Message.ID == id
	}, time.Second, 5*time.Millisecond)
	req.Equal(projection.StatusDelivered, statusOf(c, correlationID))
	item, _ := c.Outbox().Get(correlationID)
	req.Equal(id, item.DurableID)
}

func TestClient_Send_TimeoutThenLateAck(t *testing.T) {
	req := require.New(t)
	c, conn := startClient(t, Options{AckTimeout: 30 * time.Millisecond})

	correlationID, err := c.Send("slow")
	req.NoError(err)
	conn.next(t)

	// Given no ack within the timeout
	req.Eventually(func() bool {
		return statusOf(c, correlationID) == projection.StatusFailed
	}, time.Second, 5*time.Millisecond)

	// When the server acks and broadcasts late
	id := uuid.Must(uuid.NewV7())
	conn.push(t, wire.TypeAck, "", wire.Ack{CorrelationID: correlationID, Success: true, DurableID: id.String()})
	conn.pushEvent(t, event.MessageReceived{
		Message:       chat.Message{ID: id, Room: "tech", Sender: "alice", Text: "slow", CreatedAt: time.Now().UTC()},
		CorrelationID: correlationID,
	})

	// Then the outbox stays failed and the canonical copy shows separately
	req.Eventually(func() bool { return len(c.Timeline()) == 2 }, time.Second, 5*time.Millisecond)
	entries := c.Timeline()
	req.Equal(projection.StatusFailed, entries[0].Status)
	req.Equal(id, entries[1].Message.ID)
	req.Equal(projection.StatusFailed, statusOf(c, correlationID))
}

func TestClient_Send_RejectedAck(t *testing.T) {
	c, conn := startClient(t, Options{})

	correlationID, err := c.Send("   ")
	require.NoError(t, err)
	conn.next(t)
	conn.push(t, wire.TypeAck, "", wire.Ack{CorrelationID: correlationID, Success: false, Code: "INVALID_ARGUMENT"})

	require.Eventually(t, func() bool {
		return statusOf(c, correlationID) == projection.StatusFailed
	}, time.Second, 5*time.Millisecond)
}

func TestClient_Backfill_UntilEmptyPage(t *testing.T) {
	req := require.New(t)
	c, conn := startClient(t, Options{PageSize: 2})
	base := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	history := make([]chat.Message, 3)
	for i := range history {
		history[i] = chat.Message{
			ID: uuid.Must(uuid.NewV7()), Room: "tech", Sender: "bob",
			Text: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}

	// The server answers pages of two, strictly before the cursor
	var cursors []*time.Time
	go func() {
		for {
			frame, ok := <-conn.fromClient
			if !ok {
				return
			}
			var q wire.FetchHistory
			_ = wire.Unmarshal(frame, &q)
			cursors = append(cursors, q.Before)
			var page []chat.Message
			for i := len(history) - 1; i >= 0 && len(page) < q.Limit; i-- {
				if q.Before == nil || history[i].CreatedAt.Before(*q.Before) {
					page = append([]chat.Message{history[i]}, page...)
				}
			}
			conn.push(t, wire.TypeHistoryPage, frame.RequestID, wire.HistoryPage{
				Room: "tech", Messages: wire.FromMessages(page), HasMore: len(page) > 0,
			})
			if len(page) == 0 {
				return
			}
		}
	}()

	added, err := c.Backfill(context.Background())

	req.NoError(err)
	req.Equal(3, added)
	texts := []string{}
	for _, e := range c.Timeline() {
		texts = append(texts, e.Message.Text)
	}
	req.Equal([]string{"a", "b", "c"}, texts)
	req.Len(cursors, 3)
	req.Nil(cursors[0])
	req.True(cursors[2].Equal(history[0].CreatedAt))
}

func TestClient_Request_ErrorFrame(t *testing.T) {
	c, conn := startClient(t, Options{})

	go func() {
		frame := <-conn.fromClient
		conn.push(t, wire.TypeError, frame.RequestID, wire.Error{Code: "INVALID_ARGUMENT", Message: "search terms are required"})
	}()

	_, _, err := c.Search(context.Background(), "", 10)
	require.ErrorContains(t, err, "INVALID_ARGUMENT")
}

func TestClient_PresenceTracksJoinedRoom(t *testing.T) {
	c, conn := startClient(t, Options{})

	conn.pushEvent(t, event.PresenceUpdated{Room: "general", Users: []string{"zoe"}})
	conn.pushEvent(t, event.PresenceUpdated{Room: "tech", Users: []string{"alice", "bob"}})

	require.Eventually(t, func() bool {
		return len(c.Presence()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"alice", "bob"}, c.Presence())
}
