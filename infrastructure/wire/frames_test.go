package wire

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent_PresenceNeverNull(t *testing.T) {
	req := require.New(t)

	data, err := EncodeEvent(event.PresenceUpdated{Room: "design"})

	req.NoError(err)
	req.JSONEq(`{"type":"presence_update","payload":{"room":"design","users":[]}}`, string(data))
}

func TestEncodeEvent_MessageCarriesCorrelationID(t *testing.T) {
	req := require.New(t)
	id := uuid.Must(uuid.NewV7())
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	data, err := EncodeEvent(event.MessageReceived{
		Message:       chat.Message{ID: id, Room: "tech", Sender: "alice", Text: "hi", CreatedAt: at},
		CorrelationID: "x1",
	})
	req.NoError(err)

	frame, err := Decode(data)
	req.NoError(err)
	req.Equal(TypeReceiveMessage, frame.Type)

	// A client reads the same event back
	evt, ok, err := DecodeEvent(frame)
	req.NoError(err)
	req.True(ok)
	received := evt.(event.MessageReceived)
	req.Equal("x1", received.CorrelationID)
	req.Equal(id, received.Message.ID)
	req.True(at.Equal(received.Message.CreatedAt))
}

func TestDecode(t *testing.T) {
	req := require.New(t)

	_, err := Decode([]byte(`{"payload":{}}`))
	req.Error(err)
	_, err = Decode([]byte(`not json`))
	req.Error(err)

	frame, err := Decode([]byte(`{"type":"leave_room"}`))
	req.NoError(err)
	var join JoinRoom
	req.NoError(Unmarshal(frame, &join))
	req.Empty(join.Room)

	_, ok, err := DecodeEvent(Frame{Type: TypeAck})
	req.NoError(err)
	req.False(ok)
}

func TestSendMessage_ToCommand(t *testing.T) {
	req := require.New(t)

	cmd := SendMessage{
		Text:          "look",
		CorrelationID: "x2",
		Upload:        &Upload{Filename: "a.png", ContentType: "image/png", Data: []byte{1, 2}},
	}.ToCommand()

	req.Empty(cmd.Sender)
	req.Equal("x2", cmd.CorrelationID)
	req.Equal([]byte{1, 2}, cmd.Upload.Data)
}
