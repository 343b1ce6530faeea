// Package wire is the JSON vocabulary spoken over a chat websocket.
// Every frame is {type, request_id?, payload}.
package wire

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypeJoinRoom       = "join_room"
	TypeLeaveRoom      = "leave_room"
	TypeSendMessage    = "send_message"
	TypeAck            = "ack"
	TypeReceiveMessage = "receive_message"
	TypeTyping         = "typing"
	TypeStopTyping     = "stop_typing"
	TypeUserTyping     = "user_typing"
	TypeUserStopTyping = "user_stop_typing"
	TypePresenceUpdate = "presence_update"
	TypeFetchHistory   = "fetch_history"
	TypeHistoryPage    = "history_page"
	TypeSearchMessages = "search_messages"
	TypeSearchResults  = "search_results"
	TypeError          = "error"
)

type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type JoinRoom struct {
	Room string `json:"room"`
	User string `json:"user,omitempty"`
}

type Upload struct {
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

type SendMessage struct {
	Room          string  `json:"room,omitempty"`
	Text          string  `json:"text,omitempty"`
	AttachmentURL string  `json:"attachment_url,omitempty"`
	Upload        *Upload `json:"upload,omitempty"`
	CorrelationID string  `json:"correlation_id"`
}

type Ack struct {
	CorrelationID string `json:"correlation_id"`
	Success       bool   `json:"success"`
	DurableID     string `json:"durable_id,omitempty"`
	Code          string `json:"code,omitempty"`
	Error         string `json:"error,omitempty"`
}

type Message struct {
	ID            string    `json:"id"`
	Room          string    `json:"room"`
	Sender        string    `json:"sender"`
	Text          string    `json:"text,omitempty"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

type Typing struct {
	Room string `json:"room"`
	User string `json:"user"`
}

type Presence struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

type FetchHistory struct {
	Room   string     `json:"room,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Before *time.Time `json:"before,omitempty"`
}

type HistoryPage struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type SearchMessages struct {
	Room  string `json:"room,omitempty"`
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchResults struct {
	Room     string    `json:"room"`
	Query    string    `json:"query"`
	Messages []Message `json:"messages"`
	Total    uint64    `json:"total"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode builds a serialized frame around payload.
func Encode(frameType, requestID string, payload any) ([]byte, error) {
	frame := Frame{Type: frameType, RequestID: requestID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", frameType, err)
		}
		frame.Payload = raw
	}
	return json.Marshal(frame)
}

func Decode(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, err
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("frame type is missing")
	}
	return frame, nil
}

// Unmarshal decodes the payload of frame into v. An absent payload leaves
// v untouched.
func Unmarshal(frame Frame, v any) error {
	if len(frame.Payload) == 0 || string(frame.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(frame.Payload, v)
}

// EncodeEvent turns a pushed event into its frame.
func EncodeEvent(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.MessageReceived:
		return Encode(TypeReceiveMessage, "", FromMessage(evt.Message, evt.CorrelationID))
	case event.PresenceUpdated:
		users := evt.Users
		if users == nil {
			users = []string{}
		}
		return Encode(TypePresenceUpdate, "", Presence{Room: string(evt.Room), Users: users})
	case event.TypingStarted:
		return Encode(TypeUserTyping, "", Typing{Room: string(evt.Room), User: evt.User})
	case event.TypingStopped:
		return Encode(TypeUserStopTyping, "", Typing{Room: string(evt.Room), User: evt.User})
	default:
		return nil, fmt.Errorf("no frame for event %T", e)
	}
}

// DecodeEvent is the reverse of EncodeEvent for clients. ok is false for
// frames that are not pushed events.
func DecodeEvent(frame Frame) (event.DomainEvent, bool, error) {
	switch frame.Type {
	case TypeReceiveMessage:
		var m Message
		if err := Unmarshal(frame, &m); err != nil {
			return nil, true, err
		}
		message, err := m.ToChat()
		if err != nil {
			return nil, true, err
		}
		return event.MessageReceived{Message: message, CorrelationID: m.CorrelationID}, true, nil
	case TypePresenceUpdate:
		var p Presence
		if err := Unmarshal(frame, &p); err != nil {
			return nil, true, err
		}
		return event.PresenceUpdated{Room: chat.RoomName(p.Room), Users: p.Users}, true, nil
	case TypeUserTyping, TypeUserStopTyping:
		var t Typing
		if err := Unmarshal(frame, &t); err != nil {
			return nil, true, err
		}
		if frame.Type == TypeUserTyping {
			return event.TypingStarted{Room: chat.RoomName(t.Room), User: t.User}, true, nil
		}
		return event.TypingStopped{Room: chat.RoomName(t.Room), User: t.User}, true, nil
	default:
		return nil, false, nil
	}
}

func FromMessage(m chat.Message, correlationID string) Message {
	return Message{
		ID:            m.ID.String(),
		Room:          string(m.Room),
		Sender:        m.Sender,
		Text:          m.Text,
		AttachmentURL: m.AttachmentURL,
		CreatedAt:     m.CreatedAt,
		CorrelationID: correlationID,
	}
}

func FromMessages(messages []chat.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, FromMessage(m, ""))
	}
	return out
}

func (m Message) ToChat() (chat.Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("message id %q: %w", m.ID, err)
	}
	return chat.Message{
		ID:            id,
		Room:          chat.RoomName(m.Room),
		Sender:        m.Sender,
		Text:          m.Text,
		AttachmentURL: m.AttachmentURL,
		CreatedAt:     m.CreatedAt,
	}, nil
}

// ToCommand maps a send_message payload; the sender is filled in by the
// server from the connection identity.
func (s SendMessage) ToCommand() chat.SubmitMessageCommand {
	cmd := chat.SubmitMessageCommand{
		Room:          chat.RoomName(s.Room),
		Text:          s.Text,
		AttachmentURL: s.AttachmentURL,
		CorrelationID: s.CorrelationID,
	}
	if s.Upload != nil {
		cmd.Upload = &chat.Upload{
			Filename:    s.Upload.Filename,
			ContentType: s.Upload.ContentType,
			Data:        s.Upload.Data,
		}
	}
	return cmd
}
