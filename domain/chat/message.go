// Package chat contains core concepts of the chat system.
// This file defines Messages and history pages.
// Messages are immutable once persisted.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a persisted chat message.
type Message struct {
	ID            uuid.UUID // durable id assigned by storage
	Room          RoomName
	Sender        string
	Text          string
	AttachmentURL string
	CreatedAt     time.Time
}

// HasContent reports whether the message carries text or an attachment.
func (m Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || strings.TrimSpace(m.AttachmentURL) != ""
}

// Page is a slice of history, oldest message first.
// HasMore is false exactly when Messages is empty.
type Page struct {
	Room     RoomName
	Messages []Message
	HasMore  bool
}

// Oldest returns the timestamp to use as the next "before" cursor.
func (p Page) Oldest() (time.Time, bool) {
	if len(p.Messages) == 0 {
		return time.Time{}, false
	}
	return p.Messages[0].CreatedAt, true
}
