package chat

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	MaxTextRunes          = 4000
	MaxCorrelationIDRunes = 128
	MaxRoomNameLength     = 64
	DefaultPageLimit      = 50
)

var validate = validator.New()

// SubmitMessageCommand is an outbound message as handed to the delivery pipeline.
// Sender is the identity bound to the originating connection, never the
// one claimed by the client payload.
type SubmitMessageCommand struct {
	Room          RoomName `validate:"required,max=64"`
	Sender        string   `validate:"required,max=64"`
	Text          string
	AttachmentURL string       `validate:"omitempty,uri,max=2048"`
	Upload        *Upload      `validate:"omitempty"`
	CorrelationID string       `validate:"required"`
	Origin        ConnectionID `validate:"-"`
}

// Upload is an attachment sent inline with a submission; it goes through the
// blob store before anything is persisted.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Validate applies the content rules. Every failure wraps errors.ErrValidation.
func (c SubmitMessageCommand) Validate() error {
	if strings.TrimSpace(c.CorrelationID) == "" {
		return errors.ErrMissingCorrelationID
	}
	if utf8.RuneCountInString(c.CorrelationID) > MaxCorrelationIDRunes {
		return fmt.Errorf("%w: correlation id must be at most %d characters",
			errors.ErrValidation, MaxCorrelationIDRunes)
	}
	if strings.TrimSpace(c.Sender) == "" {
		return errors.ErrUnknownIdentity
	}
	hasUpload := c.Upload != nil && len(c.Upload.Data) > 0
	if strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.AttachmentURL) == "" && !hasUpload {
		return errors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(c.Text) > MaxTextRunes {
		return errors.ErrMessageTooLong
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

// PageQuery asks for the messages strictly older than Before.
// A nil Before means "the most recent ones".
type PageQuery struct {
	Room   RoomName
	Limit  int
	Before *time.Time
}

type SearchQuery struct {
	Room  RoomName
	Terms string
	Limit int
}

// ValidateRoomName rejects names that cannot be used as a storage key segment.
func ValidateRoomName(name string) error {
	if err := validate.Var(name, fmt.Sprintf("required,max=%d,excludesall=:/", MaxRoomNameLength)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRoomName, err)
	}
	return nil
}
