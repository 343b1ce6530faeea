package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored message record. They follow the proto wire
// format so the values stay readable by any protobuf decoder.
const (
	fieldID            protowire.Number = 1
	fieldRoom          protowire.Number = 2
	fieldAuthor        protowire.Number = 3
	fieldContent       protowire.Number = 4
	fieldAttachmentURL protowire.Number = 5
	fieldAt            protowire.Number = 6
)

func encodeMessage(message DiskMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendBytes(b, message.ID[:])
	b = appendString(b, fieldRoom, message.Room)
	b = appendString(b, fieldAuthor, message.Author)
	b = appendString(b, fieldContent, message.Content)
	b = appendString(b, fieldAttachmentURL, message.AttachmentURL)
	b = protowire.AppendTag(b, fieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(message.At.UnixNano()))
	return b
}

func appendString(b []byte, number protowire.Number, value string) []byte {
	if value == "" {
		return b
	}
	b = protowire.AppendTag(b, number, protowire.BytesType)
	return protowire.AppendString(b, value)
}

func decodeMessage(b []byte) (DiskMessage, error) {
	var message DiskMessage
	for len(b) > 0 {
		number, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return DiskMessage{}, fmt.Errorf("decode message tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case number == fieldAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return DiskMessage{}, fmt.Errorf("decode message timestamp: %w", protowire.ParseError(n))
			}
			message.At = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return DiskMessage{}, fmt.Errorf("decode message field %d: %w", number, protowire.ParseError(n))
			}
			switch number {
			case fieldID:
				id, err := uuid.FromBytes(v)
				if err != nil {
					return DiskMessage{}, fmt.Errorf("decode message id: %w", err)
				}
				message.ID = id
			case fieldRoom:
				message.Room = string(v)
			case fieldAuthor:
				message.Author = string(v)
			case fieldContent:
				message.Content = string(v)
			case fieldAttachmentURL:
				message.AttachmentURL = string(v)
			}
			b = b[n:]
		default:
			// Unknown fields are skipped so older binaries can read newer records.
			n := protowire.ConsumeFieldValue(number, typ, b)
			if n < 0 {
				return DiskMessage{}, fmt.Errorf("skip field %d: %w", number, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return message, nil
}
