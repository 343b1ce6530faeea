//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const messagePrefix = "msg:"

type IMessageRepository interface {
	StoreMessage(ctx context.Context, message DiskMessage) (DiskMessage, error)
	GetMessages(ctx context.Context, room string, before *time.Time, limit int) ([]DiskMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type DiskMessage struct {
	ID            uuid.UUID
	Room          string
	Author        string
	Content       string
	AttachmentURL string
	At            time.Time
}

// messageKey is formatted as "msg:{room}:{timestamp_padded}:{uuid}" so that
//  1. a prefix scan returns one room in chronological order (19 digit zero padding),
//  2. two messages sharing a nanosecond never overwrite each other.
func messageKey(room string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", messagePrefix, room, at.UnixNano(), id))
}

func roomPrefix(room string) []byte {
	return []byte(messagePrefix + room + ":")
}

// StoreMessage persists a message and returns it with its durable id.
// A zero ID gets a time ordered UUIDv7.
func (m MessageRepository) StoreMessage(ctx context.Context, message DiskMessage) (DiskMessage, error) {
	if err := ctx.Err(); err != nil {
		return DiskMessage{}, err
	}
	if message.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return DiskMessage{}, err
		}
		message.ID = id
	}
	message.At = message.At.UTC()
	bytes := encodeMessage(message)
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.Room, message.At, message.ID), bytes)
	})
	if err != nil {
		return DiskMessage{}, err
	}
	return message, nil
}

// GetMessages returns up to limit messages of a room strictly older than before,
// newest first. A nil before starts from the most recent message.
// The scan runs inside one read transaction so a concurrent StoreMessage is
// either fully visible or not at all.
func (m MessageRepository) GetMessages(ctx context.Context, room string, before *time.Time, limit int) ([]DiskMessage, error) {
	var diskMessages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// In reverse mode Seek lands on the greatest key <= seekKey.
		// Keys at exactly `before` carry a ":uuid" suffix and sort after the
		// bare padded timestamp, so they are skipped.
		var seekKey []byte
		switch before {
		case nil:
			seekKey = append(append([]byte{}, prefix...), 0xff)
		default:
			seekKey = append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%019d", before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(diskMessages) == limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				diskMessages = append(diskMessages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diskMessages, nil
}

// RoomStat is a per room summary used by the inspection tool.
type RoomStat struct {
	Room   string
	Count  int
	Oldest time.Time
	Newest time.Time
}

// Stats walks every stored key once, without decoding values.
func (m MessageRepository) Stats(ctx context.Context) ([]RoomStat, error) {
	var stats []RoomStat
	index := make(map[string]int)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = []byte(messagePrefix)
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			room, at, ok := parseKey(string(it.Item().Key()))
			if !ok {
				m.log.Warn("Skipping malformed key", "key", string(it.Item().Key()))
				continue
			}
			i, seen := index[room]
			if !seen {
				index[room] = len(stats)
				stats = append(stats, RoomStat{Room: room, Oldest: at, Newest: at})
				i = len(stats) - 1
			}
			stats[i].Count++
			if at.Before(stats[i].Oldest) {
				stats[i].Oldest = at
			}
			if at.After(stats[i].Newest) {
				stats[i].Newest = at
			}
		}
		return nil
	})
	return stats, err
}

func parseKey(key string) (string, time.Time, bool) {
	parts := strings.Split(strings.TrimPrefix(key, messagePrefix), ":")
	if len(parts) != 3 {
		return "", time.Time{}, false
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[1], "%d", &nanos); err != nil {
		return "", time.Time{}, false
	}
	return parts[0], time.Unix(0, nanos).UTC(), true
}
