//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_message_index.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	searchFieldRoom       = "room"
	searchFieldAuthor     = "author"
	searchFieldContent    = "content"
	searchFieldAttachment = "attachment_url"
	searchFieldAt         = "at"
)

type IMessageIndex interface {
	Index(ctx context.Context, message DiskMessage) error
	Search(ctx context.Context, room, terms string, limit int) ([]DiskMessage, uint64, error)
}

// MessageIndex is the full text side of the history. It is derived data:
// Badger stays the source of truth and the index can be rebuilt from it.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) MessageIndex {
	return MessageIndex{writer: writer, log: log}
}

func (i MessageIndex) Index(ctx context.Context, message DiskMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField(searchFieldRoom, message.Room).StoreValue()).
		AddField(bluge.NewKeywordField(searchFieldAuthor, message.Author).StoreValue()).
		AddField(bluge.NewTextField(searchFieldContent, message.Content).StoreValue()).
		AddField(bluge.NewDateTimeField(searchFieldAt, message.At).StoreValue().Sortable())
	if message.AttachmentURL != "" {
		doc.AddField(bluge.NewKeywordField(searchFieldAttachment, message.AttachmentURL).StoreValue())
	}
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the newest matches of terms within a room and the total hit count.
func (i MessageIndex) Search(ctx context.Context, room, terms string, limit int) ([]DiskMessage, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Unable to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(room).SetField(searchFieldRoom)).
		AddMust(bluge.NewMatchQuery(terms).SetField(searchFieldContent))
	request := bluge.NewTopNSearch(limit, query).
		SortBy([]string{"-" + searchFieldAt}).
		WithStandardAggregations()

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search index: %w", err)
	}

	var results []DiskMessage
	match, err := dmi.Next()
	for err == nil && match != nil {
		var message DiskMessage
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				message.ID, visitErr = uuid.ParseBytes(value)
			case searchFieldRoom:
				message.Room = string(value)
			case searchFieldAuthor:
				message.Author = string(value)
			case searchFieldContent:
				message.Content = string(value)
			case searchFieldAttachment:
				message.AttachmentURL = string(value)
			case searchFieldAt:
				var at time.Time
				at, visitErr = bluge.DecodeDateTime(value)
				message.At = at.UTC()
			}
			return visitErr == nil
		})
		if err != nil {
			return nil, 0, err
		}
		if visitErr != nil {
			return nil, 0, visitErr
		}
		results = append(results, message)
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, 0, err
	}
	return results, dmi.Aggregations().Count(), nil
}
