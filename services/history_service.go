package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultMaxPage     = 200
	DefaultSearchLimit = 20
)

// HistoryService is the room scoped, time ordered message history.
// Badger is the source of truth; the Bluge index is a best effort copy
// feeding search only.
type HistoryService struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	index      repositories.IMessageIndex
	maxPage    int

	mu    sync.Mutex
	rooms map[chat.RoomName]*roomClock
}

// roomClock serializes the appends of one room. Its lock is held from the
// timestamp assignment until the store returns, so messages become visible
// in the same order as their cursors.
type roomClock struct {
	mu   sync.Mutex
	last time.Time
}

func NewHistoryService(
	log *slog.Logger,
	repository repositories.IMessageRepository,
	index repositories.IMessageIndex,
	maxPage int,
) *HistoryService {
	if maxPage <= 0 {
		maxPage = DefaultMaxPage
	}
	return &HistoryService{
		log:        log,
		repository: repository,
		index:      index,
		maxPage:    maxPage,
		rooms:      make(map[chat.RoomName]*roomClock),
	}
}

// Append stores a message and returns it with its durable id.
// Timestamps are made strictly increasing per room so that a message's
// CreatedAt is always a usable "before" cursor.
func (s *HistoryService) Append(ctx context.Context, message chat.Message) (chat.Message, error) {
	if !message.HasContent() {
		return chat.Message{}, errors.ErrEmptyMessage
	}

	clock := s.clock(message.Room)
	clock.mu.Lock()
	message.CreatedAt = clock.next(message.CreatedAt)
	stored, err := s.repository.StoreMessage(ctx, toDiskMessage(message))
	clock.mu.Unlock()
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}
	persisted := fromDiskMessage(stored)

	if s.index != nil {
		if err := s.index.Index(ctx, stored); err != nil {
			s.log.Warn("Message persisted but not indexed", "message_id", stored.ID, "error", err)
		}
	}
	return persisted, nil
}

func (s *HistoryService) clock(room chat.RoomName) *roomClock {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rooms[room]
	if !ok {
		c = &roomClock{}
		s.rooms[room] = c
	}
	return c
}

// next must be called with c.mu held.
func (c *roomClock) next(at time.Time) time.Time {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	if !c.last.IsZero() && !at.After(c.last) {
		at = c.last.Add(time.Nanosecond)
	}
	c.last = at
	return at
}

// Page returns up to Limit messages strictly older than Before, oldest first.
// A nil Before means the most recent messages. HasMore is false exactly when
// the page is empty: callers stop paginating on an empty page.
func (s *HistoryService) Page(ctx context.Context, query chat.PageQuery) (chat.Page, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = chat.DefaultPageLimit
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}

	disk, err := s.repository.GetMessages(ctx, string(query.Room), query.Before, limit)
	if err != nil {
		return chat.Page{}, fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}

	// Storage walks backwards in time; the page is handed out chronologically.
	messages := lo.Map(disk, func(_ repositories.DiskMessage, i int) chat.Message {
		return fromDiskMessage(disk[len(disk)-1-i])
	})
	return chat.Page{Room: query.Room, Messages: messages, HasMore: len(messages) > 0}, nil
}

// Search finds messages of a room matching free text, newest first,
// with the total number of hits.
func (s *HistoryService) Search(ctx context.Context, query chat.SearchQuery) ([]chat.Message, uint64, error) {
	terms := strings.TrimSpace(query.Terms)
	if terms == "" {
		return nil, 0, fmt.Errorf("%w: search terms are required", errors.ErrValidation)
	}
	if s.index == nil {
		return nil, 0, fmt.Errorf("%w: search is disabled", errors.ErrPersistence)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}

	found, total, err := s.index.Search(ctx, string(query.Room), terms, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}
	return lo.Map(found, func(item repositories.DiskMessage, _ int) chat.Message {
		return fromDiskMessage(item)
	}), total, nil
}

func toDiskMessage(message chat.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:            message.ID,
		Room:          string(message.Room),
		Author:        message.Sender,
		Content:       message.Text,
		AttachmentURL: message.AttachmentURL,
		At:            message.CreatedAt,
	}
}

func fromDiskMessage(item repositories.DiskMessage) chat.Message {
	return chat.Message{
		ID:            item.ID,
		Room:          chat.RoomName(item.Room),
		Sender:        item.Author,
		Text:          item.Content,
		AttachmentURL: item.AttachmentURL,
		CreatedAt:     item.At,
	}
}
