package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newHistory(t *testing.T) *HistoryService {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewHistoryService(log,
		repositories.NewMessageRepository(db, log),
		repositories.NewMessageIndex(writer, log),
		DefaultMaxPage)
}

func seed(t *testing.T, history *HistoryService, room chat.RoomName, n int, base time.Time) []chat.Message {
	t.Helper()
	var out []chat.Message
	for i := 0; i < n; i++ {
		m, err := history.Append(context.Background(), chat.Message{
			Room:      room,
			Sender:    "alice",
			Text:      fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestHistoryService_Append_AssignsUniqueOrderedIds(t *testing.T) {
	req := require.New(t)
	history := newHistory(t)
	ctx := context.Background()

	// Given several appends sharing the same timestamp
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	seen := make(map[uuid.UUID]struct{})
	var previous time.Time
	for i := 0; i < 10; i++ {
		m, err := history.Append(ctx, chat.Message{Room: "general", Sender: "bob", Text: "same", CreatedAt: at})
		req.NoError(err)

		// Then every message gets its own id and a strictly later timestamp
		req.NotEqual(uuid.Nil, m.ID)
		_, dup := seen[m.ID]
		req.False(dup)
		seen[m.ID] = struct{}{}
		req.True(m.CreatedAt.After(previous))
		previous = m.CreatedAt
	}
}

func TestHistoryService_Page_Default(t *testing.T) {
	req := require.New(t)
	history := newHistory(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	all := seed(t, history, "general", 60, base)

	// When loading a room without cursor
	page, err := history.Page(context.Background(), chat.PageQuery{Room: "general"})

	// Then the 50 most recent come back in chronological order
	req.NoError(err)
	req.True(page.HasMore)
	req.Len(page.Messages, chat.DefaultPageLimit)
	req.Equal(all[10].ID, page.Messages[0].ID)
	req.Equal(all[59].ID, page.Messages[49].ID)
	for i := 1; i < len(page.Messages); i++ {
		req.True(page.Messages[i].CreatedAt.After(page.Messages[i-1].CreatedAt))
	}
}

func TestHistoryService_Page_Before(t *testing.T) {
	req := require.New(t)
	history := newHistory(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	all := seed(t, history, "general", 30, base)

	// Given a cursor in the middle of the history
	cursor := all[25].CreatedAt

	// When paging 20 messages before it
	page, err := history.Page(context.Background(), chat.PageQuery{Room: "general", Limit: 20, Before: &cursor})

	// Then no message at or after the cursor is returned
	req.NoError(err)
	req.Len(page.Messages, 20)
	for _, m := range page.Messages {
		req.True(m.CreatedAt.Before(cursor))
	}
	// And the page is made of the messages right before the cursor
	req.Equal(all[5].ID, page.Messages[0].ID)
	req.Equal(all[24].ID, page.Messages[19].ID)
}

func TestHistoryService_Page_BeforeOldestIsEmpty(t *testing.T) {
	req := require.New(t)
	history := newHistory(t)
	all := seed(t, history, "general", 3, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	oldest := all[0].CreatedAt
	page, err := history.Page(context.Background(), chat.PageQuery{Room: "general", Limit: 50, Before: &oldest})

	req.NoError(err)
	req.Empty(page.Messages)
	req.False(page.HasMore)
}

func TestHistoryService_Page_Backfill(t *testing.T) {
	req := require.New(t)
	history := newHistory(t)
	seed(t, history, "general", 45, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	// Walking back page by page until an empty page visits every message once
	var total, pages int
	var before *time.Time
	for {
		page, err := history.Page(context.Background(), chat.PageQuery{Room: "general", Limit: 20, Before: before})
		req.NoError(err)
		if !page.HasMore {
			break
		}
		pages++
		total += len(page.Messages)
		oldest, _ := page.Oldest()
		before = &oldest
	}
	req.Equal(45, total)
	req.Equal(3, pages)
}

func TestHistoryService_Page_CapsLimit(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	history := NewHistoryService(slog.Default(), repository, nil, 200)

	repository.EXPECT().
		GetMessages(gomock.Any(), "general", gomock.Nil(), 200).
		Return(nil, nil).
		Times(1)

	page, err := history.Page(context.Background(), chat.PageQuery{Room: "general", Limit: 10_000})
	req.NoError(err)
	req.False(page.HasMore)
}

func TestHistoryService_Append_PersistenceError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	index := mocks.NewMockIMessageIndex(ctrl)
	history := NewHistoryService(slog.Default(), repository, index, 200)

	// Given storage is unavailable
	repository.EXPECT().
		StoreMessage(gomock.Any(), gomock.Any()).
		Return(repositories.DiskMessage{}, badger.ErrDBClosed).
		Times(1)
	// Then nothing is indexed
	index.EXPECT().Index(gomock.Any(), gomock.Any()).Times(0)

	_, err := history.Append(context.Background(), chat.Message{Room: "general", Sender: "a", Text: "x"})

	req.ErrorIs(err, errors.ErrPersistence)
	req.ErrorIs(err, badger.ErrDBClosed)
}

func TestHistoryService_Append_StoresInCursorOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	history := NewHistoryService(slog.Default(), repository, nil, 200)

	// Given a store that is slow enough for appends to overlap
	var mu sync.Mutex
	var stored []time.Time
	repository.EXPECT().
		StoreMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, m repositories.DiskMessage) (repositories.DiskMessage, error) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			stored = append(stored, m.At)
			mu.Unlock()
			m.ID = uuid.New()
			return m, nil
		}).
		Times(20)

	// When twenty senders append to the same room at once
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := history.Append(context.Background(), chat.Message{Room: "tech", Sender: "a", Text: "x", CreatedAt: at})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then every store happened after the one holding the previous cursor
	req.Len(stored, 20)
	for i := 1; i < len(stored); i++ {
		req.True(stored[i].After(stored[i-1]), "store %d is older than store %d", i, i-1)
	}
}

func TestHistoryService_Append_RejectsEmptyMessage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	history := NewHistoryService(slog.Default(), repository, nil, 200)

	repository.EXPECT().StoreMessage(gomock.Any(), gomock.Any()).Times(0)

	_, err := history.Append(context.Background(), chat.Message{Room: "tech", Sender: "a", Text: "  "})

	req.ErrorIs(err, errors.ErrEmptyMessage)
}

func TestHistoryService_Search(t *testing.T) {
	req := require.New(t)
	history := newHistory(t)
	ctx := context.Background()

	_, err := history.Append(ctx, chat.Message{Room: "tech", Sender: "alice", Text: "the build is broken"})
	req.NoError(err)
	_, err = history.Append(ctx, chat.Message{Room: "tech", Sender: "bob", Text: "fixed the build"})
	req.NoError(err)
	_, err = history.Append(ctx, chat.Message{Room: "tech", Sender: "bob", Text: "lunch?"})
	req.NoError(err)

	found, total, err := history.Search(ctx, chat.SearchQuery{Room: "tech", Terms: "build"})
	req.NoError(err)
	req.Equal(uint64(2), total)
	req.Len(found, 2)
	req.Equal("fixed the build", found[0].Text)

	_, _, err = history.Search(ctx, chat.SearchQuery{Room: "tech", Terms: "  "})
	req.ErrorIs(err, errors.ErrValidation)
}
