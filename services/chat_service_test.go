package services

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newChatService(t *testing.T) *ChatService {
	t.Helper()
	catalog, err := chat.NewCatalog("general", "tech")
	require.NoError(t, err)
	moderator, err := moderation.NewModerator(nil, '*', slog.Default())
	require.NoError(t, err)
	history := newHistory(t)

	orchestrator := runtime.NewOrchestrator(slog.Default(), runtime.Options{
		Catalog:           catalog,
		FanoutBufferSize:  64,
		FanoutMaxAttempts: 1,
		EnqueueTimeout:    time.Second,
		SinkTimeout:       time.Second,
		TypingExpiry:      time.Second,
		MetricInterval:    time.Hour,
		RestartInterval:   10 * time.Millisecond,
	}, history, mocks.NewMockIBlobStore(gomock.NewController(t)), moderator, observability.NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	go orchestrator.Start(ctx)
	t.Cleanup(func() {
		cancel()
		orchestrator.Stop()
	})
	return NewChatService(orchestrator, history)
}

func TestChatService_FetchHistory_ResolvesRoom(t *testing.T) {
	req := require.New(t)
	service := newChatService(t)
	ctx := context.Background()

	_, err := service.FetchHistory(ctx, "ghost", chat.PageQuery{Room: "tech"})
	req.ErrorIs(err, errors.ErrUnknownIdentity)

	req.True(service.Connect("c1", "alice", sink.NewConnectionSink(16)))

	// Not joined and no room given
	_, err = service.FetchHistory(ctx, "c1", chat.PageQuery{})
	req.ErrorIs(err, errors.ErrNotInRoom)

	// A room outside the catalog
	_, err = service.FetchHistory(ctx, "c1", chat.PageQuery{Room: "lobby"})
	req.ErrorIs(err, errors.ErrUnknownRoom)

	// A catalog room can be read without joining it
	page, err := service.FetchHistory(ctx, "c1", chat.PageQuery{Room: "general"})
	req.NoError(err)
	req.Empty(page.Messages)
	req.False(page.HasMore)
}

func TestChatService_SendThenBackfill(t *testing.T) {
	req := require.New(t)
	service := newChatService(t)
	ctx := context.Background()
	alice := sink.NewConnectionSink(64)

	// Given alice in tech with three sent messages
	req.True(service.Connect("c1", "alice", alice))
	users, err := service.JoinRoom("c1", "tech")
	req.NoError(err)
	req.Equal([]string{"alice"}, users)
	for i := 0; i < 3; i++ {
		receipt, err := service.SendMessage(ctx, "c1", chat.SubmitMessageCommand{
			Text: fmt.Sprintf("note %d", i), CorrelationID: fmt.Sprintf("x%d", i),
		})
		req.NoError(err)
		req.Equal(chat.Acknowledged, receipt.Delivery.State)
		req.Equal(chat.RoomName("tech"), receipt.Message.Room)
	}

	// When she backfills two at a time
	var texts []string
	query := chat.PageQuery{Limit: 2}
	for {
		page, err := service.FetchHistory(ctx, "c1", query)
		req.NoError(err)
		if !page.HasMore {
			req.Empty(page.Messages)
			break
		}
		for i := len(page.Messages) - 1; i >= 0; i-- {
			texts = append(texts, page.Messages[i].Text)
		}
		oldest, _ := page.Oldest()
		query.Before = &oldest
	}

	// Then she walks the whole room newest to oldest, each message once
	req.Equal([]string{"note 2", "note 1", "note 0"}, texts)

	// And her own sink received the canonical copies
	received := 0
	req.Eventually(func() bool {
		for {
			select {
			case e := <-alice.Events():
				if _, ok := e.(event.MessageReceived); ok {
					received++
				}
			default:
				return received == 3
			}
		}
	}, time.Second, 10*time.Millisecond)

	found, total, err := service.SearchMessages(ctx, "c1", chat.SearchQuery{Terms: "note"})
	req.NoError(err)
	req.Equal(uint64(3), total)
	req.Len(found, 3)
}
