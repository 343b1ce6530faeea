package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/runtime"
	"context"
)

//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks

// IChatService is everything a transport session may ask for.
type IChatService interface {
	Rooms() []chat.RoomName
	Connect(connID chat.ConnectionID, user string, sink contract.EventSink) bool
	JoinRoom(connID chat.ConnectionID, room chat.RoomName) ([]string, error)
	LeaveRoom(connID chat.ConnectionID)
	Disconnect(connID chat.ConnectionID)
	SendMessage(ctx context.Context, connID chat.ConnectionID, cmd chat.SubmitMessageCommand) (chat.Receipt, error)
	StartTyping(connID chat.ConnectionID) error
	StopTyping(connID chat.ConnectionID) error
	FetchHistory(ctx context.Context, connID chat.ConnectionID, query chat.PageQuery) (chat.Page, error)
	SearchMessages(ctx context.Context, connID chat.ConnectionID, query chat.SearchQuery) ([]chat.Message, uint64, error)
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
	history      *HistoryService
}

func NewChatService(o *runtime.Orchestrator, history *HistoryService) *ChatService {
	return &ChatService{orchestrator: o, history: history}
}

func (s *ChatService) Rooms() []chat.RoomName {
	return s.orchestrator.Rooms()
}

func (s *ChatService) Connect(connID chat.ConnectionID, user string, sink contract.EventSink) bool {
	return s.orchestrator.Connect(connID, user, sink)
}

func (s *ChatService) JoinRoom(connID chat.ConnectionID, room chat.RoomName) ([]string, error) {
	return s.orchestrator.JoinRoom(connID, room)
}

func (s *ChatService) LeaveRoom(connID chat.ConnectionID) {
	s.orchestrator.LeaveRoom(connID)
}

func (s *ChatService) Disconnect(connID chat.ConnectionID) {
	s.orchestrator.Disconnect(connID)
}

func (s *ChatService) SendMessage(ctx context.Context, connID chat.ConnectionID, cmd chat.SubmitMessageCommand) (chat.Receipt, error) {
	return s.orchestrator.Submit(ctx, connID, cmd)
}

func (s *ChatService) StartTyping(connID chat.ConnectionID) error {
	return s.orchestrator.StartTyping(connID)
}

func (s *ChatService) StopTyping(connID chat.ConnectionID) error {
	return s.orchestrator.StopTyping(connID)
}

// FetchHistory serves a backfill page. An empty room means the room the
// connection currently sits in.
func (s *ChatService) FetchHistory(ctx context.Context, connID chat.ConnectionID, query chat.PageQuery) (chat.Page, error) {
	room, err := s.resolveRoom(connID, query.Room)
	if err != nil {
		return chat.Page{}, err
	}
	query.Room = room
	return s.history.Page(ctx, query)
}

func (s *ChatService) SearchMessages(ctx context.Context, connID chat.ConnectionID, query chat.SearchQuery) ([]chat.Message, uint64, error) {
	room, err := s.resolveRoom(connID, query.Room)
	if err != nil {
		return nil, 0, err
	}
	query.Room = room
	return s.history.Search(ctx, query)
}

func (s *ChatService) resolveRoom(connID chat.ConnectionID, room chat.RoomName) (chat.RoomName, error) {
	if _, ok := s.orchestrator.User(connID); !ok {
		return "", errors.ErrUnknownIdentity
	}
	if room == "" {
		current, joined := s.orchestrator.Room(connID)
		if !joined {
			return "", errors.ErrNotInRoom
		}
		return current, nil
	}
	if !s.orchestrator.Catalog().Contains(room) {
		return "", errors.ErrUnknownRoom
	}
	return room, nil
}
