// Package websocket serves chat sessions over persistent websocket
// connections: one reader loop decoding frames and one writer goroutine
// owning every write to the connection.
package websocket

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/wire"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	TextMessage = 1

	DefaultAckTimeout = 10 * time.Second
	DefaultBufferSize = 64

	maxDecodeErrors = 5
	replyBuffer     = 32
)

// Conn is the part of a websocket connection a session uses. Both the
// server side Fiber connection and the fasthttp client connection satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type SessionOptions struct {
	AckTimeout time.Duration
	BufferSize int
}

// Session is one live connection. The identity is resolved lazily on the
// first join_room and stays bound to the connection until it closes.
type Session struct {
	id       chat.ConnectionID
	log      *slog.Logger
	conn     Conn
	service  services.IChatService
	identity contract.IIdentity
	token    string
	opts     SessionOptions

	sink       *sink.ConnectionSink
	replies    chan []byte
	registered bool
}

func NewSession(
	log *slog.Logger,
	conn Conn,
	service services.IChatService,
	identity contract.IIdentity,
	token string,
	opts SessionOptions,
) *Session {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	id := chat.NewConnectionID()
	return &Session{
		id:       id,
		log:      log.With("connection_id", id),
		conn:     conn,
		service:  service,
		identity: identity,
		token:    token,
		opts:     opts,
		sink:     sink.NewConnectionSink(opts.BufferSize),
		replies:  make(chan []byte, replyBuffer),
	}
}

func (s *Session) ID() chat.ConnectionID {
	return s.id
}

// Serve reads frames until the connection fails or ctx is done, then
// removes every trace of the connection.
func (s *Session) Serve(ctx context.Context) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()
	defer func() {
		s.service.Disconnect(s.id)
		s.sink.Close()
		<-writerDone
		_ = s.conn.Close()
		s.log.Debug("Session closed")
	}()

	decodeErrors := 0
	for ctx.Err() == nil {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug("Connection read ended", "error", err)
			return
		}
		frame, err := wire.Decode(data)
		if err != nil {
			decodeErrors++
			s.sendError("", fmt.Errorf("%w: invalid frame: %v", errors.ErrValidation, err))
			if decodeErrors >= maxDecodeErrors {
				s.log.Warn("Too many invalid frames, closing connection")
				return
			}
			continue
		}
		decodeErrors = 0
		s.dispatch(ctx, frame)
	}
}

// writeLoop is the only writer of the connection. A failed write closes the
// sink so the broadcaster stops targeting this connection.
func (s *Session) writeLoop() {
	for {
		var data []byte
		select {
		case data = <-s.replies:
		case e := <-s.sink.Events():
			encoded, err := wire.EncodeEvent(e)
			if err != nil {
				s.log.Error("Event not encodable", "error", err)
				continue
			}
			data = encoded
		case <-s.sink.Done():
			s.flushReplies()
			return
		}
		if err := s.conn.WriteMessage(TextMessage, data); err != nil {
			s.log.Debug("Connection write failed", "error", err)
			s.sink.Close()
			_ = s.conn.Close()
			return
		}
	}
}

// flushReplies writes the answers queued before the session closed, such
// as the error explaining why.
func (s *Session) flushReplies() {
	for {
		select {
		case data := <-s.replies:
			if err := s.conn.WriteMessage(TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) dispatch(ctx context.Context, frame wire.Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Frame handler panicked", "type", frame.Type, "panic", r)
			s.sendError(frame.RequestID, fmt.Errorf("frame %s: internal error", frame.Type))
		}
	}()

	switch frame.Type {
	case wire.TypeJoinRoom:
		s.handleJoin(frame)
	case wire.TypeLeaveRoom:
		s.service.LeaveRoom(s.id)
	case wire.TypeSendMessage:
		s.handleSend(ctx, frame)
	case wire.TypeTyping:
		if err := s.service.StartTyping(s.id); err != nil {
			s.sendError(frame.RequestID, err)
		}
	case wire.TypeStopTyping:
		if err := s.service.StopTyping(s.id); err != nil {
			s.sendError(frame.RequestID, err)
		}
	case wire.TypeFetchHistory:
		s.handleFetchHistory(ctx, frame)
	case wire.TypeSearchMessages:
		s.handleSearch(ctx, frame)
	default:
		s.sendError(frame.RequestID, fmt.Errorf("%w: unsupported frame type %q", errors.ErrValidation, frame.Type))
	}
}

func (s *Session) handleJoin(frame wire.Frame) {
	var payload wire.JoinRoom
	if err := wire.Unmarshal(frame, &payload); err != nil {
		s.sendError(frame.RequestID, fmt.Errorf("%w: invalid join payload", errors.ErrValidation))
		return
	}
	room := strings.TrimSpace(payload.Room)
	if room == "" {
		s.sendError(frame.RequestID, fmt.Errorf("%w: room is required", errors.ErrValidation))
		return
	}

	if !s.registered {
		user, err := s.identity.Resolve(s.token, payload.User)
		if err != nil {
			s.sendError(frame.RequestID, err)
			return
		}
		s.service.Connect(s.id, user, s.sink)
		s.registered = true
		s.log.Info("Connection bound", "user", user)
	}

	if _, err := s.service.JoinRoom(s.id, chat.RoomName(room)); err != nil {
		s.sendError(frame.RequestID, err)
	}
}

// handleSend always answers with an ack carrying the correlation id, so the
// client can settle its outbox entry either way.
func (s *Session) handleSend(ctx context.Context, frame wire.Frame) {
	var payload wire.SendMessage
	if err := wire.Unmarshal(frame, &payload); err != nil {
		s.sendError(frame.RequestID, fmt.Errorf("%w: invalid send_message payload", errors.ErrValidation))
		return
	}

	ackCtx, cancel := context.WithTimeout(ctx, s.opts.AckTimeout)
	defer cancel()
	receipt, err := s.service.SendMessage(ackCtx, s.id, payload.ToCommand())

	ack := wire.Ack{CorrelationID: payload.CorrelationID, Success: err == nil}
	if err != nil {
		ack.Code = errors.Code(err)
		ack.Error = err.Error()
	} else {
		ack.DurableID = receipt.Message.ID.String()
	}
	s.reply(wire.TypeAck, frame.RequestID, ack)
}

func (s *Session) handleFetchHistory(ctx context.Context, frame wire.Frame) {
	var payload wire.FetchHistory
	if err := wire.Unmarshal(frame, &payload); err != nil {
		s.sendError(frame.RequestID, fmt.Errorf("%w: invalid fetch_history payload", errors.ErrValidation))
		return
	}
	page, err := s.service.FetchHistory(ctx, s.id, chat.PageQuery{
		Room:   chat.RoomName(payload.Room),
		Limit:  payload.Limit,
		Before: payload.Before,
	})
	if err != nil {
		s.sendError(frame.RequestID, err)
		return
	}
	s.reply(wire.TypeHistoryPage, frame.RequestID, wire.HistoryPage{
		Room:     string(page.Room),
		Messages: wire.FromMessages(page.Messages),
		HasMore:  page.HasMore,
	})
}

func (s *Session) handleSearch(ctx context.Context, frame wire.Frame) {
	var payload wire.SearchMessages
	if err := wire.Unmarshal(frame, &payload); err != nil {
		s.sendError(frame.RequestID, fmt.Errorf("%w: invalid search_messages payload", errors.ErrValidation))
		return
	}
	found, total, err := s.service.SearchMessages(ctx, s.id, chat.SearchQuery{
		Room:  chat.RoomName(payload.Room),
		Terms: payload.Query,
		Limit: payload.Limit,
	})
	if err != nil {
		s.sendError(frame.RequestID, err)
		return
	}
	room := payload.Room
	if len(found) > 0 {
		room = string(found[0].Room)
	}
	s.reply(wire.TypeSearchResults, frame.RequestID, wire.SearchResults{
		Room:     room,
		Query:    payload.Query,
		Messages: wire.FromMessages(found),
		Total:    total,
	})
}

func (s *Session) sendError(requestID string, err error) {
	s.reply(wire.TypeError, requestID, wire.Error{Code: errors.Code(err), Message: err.Error()})
}

// reply queues a direct answer for the writer. It gives up once the
// connection is closing.
func (s *Session) reply(frameType, requestID string, payload any) {
	data, err := wire.Encode(frameType, requestID, payload)
	if err != nil {
		s.log.Error("Reply not encodable", "type", frameType, "error", err)
		return
	}
	select {
	case s.replies <- data:
	case <-s.sink.Done():
	}
}
