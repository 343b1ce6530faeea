// Package client is a Go SDK for the relay: it keeps an optimistic outbox,
// reconciles the timeline with what the server broadcasts and backfills
// history page by page.
package client

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/wire"
	"chat-relay/projection"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

const (
	DefaultAckTimeout = 10 * time.Second
	DefaultPageSize   = 50
	eventBuffer       = 256
)

type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Options struct {
	AckTimeout time.Duration
	PageSize   int
}

type Client struct {
	log  *slog.Logger
	conn Conn
	user string
	opts Options

	outbox *projection.Outbox

	writeMu sync.Mutex

	mu       sync.Mutex
	room     chat.RoomName
	timeline *projection.Timeline
	presence []string
	timers   map[string]*time.Timer
	pending  map[string]chan wire.Frame

	events chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

// Dial opens a websocket to serverURL (ws://host:port/ws). The token, when
// set, is passed as a query parameter.
func Dial(ctx context.Context, log *slog.Logger, serverURL, token, user string, opts Options) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errors.ErrTransport, u.Host, err)
	}
	return New(log, conn, user, opts), nil
}

func New(log *slog.Logger, conn Conn, user string, opts Options) *Client {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Client{
		log:      log,
		conn:     conn,
		user:     user,
		opts:     opts,
		outbox:   projection.NewOutbox(),
		timeline: projection.NewTimeline(user),
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]chan wire.Frame),
		events:   make(chan event.DomainEvent, eventBuffer),
		done:     make(chan struct{}),
	}
}

// Run reads frames until the connection ends or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", errors.ErrTransport, err)
		}
		frame, err := wire.Decode(data)
		if err != nil {
			c.log.Warn("Invalid frame from server", "error", err)
			continue
		}
		c.handle(ctx, frame)
	}
}

func (c *Client) handle(ctx context.Context, frame wire.Frame) {
	if frame.RequestID != "" && c.resolve(frame) {
		return
	}
	switch frame.Type {
	case wire.TypeAck:
		var ack wire.Ack
		if err := wire.Unmarshal(frame, &ack); err != nil {
			c.log.Warn("Invalid ack", "error", err)
			return
		}
		c.settle(ack)
	case wire.TypeError:
		var e wire.Error
		_ = wire.Unmarshal(frame, &e)
		c.log.Warn("Server error", "code", e.Code, "message", e.Message)
	default:
		evt, ok, err := wire.DecodeEvent(frame)
		if err != nil {
			c.log.Warn("Invalid event", "type", frame.Type, "error", err)
			return
		}
		if !ok {
			c.log.Debug("Unexpected frame", "type", frame.Type)
			return
		}
		c.apply(ctx, evt)
	}
}

func (c *Client) apply(ctx context.Context, evt event.DomainEvent) {
	c.mu.Lock()
	if p, ok := evt.(event.PresenceUpdated); ok && p.Room == c.room {
		c.presence = p.Users
	}
	timeline := c.timeline
	c.mu.Unlock()

	_ = timeline.Consume(ctx, evt)
	select {
	case c.events <- evt:
	default:
		c.log.Debug("Event listener too slow, event dropped")
	}
}

// Join moves to room. The timeline starts over for the new room.
func (c *Client) Join(room chat.RoomName) error {
	c.mu.Lock()
	c.room = room
	c.timeline = projection.NewTimeline(c.user)
	c.presence = nil
	c.mu.Unlock()
	return c.write(wire.TypeJoinRoom, "", wire.JoinRoom{Room: string(room), User: c.user})
}

func (c *Client) Leave() error {
	return c.write(wire.TypeLeaveRoom, "", nil)
}

// Send posts text optimistically and returns its correlation id. Without an
// ack within the ack timeout the message is marked failed.
func (c *Client) Send(text string) (string, error) {
	return c.send(wire.SendMessage{Text: text})
}

// SendAttachment posts a message pointing at an already uploaded file.
func (c *Client) SendAttachment(text, attachmentURL string) (string, error) {
	return c.send(wire.SendMessage{Text: text, AttachmentURL: attachmentURL})
}

func (c *Client) send(payload wire.SendMessage) (string, error) {
	correlationID := uuid.NewString()
	payload.CorrelationID = correlationID

	c.mu.Lock()
	room := c.room
	timeline := c.timeline
	c.mu.Unlock()

	local := chat.Message{
		Room:          room,
		Sender:        c.user,
		Text:          payload.Text,
		AttachmentURL: payload.AttachmentURL,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.outbox.Track(correlationID, local, local.CreatedAt); err != nil {
		return "", err
	}
	timeline.AddLocal(correlationID, local)

	c.mu.Lock()
	c.timers[correlationID] = time.AfterFunc(c.opts.AckTimeout, func() { c.expire(correlationID, timeline) })
	c.mu.Unlock()

	if err := c.write(wire.TypeSendMessage, "", payload); err != nil {
		c.fail(correlationID, timeline, err.Error())
		return correlationID, err
	}
	return correlationID, nil
}

func (c *Client) settle(ack wire.Ack) {
	c.mu.Lock()
	timer, ok := c.timers[ack.CorrelationID]
	delete(c.timers, ack.CorrelationID)
	timeline := c.timeline
	c.mu.Unlock()
	if ok {
		timer.Stop()
	}

	if !ack.Success {
		c.fail(ack.CorrelationID, timeline, ack.Error)
		return
	}
	id, err := uuid.Parse(ack.DurableID)
	if err != nil {
		c.log.Warn("Ack without a valid durable id", "correlation_id", ack.CorrelationID)
	}
	if _, settled := c.outbox.Acknowledge(ack.CorrelationID, id); settled {
		timeline.MarkDelivered(ack.CorrelationID)
		return
	}
	c.log.Debug("Late ack ignored", "correlation_id", ack.CorrelationID)
}

func (c *Client) expire(correlationID string, timeline *projection.Timeline) {
	c.mu.Lock()
	delete(c.timers, correlationID)
	c.mu.Unlock()
	c.fail(correlationID, timeline, errors.ErrDeliveryTimeout.Error())
}

func (c *Client) fail(correlationID string, timeline *projection.Timeline, reason string) {
	if _, settled := c.outbox.Fail(correlationID, reason); settled {
		timeline.MarkFailed(correlationID)
	}
}

func (c *Client) Typing() error {
	return c.write(wire.TypeTyping, "", nil)
}

func (c *Client) StopTyping() error {
	return c.write(wire.TypeStopTyping, "", nil)
}

// FetchHistory asks for one page of the current room strictly older than
// before.
func (c *Client) FetchHistory(ctx context.Context, before *time.Time, limit int) (chat.Page, error) {
	frame, err := c.request(ctx, wire.TypeFetchHistory, wire.FetchHistory{Limit: limit, Before: before})
	if err != nil {
		return chat.Page{}, err
	}
	var page wire.HistoryPage
	if err := wire.Unmarshal(frame, &page); err != nil {
		return chat.Page{}, err
	}
	messages := make([]chat.Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		message, err := m.ToChat()
		if err != nil {
			return chat.Page{}, err
		}
		messages = append(messages, message)
	}
	return chat.Page{Room: chat.RoomName(page.Room), Messages: messages, HasMore: page.HasMore}, nil
}

// Backfill prepends older pages to the timeline until the server returns an
// empty page, and reports how many messages were added.
func (c *Client) Backfill(ctx context.Context) (int, error) {
	c.mu.Lock()
	timeline := c.timeline
	c.mu.Unlock()

	var before *time.Time
	if oldest, ok := timeline.Oldest(); ok {
		before = &oldest
	}
	added := 0
	for {
		page, err := c.FetchHistory(ctx, before, c.opts.PageSize)
		if err != nil {
			return added, err
		}
		oldest, ok := page.Oldest()
		if !page.HasMore || !ok {
			return added, nil
		}
		added += timeline.Prepend(page.Messages)
		before = &oldest
	}
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]chat.Message, uint64, error) {
	frame, err := c.request(ctx, wire.TypeSearchMessages, wire.SearchMessages{Query: query, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	var results wire.SearchResults
	if err := wire.Unmarshal(frame, &results); err != nil {
		return nil, 0, err
	}
	messages := make([]chat.Message, 0, len(results.Messages))
	for _, m := range results.Messages {
		message, err := m.ToChat()
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}
	return messages, results.Total, nil
}

// request sends a frame and waits for the reply carrying the same request id.
// An error frame is returned as an error.
func (c *Client) request(ctx context.Context, frameType string, payload any) (wire.Frame, error) {
	requestID := uuid.NewString()
	reply := make(chan wire.Frame, 1)
	c.mu.Lock()
	c.pending[requestID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	if err := c.write(frameType, requestID, payload); err != nil {
		return wire.Frame{}, err
	}
	select {
	case frame := <-reply:
		if frame.Type == wire.TypeError {
			var e wire.Error
			_ = wire.Unmarshal(frame, &e)
			return wire.Frame{}, fmt.Errorf("%s: %s", e.Code, e.Message)
		}
		return frame, nil
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	case <-c.done:
		return wire.Frame{}, fmt.Errorf("%w: connection closed", errors.ErrTransport)
	}
}

func (c *Client) resolve(frame wire.Frame) bool {
	c.mu.Lock()
	reply, ok := c.pending[frame.RequestID]
	c.mu.Unlock()
	if ok {
		reply <- frame
	}
	return ok
}

func (c *Client) write(frameType, requestID string, payload any) error {
	data, err := wire.Encode(frameType, requestID, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	return nil
}

func (c *Client) Timeline() []projection.Entry {
	c.mu.Lock()
	timeline := c.timeline
	c.mu.Unlock()
	return timeline.Entries()
}

func (c *Client) Outbox() *projection.Outbox {
	return c.outbox
}

func (c *Client) Presence() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.presence...)
}

// Events streams what the server pushed, after it was applied to the timeline.
func (c *Client) Events() <-chan event.DomainEvent {
	return c.events
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		c.mu.Lock()
		for id, timer := range c.timers {
			timer.Stop()
			delete(c.timers, id)
		}
		c.mu.Unlock()
	})
}
