package websocket

import (
	"chat-relay/infrastructure/wire"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn feeds frames to a session and records what it writes.
type fakeConn struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once

	mu      sync.Mutex
	written []wire.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.incoming:
		if !ok {
			return 0, nil, io.EOF
		}
		return TextMessage, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	frame, err := wire.Decode(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, frameType, requestID string, payload any) {
	t.Helper()
	data, err := wire.Encode(frameType, requestID, payload)
	require.NoError(t, err)
	c.incoming <- data
}

func (c *fakeConn) frames(frameType string) []wire.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []wire.Frame
	for _, f := range c.written {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

// waitFor returns the first written frame of frameType matching match.
func (c *fakeConn) waitFor(t *testing.T, frameType string, match func(wire.Frame) bool) wire.Frame {
	t.Helper()
	var found wire.Frame
	require.Eventually(t, func() bool {
		for _, f := range c.frames(frameType) {
			if match == nil || match(f) {
				found = f
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "no %s frame", frameType)
	return found
}

func payloadOf[T any](t *testing.T, frame wire.Frame) T {
	t.Helper()
	var v T
	require.NoError(t, wire.Unmarshal(frame, &v))
	return v
}
