package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/observability"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *Broadcaster, *observability.Metrics) {
	metrics := observability.NewMetrics()
	broadcaster := NewBroadcaster(slog.Default(), mustCatalog(t, "general", "random", "tech", "design"), metrics, time.Second, 1)
	return NewRegistry(broadcaster, metrics), broadcaster, metrics
}

func TestRegistry_Register(t *testing.T) {
	req := require.New(t)
	registry, _, metrics := newTestRegistry(t)

	// Given a connection registered for alice
	req.True(registry.Register("c1", "alice", &recordingSink{}))

	// When the same connection registers again as someone else
	req.False(registry.Register("c1", "mallory", &recordingSink{}))

	// Then the first binding wins
	user, ok := registry.User("c1")
	req.True(ok)
	req.Equal("alice", user)
	req.Equal(1, registry.Count())
	req.Equal(float64(1), testutil.ToFloat64(metrics.Connections))

	// And a user may own several connections
	req.True(registry.Register("c2", "alice", &recordingSink{}))
	req.Equal(2, registry.Count())
}

func TestRegistry_JoinRoom_SwitchRooms(t *testing.T) {
	req := require.New(t)
	registry, broadcaster, _ := newTestRegistry(t)
	registry.Register("c1", "alice", &recordingSink{})
	registry.Register("c2", "bob", &recordingSink{})

	_, err := registry.JoinRoom("c2", "general")
	req.NoError(err)

	// Given alice in general
	change, err := registry.JoinRoom("c1", "general")
	req.NoError(err)
	req.Nil(change.Left)
	req.Equal([]string{"bob", "alice"}, change.Joined.Users)

	// When alice moves to random
	change, err = registry.JoinRoom("c1", "random")
	req.NoError(err)

	// Then general no longer lists her and random lists her once
	req.NotNil(change.Left)
	req.Equal(chat.RoomName("general"), change.Left.Room)
	req.Equal([]string{"bob"}, change.Left.Users)
	req.Equal([]string{"alice"}, change.Joined.Users)
	req.Equal([]string{"bob"}, broadcaster.PresenceSnapshot("general"))
	req.Equal([]string{"alice"}, broadcaster.PresenceSnapshot("random"))

	room, ok := registry.Room("c1")
	req.True(ok)
	req.Equal(chat.RoomName("random"), room)

	// And joining random again changes nothing
	change, err = registry.JoinRoom("c1", "random")
	req.NoError(err)
	req.Nil(change.Left)
	req.Equal([]string{"alice"}, change.Joined.Users)
}

func TestRegistry_JoinRoom_UnknownRoom(t *testing.T) {
	req := require.New(t)
	registry, broadcaster, _ := newTestRegistry(t)
	registry.Register("c1", "alice", &recordingSink{})
	_, err := registry.JoinRoom("c1", "general")
	req.NoError(err)

	// When joining a room outside the catalog
	_, err = registry.JoinRoom("c1", "nowhere")

	// Then the join is rejected and the current room is kept
	req.ErrorIs(err, errors.ErrUnknownRoom)
	req.Equal([]string{"alice"}, broadcaster.PresenceSnapshot("general"))
}

func TestRegistry_UnknownConnectionIsNoop(t *testing.T) {
	req := require.New(t)
	registry, _, _ := newTestRegistry(t)

	change, err := registry.JoinRoom("ghost", "general")
	req.NoError(err)
	req.True(change.IsZero())
	req.Nil(registry.LeaveRoom("ghost"))
	user, left := registry.Unregister("ghost")
	req.Empty(user)
	req.Nil(left)
}

func TestRegistry_Unregister_SoleMember(t *testing.T) {
	req := require.New(t)
	registry, broadcaster, metrics := newTestRegistry(t)

	// Given carol alone in design
	registry.Register("c1", "carol", &recordingSink{})
	_, err := registry.JoinRoom("c1", "design")
	req.NoError(err)

	// When her connection drops
	user, left := registry.Unregister("c1")

	// Then design is empty and nothing references the connection anymore
	req.Equal("carol", user)
	req.NotNil(left)
	req.Equal(chat.RoomName("design"), left.Room)
	req.Empty(left.Users)
	req.NotNil(left.Users)
	req.Equal([]string{}, broadcaster.PresenceSnapshot("design"))
	req.Zero(registry.Count())
	_, ok := registry.User("c1")
	req.False(ok)
	req.Empty(broadcaster.sinks("design", ""))
	req.Zero(testutil.ToFloat64(metrics.Connections))

	// And a second unregister is ignored
	user, left = registry.Unregister("c1")
	req.Empty(user)
	req.Nil(left)
	req.Zero(testutil.ToFloat64(metrics.Connections))
}

func TestRegistry_LeaveRoom(t *testing.T) {
	req := require.New(t)
	registry, broadcaster, _ := newTestRegistry(t)
	registry.Register("c1", "alice", &recordingSink{})
	_, err := registry.JoinRoom("c1", "tech")
	req.NoError(err)

	left := registry.LeaveRoom("c1")

	req.NotNil(left)
	req.Equal(chat.RoomName("tech"), left.Room)
	req.Empty(broadcaster.PresenceSnapshot("tech"))
	_, joined := registry.Room("c1")
	req.False(joined)
	_, ok := registry.User("c1")
	req.True(ok)
	req.Nil(registry.LeaveRoom("c1"))
}

func TestRegistry_ConcurrentJoinsAndDisconnects(t *testing.T) {
	req := require.New(t)
	registry, broadcaster, _ := newTestRegistry(t)
	rooms := []chat.RoomName{"general", "random", "tech", "design"}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := chat.ConnectionID(fmt.Sprintf("c%d", i))
			registry.Register(connID, fmt.Sprintf("user%d", i), &recordingSink{})
			for j := 0; j < 10; j++ {
				_, _ = registry.JoinRoom(connID, rooms[(i+j)%len(rooms)])
			}
			if i%2 == 0 {
				registry.Unregister(connID)
			}
		}(i)
	}
	wg.Wait()

	// Every surviving connection is listed in exactly one room
	total := 0
	for _, room := range rooms {
		total += len(broadcaster.PresenceSnapshot(room))
	}
	req.Equal(50, total)
	req.Equal(50, registry.Count())
}
