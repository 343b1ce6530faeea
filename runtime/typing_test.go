package runtime

import (
	"chat-relay/domain/event"
	"chat-relay/observability"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestTyping() (*TypingCoordinator, *fakeClock, *recordingPublisher, *observability.Metrics) {
	clock := newFakeClock()
	publisher := &recordingPublisher{}
	metrics := observability.NewMetrics()
	return NewTypingCoordinator(slog.Default(), clock, time.Second, publisher, metrics), clock, publisher, metrics
}

func TestTyping_ExpiresWithoutFurtherSignal(t *testing.T) {
	req := require.New(t)
	typing, clock, publisher, metrics := newTestTyping()

	// Given alice starts typing in tech
	typing.SetTyping("tech", "alice", "c1")
	req.Equal([]string{"alice"}, typing.Typing("tech"))
	req.Equal(float64(1), testutil.ToFloat64(metrics.TypingActive))

	// When time passes beyond the expiry
	clock.Advance(999 * time.Millisecond)
	req.Equal([]string{"alice"}, typing.Typing("tech"))
	clock.Advance(time.Millisecond)

	// Then the indicator is cleared on its own and a stop is published
	req.Empty(typing.Typing("tech"))
	req.Zero(testutil.ToFloat64(metrics.TypingActive))
	req.Equal([]event.Envelope{
		{Event: event.TypingStarted{Room: "tech", User: "alice"}, Exclude: "c1"},
		{Event: event.TypingStopped{Room: "tech", User: "alice"}, Exclude: "c1"},
	}, publisher.Envelopes())
}

func TestTyping_ResetInsteadOfStacking(t *testing.T) {
	req := require.New(t)
	typing, clock, publisher, _ := newTestTyping()

	// Given several keystrokes 600ms apart
	typing.SetTyping("tech", "alice", "c1")
	clock.Advance(600 * time.Millisecond)
	typing.SetTyping("tech", "alice", "c1")
	clock.Advance(600 * time.Millisecond)

	// Then the first timer did not clear the indicator
	req.Equal([]string{"alice"}, typing.Typing("tech"))
	req.Equal(1, clock.Pending())
	req.Len(publisher.Envelopes(), 1)

	// And the last keystroke sets the deadline
	clock.Advance(400 * time.Millisecond)
	req.Empty(typing.Typing("tech"))
	req.Len(publisher.Envelopes(), 2)
}

func TestTyping_ClearStopsTimer(t *testing.T) {
	req := require.New(t)
	typing, clock, publisher, _ := newTestTyping()

	typing.SetTyping("tech", "alice", "c1")
	typing.ClearTyping("tech", "alice")

	req.Empty(typing.Typing("tech"))
	req.Zero(clock.Pending())

	// The cancelled timer never publishes a second stop
	clock.Advance(5 * time.Second)
	req.Len(publisher.Envelopes(), 2)

	// Clearing an idle user publishes nothing
	typing.ClearTyping("tech", "alice")
	req.Len(publisher.Envelopes(), 2)
}

func TestTyping_RoomsAndUsersAreIndependent(t *testing.T) {
	req := require.New(t)
	typing, clock, _, _ := newTestTyping()

	typing.SetTyping("tech", "alice", "c1")
	clock.Advance(500 * time.Millisecond)
	typing.SetTyping("tech", "bob", "c2")
	typing.SetTyping("random", "alice", "c3")
	clock.Advance(500 * time.Millisecond)

	req.Equal([]string{"bob"}, typing.Typing("tech"))
	req.Equal([]string{"alice"}, typing.Typing("random"))
}
