package runtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"careerlink/domain"
	"careerlink/domain/event"
	"careerlink/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMultiplexer_PushToUser_No_Live_Session(t *testing.T) {
	req := require.New(t)
	messages, conversations := testRepos(t)
	registry := NewPresenceRegistry(slogDiscard())
	queue := NewOfflineQueue(slogDiscard(), messages)
	mux := NewMultiplexer(slogDiscard(), registry, queue, conversations)

	// When pushing to a user who is not connected
	delivered := mux.PushToUser(context.Background(), "ghost", event.AllNotificationsMarkedRead{})

	// Then the result is false, not an error
	req.False(delivered)
}

func TestMultiplexer_PushToUser_Dead_Connection(t *testing.T) {
	req := require.New(t)
	messages, conversations := testRepos(t)
	registry := NewPresenceRegistry(slogDiscard())
	queue := NewOfflineQueue(slogDiscard(), messages)
	mux := NewMultiplexer(slogDiscard(), registry, queue, conversations)

	// Given a session whose socket rejects writes
	sink := &recordingSink{fail: fmt.Errorf("broken pipe")}
	registry.SetOnline("user-a", sink)

	delivered := mux.PushToUser(context.Background(), "user-a", event.AllNotificationsMarkedRead{})
	req.False(delivered)
}

func TestMultiplexer_PushToUser_Live(t *testing.T) {
	req := require.New(t)
	messages, conversations := testRepos(t)
	registry := NewPresenceRegistry(slogDiscard())
	queue := NewOfflineQueue(slogDiscard(), messages)
	mux := NewMultiplexer(slogDiscard(), registry, queue, conversations)

	sink := &recordingSink{}
	registry.SetOnline("user-a", sink)

	delivered := mux.PushToUser(context.Background(), "user-a", event.AllNotificationsMarkedRead{Count: 2})
	req.True(delivered)
	req.Len(sink.Events(), 1)
}

func TestMultiplexer_OnConnect_Flushes_Queued_History_First(t *testing.T) {
	req := require.New(t)
	messages, conversations := testRepos(t)
	registry := NewPresenceRegistry(slogDiscard())
	queue := NewOfflineQueue(slogDiscard(), messages)
	mux := NewMultiplexer(slogDiscard(), registry, queue, conversations)

	// Given a message parked while user-b was offline
	parked := storeQueued(t, messages, "user-b", "missed you", time.Now().UTC())

	// When user-b connects
	sink := &recordingSink{}
	req.NoError(mux.OnConnect(context.Background(), "user-b", sink))

	// Then the backlog reaches the new connection before anything else
	events := sink.Events()
	req.NotEmpty(events)
	nm, ok := events[0].(event.NewMessage)
	req.True(ok)
	req.Equal(parked.ID, nm.Message.ID)

	// And the store reflects the delivery
	fetched, err := messages.Get(parked.ID)
	req.NoError(err)
	req.Equal(domain.DeliveryDelivered, fetched.DeliveryStatus)
}

func TestMultiplexer_Presence_Broadcast_To_Partners(t *testing.T) {
	req := require.New(t)
	messages, conversations := testRepos(t)
	registry := NewPresenceRegistry(slogDiscard())
	queue := NewOfflineQueue(slogDiscard(), messages)
	mux := NewMultiplexer(slogDiscard(), registry, queue, conversations)
	ctx := context.Background()

	// Given user-a and user-b share a conversation, and user-b is live
	_, _, err := conversations.GetOrCreate("user-a", "user-b", time.Now().UTC())
	req.NoError(err)
	partnerSink := &recordingSink{}
	registry.SetOnline("user-b", partnerSink)

	// When user-a connects
	req.NoError(mux.OnConnect(ctx, "user-a", &recordingSink{}))

	// Then user-b sees the presence change
	events := partnerSink.Events()
	req.NotEmpty(events)
	pc, ok := events[len(events)-1].(event.PresenceChanged)
	req.True(ok)
	req.Equal("user-a", pc.UserID)
	req.Equal(domain.StatusOnline, pc.Status)

	// When user-a disconnects
	mux.OnDisconnect(ctx, "user-a")

	// Then user-b sees the user go offline, and the session is gone
	events = partnerSink.Events()
	pc, ok = events[len(events)-1].(event.PresenceChanged)
	req.True(ok)
	req.Equal(domain.StatusOffline, pc.Status)
	req.False(registry.IsOnline("user-a"))
}

func TestMultiplexer_Session_Replacement_Keeps_Connection_Gauge_Balanced(t *testing.T) {
	req := require.New(t)
	messages, conversations := testRepos(t)
	registry := NewPresenceRegistry(slogDiscard())
	queue := NewOfflineQueue(slogDiscard(), messages)
	mux := NewMultiplexer(slogDiscard(), registry, queue, conversations)
	ctx := context.Background()

	baseline := testutil.ToFloat64(metrics.ConnectionsActive)

	// Given a user who connects, then reconnects on a new socket
	first := &recordingSink{}
	req.NoError(mux.OnConnect(ctx, "user-a", first))
	req.NoError(mux.OnConnect(ctx, "user-a", &recordingSink{}))

	// Then one user holds exactly one gauge share, not two
	req.Equal(baseline+1, testutil.ToFloat64(metrics.ConnectionsActive))
	req.True(first.Closed())

	// When the surviving connection goes away
	mux.OnDisconnect(ctx, "user-a")

	// Then the gauge settles back to its starting point
	req.Equal(baseline, testutil.ToFloat64(metrics.ConnectionsActive))
}

func TestMultiplexer_PushToConversation_Excludes_Originator(t *testing.T) {
	req := require.New(t)
	messages, conversations := testRepos(t)
	registry := NewPresenceRegistry(slogDiscard())
	queue := NewOfflineQueue(slogDiscard(), messages)
	mux := NewMultiplexer(slogDiscard(), registry, queue, conversations)
	ctx := context.Background()

	conv, _, err := conversations.GetOrCreate("user-a", "user-b", time.Now().UTC())
	req.NoError(err)

	sinkA := &recordingSink{}
	sinkB := &recordingSink{}
	registry.SetOnline("user-a", sinkA)
	registry.SetOnline("user-b", sinkB)

	// When routing an event to the thread, excluding the sender
	mux.PushToConversation(ctx, conv, event.ConversationRead{ConversationID: conv.ID}, "user-a")

	// Then only the peer receives it
	req.Empty(sinkA.Events())
	req.Len(sinkB.Events(), 1)
}
