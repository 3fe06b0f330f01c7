package runtime

import (
	"context"
	"log/slog"
	"time"

	"careerlink/contract"
	"careerlink/domain"
	"careerlink/domain/event"
	"careerlink/internal/metrics"
	"careerlink/repositories"
)

// Multiplexer owns the mapping between users and their live transport
// connection. It is a dumb router by design: whether a user may receive an
// event for a conversation is decided upstream by the delivery pipeline,
// never here.
//
// Write serialization per connection is guaranteed by the sink itself (one
// write pump per socket); the multiplexer only needs the registry's
// concurrent map to find the right sink.
type Multiplexer struct {
	log           *slog.Logger
	registry      contract.IPresenceRegistry
	queue         contract.IOfflineQueue
	conversations repositories.IConversationRepository
}

func NewMultiplexer(
	log *slog.Logger,
	registry contract.IPresenceRegistry,
	queue contract.IOfflineQueue,
	conversations repositories.IConversationRepository,
) *Multiplexer {
	return &Multiplexer{
		log:           log,
		registry:      registry,
		queue:         queue,
		conversations: conversations,
	}
}

// OnConnect registers the session and flushes the user's offline queue
// before the gateway accepts any new inbound traffic, so queued history
// always precedes live events in the client's observed order.
//
// A flush error is logged but does not reject the connection: undelivered
// messages keep their queued status and are retried on the next connect.
func (m *Multiplexer) OnConnect(ctx context.Context, userID string, conn contract.ConnectionSink) error {
	replaced := m.registry.SetOnline(userID, conn)
	if replaced {
		m.log.Debug("Previous session replaced", "user_id", userID)
		// The replaced handler observes it is no longer current and skips
		// OnDisconnect, so its gauge share is settled here.
		metrics.ConnectionsActive.Dec()
	}
	metrics.ConnectionsActive.Inc()

	delivered, err := m.queue.Flush(ctx, userID, conn.Consume)
	if delivered > 0 {
		m.log.Info("Offline queue flushed", "user_id", userID, "delivered", delivered)
		metrics.MessagesDelivered.WithLabelValues("flush").Add(float64(delivered))
	}
	if err != nil {
		m.log.Warn("Flush interrupted, remaining payloads stay queued",
			"user_id", userID, "delivered", delivered, "error", err)
	}

	m.BroadcastPresence(ctx, domain.Session{
		UserID:       userID,
		Status:       domain.StatusOnline,
		LastActiveAt: time.Now().UTC(),
	})
	return nil
}

// OnDisconnect drops the session and tells conversation partners the user
// went offline.
func (m *Multiplexer) OnDisconnect(ctx context.Context, userID string) {
	m.registry.SetOffline(userID)
	metrics.ConnectionsActive.Dec()
	m.BroadcastPresence(ctx, domain.Session{
		UserID:       userID,
		Status:       domain.StatusOffline,
		LastActiveAt: time.Now().UTC(),
	})
}

// PushToUser delivers one event to the user's live connection. Returns
// false, not an error, when the user has no live session or the write
// failed; callers use this to decide queuing.
func (m *Multiplexer) PushToUser(ctx context.Context, userID string, e event.DomainEvent) bool {
	sink, ok := m.registry.Sink(userID)
	if !ok {
		return false
	}
	if err := sink.Consume(ctx, e); err != nil {
		m.log.Warn("Push failed, treating user as unreachable",
			"user_id", userID, "event", e.Event(), "error", err)
		return false
	}
	return true
}

// PushToConversation routes an event to every participant of the thread,
// optionally excluding one (usually the originator).
func (m *Multiplexer) PushToConversation(ctx context.Context, conv domain.Conversation, e event.DomainEvent, excludeUserID string) {
	for _, participant := range conv.ParticipantIDs {
		if participant == excludeUserID {
			continue
		}
		m.PushToUser(ctx, participant, e)
	}
}

// BroadcastPresence pushes a presence transition to everyone sharing a
// conversation with the user. Used on connect, disconnect and by the idle
// sweep worker.
func (m *Multiplexer) BroadcastPresence(ctx context.Context, session domain.Session) {
	partners, err := m.conversations.PartnersOf(session.UserID)
	if err != nil {
		m.log.Error("Failed to resolve conversation partners for presence broadcast",
			"user_id", session.UserID, "error", err)
		return
	}
	evt := event.PresenceChanged{
		UserID:       session.UserID,
		Status:       session.Status,
		LastActiveAt: session.LastActiveAt,
	}
	for _, partner := range partners {
		m.PushToUser(ctx, partner, evt)
	}
}
