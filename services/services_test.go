package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"careerlink/domain/event"
	"careerlink/moderation"
	"careerlink/repositories"
	"careerlink/runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// recordingSink stands in for a live connection.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() {}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func (s *recordingSink) EventNames() []string {
	var names []string
	for _, e := range s.Events() {
		names = append(names, e.Event())
	}
	return names
}

func newModerator(words []string) (*moderation.Moderator, error) {
	m, err := moderation.NewModerator(words, '*')
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// testStack wires the full realtime core over a throwaway BadgerDB.
type testStack struct {
	registry      *runtime.PresenceRegistry
	mux           *runtime.Multiplexer
	queue         *runtime.OfflineQueue
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	notifications repositories.NotificationRepository
	delivery      *DeliveryService
	notifier      *NotificationService
}

func newTestStack(t *testing.T, moderator *moderation.Moderator) testStack {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	messages := repositories.NewMessageRepository(db, log, nil)
	conversations := repositories.NewConversationRepository(db, log)
	notifications := repositories.NewNotificationRepository(db, log)

	registry := runtime.NewPresenceRegistry(log)
	queue := runtime.NewOfflineQueue(log, messages)
	mux := runtime.NewMultiplexer(log, registry, queue, conversations)

	notifier := NewNotificationService(log, notifications, mux, 100)
	delivery := NewDeliveryService(log, moderator, registry, mux, queue, notifier,
		messages, conversations, 3*time.Second)

	return testStack{
		registry:      registry,
		mux:           mux,
		queue:         queue,
		messages:      messages,
		conversations: conversations,
		notifications: notifications,
		delivery:      delivery,
		notifier:      notifier,
	}
}
