//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"careerlink/domain"
	"careerlink/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives outbound events. Implementations decide how the event
// reaches the client (websocket write pump, test recorder, ...).
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// ConnectionSink is the transport-backed sink bound to one live connection.
// Close releases the underlying connection; the registry calls it when a new
// session replaces an old one so a user never receives duplicates.
type ConnectionSink interface {
	EventSink
	Close()
}

// IPresenceRegistry is the single authoritative map of live users. Absence
// of a session is the normal offline case, never an error.
type IPresenceRegistry interface {
	SetOnline(userID string, conn ConnectionSink) (replaced bool)
	SetOffline(userID string)
	Touch(userID string) (domain.Session, bool)
	IsOnline(userID string) bool
	Get(userID string) (domain.Session, bool)
	Sink(userID string) (ConnectionSink, bool)
	Sweep(now time.Time, awayAfter, offlineAfter time.Duration) []domain.Session
	CountByStatus() map[domain.PresenceStatus]int
}

// IMultiplexer routes events to live connections. It is a dumb router:
// participant checks belong to the delivery pipeline, not here.
type IMultiplexer interface {
	OnConnect(ctx context.Context, userID string, conn ConnectionSink) error
	OnDisconnect(ctx context.Context, userID string)
	PushToUser(ctx context.Context, userID string, e event.DomainEvent) bool
	PushToConversation(ctx context.Context, conv domain.Conversation, e event.DomainEvent, excludeUserID string)
	BroadcastPresence(ctx context.Context, session domain.Session)
}

// QueueEntry wraps a payload waiting for its target user to reconnect.
// MessageID is set when the payload carries a persisted message whose
// delivery status must advance to delivered after a successful push.
type QueueEntry struct {
	UserID     string
	Payload    event.DomainEvent
	MessageID  *uuid.UUID
	EnqueuedAt time.Time
}

// DeliverFunc pushes one flushed payload to the reconnecting client.
type DeliverFunc func(ctx context.Context, e event.DomainEvent) error

// IOfflineQueue holds per-user FIFO payloads for users who were not live at
// send time. The in-memory structure is a cache: flush always rehydrates
// from the store's queued rows first, so a process restart loses nothing.
type IOfflineQueue interface {
	Enqueue(entry QueueEntry)
	Flush(ctx context.Context, userID string, deliver DeliverFunc) (int, error)
	Size(userID string) int
	Clear(userID string)
}
