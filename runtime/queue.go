package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"careerlink/contract"
	"careerlink/domain"
	"careerlink/domain/event"
	"careerlink/repositories"

	"github.com/google/uuid"
)

// OfflineQueue is the per-user, order-preserving holding area for payloads
// that could not be delivered live.
//
// The in-memory map is only a cache. The authoritative record of what still
// awaits delivery is the set of messages persisted with status queued, so a
// flush always rehydrates from the store first: after a process restart the
// map is empty but nothing is lost. In-memory entries without a backing
// message (live notification pushes that raced a disconnect) are appended
// after the rehydrated history.
type OfflineQueue struct {
	mu       sync.Mutex
	log      *slog.Logger
	messages repositories.IMessageRepository
	entries  map[string][]contract.QueueEntry
}

func NewOfflineQueue(log *slog.Logger, messages repositories.IMessageRepository) *OfflineQueue {
	return &OfflineQueue{
		log:      log,
		messages: messages,
		entries:  make(map[string][]contract.QueueEntry),
	}
}

func (q *OfflineQueue) Enqueue(entry contract.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[entry.UserID] = append(q.entries[entry.UserID], entry)
}

// Flush drains everything owed to the user, in send order, through deliver.
// Invoked exactly once per reconnect by the multiplexer, before any new
// inbound traffic for that user, so queued history always precedes live
// events on the client.
//
// Best effort per item: if a push fails mid-flush, the remaining messages
// keep their queued status in the store and are retried on the next
// successful connect. Returns how many payloads were delivered.
func (q *OfflineQueue) Flush(ctx context.Context, userID string, deliver contract.DeliverFunc) (int, error) {
	queued, err := q.messages.QueuedFor(userID)
	if err != nil {
		return 0, fmt.Errorf("rehydrating queue for %s: %w", userID, err)
	}

	persisted := make(map[string]struct{}, len(queued))
	for _, m := range queued {
		persisted[m.ID.String()] = struct{}{}
	}

	// Memory-only payloads: anything not already covered by the store scan.
	q.mu.Lock()
	var extras []contract.QueueEntry
	for _, entry := range q.entries[userID] {
		if entry.MessageID != nil {
			if _, ok := persisted[entry.MessageID.String()]; ok {
				continue
			}
		}
		extras = append(extras, entry)
	}
	delete(q.entries, userID)
	q.mu.Unlock()

	delivered := 0
	for _, m := range queued {
		if err := deliver(ctx, event.NewMessage{Message: m}); err != nil {
			q.requeue(userID, extras)
			return delivered, err
		}
		if _, err := q.messages.UpdateStatus(m.ID, domain.DeliveryDelivered); err != nil {
			q.log.Error("Failed to mark flushed message delivered",
				"user_id", userID, "message_id", m.ID, "error", err)
		}
		delivered++
	}

	for i, entry := range extras {
		if entry.MessageID != nil && q.alreadyDelivered(*entry.MessageID) {
			// An enqueue that raced a concurrent flush: the message left the
			// queued index and already reached the client.
			continue
		}
		if err := deliver(ctx, entry.Payload); err != nil {
			q.requeue(userID, extras[i:])
			return delivered, err
		}
		if entry.MessageID != nil {
			if _, err := q.messages.UpdateStatus(*entry.MessageID, domain.DeliveryDelivered); err != nil {
				q.log.Error("Failed to mark flushed message delivered",
					"user_id", userID, "message_id", entry.MessageID, "error", err)
			}
		}
		delivered++
	}
	return delivered, nil
}

// alreadyDelivered reports whether the persisted message advanced past
// queued, meaning an earlier flush pushed it before this entry was seen.
func (q *OfflineQueue) alreadyDelivered(id uuid.UUID) bool {
	m, err := q.messages.Get(id)
	if err != nil {
		return false
	}
	return m.DeliveryStatus != domain.DeliveryQueued
}

// requeue puts undelivered memory-only entries back, preserving their order
// ahead of anything enqueued while the flush was running.
func (q *OfflineQueue) requeue(userID string, remaining []contract.QueueEntry) {
	if len(remaining) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[userID] = append(append([]contract.QueueEntry(nil), remaining...), q.entries[userID]...)
}

// Size reports in-memory entries only; administrative and testing hook.
func (q *OfflineQueue) Size(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries[userID])
}

// Clear drops the user's in-memory entries. Reserved for moderation and
// cleanup tooling; must never run on a live reconnect path.
func (q *OfflineQueue) Clear(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, userID)
}
