//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"careerlink/domain"
	apperrors "careerlink/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Store(m domain.Message) error
	Get(id uuid.UUID) (domain.Message, error)
	List(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
	UpdateStatus(id uuid.UUID, to domain.DeliveryStatus) (domain.Message, error)
	QueuedFor(userID string) ([]domain.Message, error)
	MarkConversationRead(conversationID uuid.UUID, readerID string) (int, error)
	CountUnread(conversationID uuid.UUID, userID string) (int, error)
}

// MessageRepository persists messages in BadgerDB.
//
// The primary key is "msg:{conversation_id}:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding keeps chronological and lexicographical order aligned.
//  2. The UUID disambiguates two messages landing on the same nanosecond.
//
// Two secondary indexes point back at the primary key:
//
//	midx:{uuid}                               -> primary key (status updates by id)
//	queued:{recipient}:{timestamp_padded}:{uuid} -> primary key (flush rehydration)
//
// The queued index is the recoverable source of truth behind the in-memory
// offline queue: scanning it for a user yields, in send order, everything
// that still awaits delivery even after a process restart.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func (r MessageRepository) Store(m domain.Message) error {
	bytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	primary := messageKey(m)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, bytes); err != nil {
			return err
		}
		if err := txn.Set(messageIndexKey(m.ID), primary); err != nil {
			return err
		}
		if m.DeliveryStatus == domain.DeliveryQueued {
			return txn.Set(queuedKey(m), primary)
		}
		return nil
	})
}

func (r MessageRepository) Get(id uuid.UUID) (domain.Message, error) {
	var m domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getByIndex(txn, id)
		return err
	})
	return m, err
}

// List pages through a conversation newest-first. The cursor is the key
// suffix of the last returned message, opaque to callers.
func (r MessageRepository) List(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	prefixStr := fmt.Sprintf("msg:%s:", conversationID)
	prefix := []byte(prefixStr)

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limitMessages != nil && len(messages) == *r.limitMessages {
				r.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *r.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(val []byte) error {
				var m domain.Message
				if err := json.Unmarshal(val, &m); err != nil {
					return err
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		// End of history: a nil cursor tells clients there is nothing to page.
		return nil, nil, nil
	}
	return messages, &lastKey, nil
}

// UpdateStatus advances the delivery status of one message. The transition
// is applied atomically and only forward: a message already at read is never
// pulled back to delivered, and repeating a transition is a no-op. The
// queued index entry is created or removed as the status crosses queued.
func (r MessageRepository) UpdateStatus(id uuid.UUID, to domain.DeliveryStatus) (domain.Message, error) {
	var updated domain.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		m, err := getByIndex(txn, id)
		if err != nil {
			return err
		}
		if !m.DeliveryStatus.Advances(to) {
			updated = m
			return nil
		}
		previous := m.DeliveryStatus
		m.DeliveryStatus = to
		if to == domain.DeliveryDelivered {
			now := time.Now().UTC()
			m.DeliveredAt = &now
		}
		bytes, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(m), bytes); err != nil {
			return err
		}
		if previous == domain.DeliveryQueued {
			if err := txn.Delete(queuedKey(m)); err != nil {
				return err
			}
		}
		if to == domain.DeliveryQueued {
			if err := txn.Set(queuedKey(m), messageKey(m)); err != nil {
				return err
			}
		}
		updated = m
		return nil
	})
	return updated, err
}

// QueuedFor scans the queued index of one user in send order. Entries whose
// message advanced past queued since the index write are skipped.
func (r MessageRepository) QueuedFor(userID string) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := []byte(fmt.Sprintf("queued:%s:", userID))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var primary []byte
			err := it.Item().Value(func(val []byte) error {
				primary = append([]byte(nil), val...)
				return nil
			})
			if err != nil {
				return err
			}
			item, err := txn.Get(primary)
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				var m domain.Message
				if err := json.Unmarshal(val, &m); err != nil {
					return err
				}
				if m.DeliveryStatus == domain.DeliveryQueued {
					messages = append(messages, m)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

// MarkConversationRead moves every message addressed to readerID in the
// conversation to read, except the ones still queued: those have not been
// observed yet and must survive for the next flush. Returns how many
// messages changed.
func (r MessageRepository) MarkConversationRead(conversationID uuid.UUID, readerID string) (int, error) {
	var count int
	prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
	err := r.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var m domain.Message
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			if m.RecipientID != readerID ||
				m.DeliveryStatus == domain.DeliveryQueued ||
				!m.DeliveryStatus.Advances(domain.DeliveryRead) {
				continue
			}
			m.DeliveryStatus = domain.DeliveryRead
			bytes, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := txn.Set(messageKey(m), bytes); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// CountUnread counts messages addressed to userID not yet at read.
func (r MessageRepository) CountUnread(conversationID uuid.UUID, userID string) (int, error) {
	var count int
	prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = true
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var m domain.Message
				if err := json.Unmarshal(val, &m); err != nil {
					return err
				}
				if m.RecipientID == userID && m.DeliveryStatus != domain.DeliveryRead {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return count, err
}

func getByIndex(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	idxItem, err := txn.Get(messageIndexKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, err
	}
	var primary []byte
	if err := idxItem.Value(func(val []byte) error {
		primary = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return domain.Message{}, err
	}
	item, err := txn.Get(primary)
	if err != nil {
		return domain.Message{}, err
	}
	var m domain.Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	return m, err
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		m.ConversationID,
		m.CreatedAt.UnixNano(),
		m.ID,
	))
}

func messageIndexKey(id uuid.UUID) []byte {
	return []byte("midx:" + id.String())
}

func queuedKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("queued:%s:%019d:%s",
		m.RecipientID,
		m.CreatedAt.UnixNano(),
		m.ID,
	))
}
