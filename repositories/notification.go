//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
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

type INotificationRepository interface {
	Store(n domain.Notification) error
	Get(id uuid.UUID) (domain.Notification, error)
	ListFor(recipientID string, limit int) ([]domain.Notification, error)
	CountUnread(recipientID string) (int, error)
	MarkRead(recipientID string, id uuid.UUID) (domain.Notification, error)
	MarkAllRead(recipientID string) (int, error)
	Delete(recipientID string, id uuid.UUID) error
}

// NotificationRepository persists notifications in BadgerDB, keyed per
// recipient with the same padded-timestamp scheme as messages:
//
//	notif:{recipient}:{timestamp_padded}:{uuid} -> notification JSON
//	nidx:{uuid}                                 -> primary key
//
// Ownership checks happen inside the mutation transactions: acting on a
// notification addressed to someone else fails with AuthorizationError.
type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

func (r NotificationRepository) Store(n domain.Notification) error {
	bytes, err := json.Marshal(n)
	if err != nil {
		return err
	}
	primary := notificationKey(n)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, bytes); err != nil {
			return err
		}
		return txn.Set(notificationIndexKey(n.ID), primary)
	})
}

func (r NotificationRepository) Get(id uuid.UUID) (domain.Notification, error) {
	var n domain.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		n, _, err = getNotification(txn, id)
		return err
	})
	return n, err
}

// ListFor returns the recipient's notifications, newest first.
// limit <= 0 means no limit.
func (r NotificationRepository) ListFor(recipientID string, limit int) ([]domain.Notification, error) {
	var notifications []domain.Notification
	prefixStr := fmt.Sprintf("notif:%s:", recipientID)
	prefix := []byte(prefixStr)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()
		seekKey := append(prefix, []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(notifications) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var n domain.Notification
				if err := json.Unmarshal(val, &n); err != nil {
					return err
				}
				notifications = append(notifications, n)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return notifications, err
}

func (r NotificationRepository) CountUnread(recipientID string) (int, error) {
	var count int
	prefix := []byte(fmt.Sprintf("notif:%s:", recipientID))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var n domain.Notification
				if err := json.Unmarshal(val, &n); err != nil {
					return err
				}
				if !n.Read {
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

func (r NotificationRepository) MarkRead(recipientID string, id uuid.UUID) (domain.Notification, error) {
	var updated domain.Notification
	err := r.db.Update(func(txn *badger.Txn) error {
		n, primary, err := getNotification(txn, id)
		if err != nil {
			return err
		}
		if n.RecipientID != recipientID {
			return apperrors.NewAuthorization("notification %s does not belong to %s", id, recipientID)
		}
		if n.Read {
			updated = n
			return nil
		}
		now := time.Now().UTC()
		n.Read = true
		n.ReadAt = &now
		bytes, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err := txn.Set(primary, bytes); err != nil {
			return err
		}
		updated = n
		return nil
	})
	return updated, err
}

func (r NotificationRepository) MarkAllRead(recipientID string) (int, error) {
	var count int
	prefix := []byte(fmt.Sprintf("notif:%s:", recipientID))
	err := r.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		now := time.Now().UTC()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var n domain.Notification
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			})
			if err != nil {
				return err
			}
			if n.Read {
				continue
			}
			n.Read = true
			n.ReadAt = &now
			bytes, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := txn.Set(notificationKey(n), bytes); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (r NotificationRepository) Delete(recipientID string, id uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		n, primary, err := getNotification(txn, id)
		if err != nil {
			return err
		}
		if n.RecipientID != recipientID {
			return apperrors.NewAuthorization("notification %s does not belong to %s", id, recipientID)
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(notificationIndexKey(id))
	})
}

func getNotification(txn *badger.Txn, id uuid.UUID) (domain.Notification, []byte, error) {
	idxItem, err := txn.Get(notificationIndexKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Notification{}, nil, fmt.Errorf("notification %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return domain.Notification{}, nil, err
	}
	var primary []byte
	if err := idxItem.Value(func(val []byte) error {
		primary = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return domain.Notification{}, nil, err
	}
	item, err := txn.Get(primary)
	if err != nil {
		return domain.Notification{}, nil, err
	}
	var n domain.Notification
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &n)
	})
	return n, primary, err
}

func notificationKey(n domain.Notification) []byte {
	return []byte(fmt.Sprintf("notif:%s:%019d:%s",
		n.RecipientID,
		n.CreatedAt.UnixNano(),
		n.ID,
	))
}

func notificationIndexKey(id uuid.UUID) []byte {
	return []byte("nidx:" + id.String())
}
