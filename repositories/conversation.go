//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"careerlink/domain"
	apperrors "careerlink/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IConversationRepository interface {
	GetOrCreate(userA, userB string, now time.Time) (domain.Conversation, bool, error)
	Get(id uuid.UUID) (domain.Conversation, error)
	TouchLastMessage(id uuid.UUID, summary string, at time.Time) error
	PartnersOf(userID string) ([]string, error)
}

// ConversationRepository persists two-party threads in BadgerDB.
//
// Keys:
//
//	conv:{conversation_id}          -> conversation JSON
//	pair:{user_a}:{user_b}          -> conversation id (participants in canonical order)
//	cu:{user_id}:{conversation_id}  -> partner id (reverse index for PartnersOf)
//
// The pair key makes lazy creation race-free: two concurrent first messages
// between the same users resolve to a single thread inside one transaction.
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

// GetOrCreate returns the thread between the two users, creating it on first
// contact. The boolean reports whether a new thread was created.
func (r ConversationRepository) GetOrCreate(userA, userB string, now time.Time) (domain.Conversation, bool, error) {
	if userA == userB {
		return domain.Conversation{}, false, apperrors.NewValidation("a conversation needs two distinct participants")
	}
	a, b := domain.OrderPair(userA, userB)
	pairKey := []byte(fmt.Sprintf("pair:%s:%s", a, b))

	var conv domain.Conversation
	var created bool
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey)
		switch err {
		case nil:
			return item.Value(func(val []byte) error {
				id, parseErr := uuid.ParseBytes(val)
				if parseErr != nil {
					return parseErr
				}
				conv, parseErr = getConversation(txn, id)
				return parseErr
			})
		case badger.ErrKeyNotFound:
			conv = domain.NewConversation(a, b, now)
			created = true
			bytes, marshalErr := json.Marshal(conv)
			if marshalErr != nil {
				return marshalErr
			}
			if err := txn.Set(conversationKey(conv.ID), bytes); err != nil {
				return err
			}
			if err := txn.Set(pairKey, []byte(conv.ID.String())); err != nil {
				return err
			}
			if err := txn.Set(partnerKey(a, conv.ID), []byte(b)); err != nil {
				return err
			}
			return txn.Set(partnerKey(b, conv.ID), []byte(a))
		default:
			return err
		}
	})
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conv, created, nil
}

func (r ConversationRepository) Get(id uuid.UUID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, id)
		return err
	})
	return conv, err
}

// TouchLastMessage refreshes the summary shown in conversation lists.
func (r ConversationRepository) TouchLastMessage(id uuid.UUID, summary string, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		conv, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		conv.LastMessage = summary
		conv.LastMessageAt = at
		bytes, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(id), bytes)
	})
}

// PartnersOf lists every user sharing a thread with userID, via the reverse
// index. Used to decide who receives presence_changed broadcasts.
func (r ConversationRepository) PartnersOf(userID string) ([]string, error) {
	var partners []string
	seen := make(map[string]struct{})
	prefix := []byte(fmt.Sprintf("cu:%s:", userID))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				partner := string(val)
				if _, ok := seen[partner]; !ok {
					seen[partner] = struct{}{}
					partners = append(partners, partner)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return partners, err
}

func getConversation(txn *badger.Txn, id uuid.UUID) (domain.Conversation, error) {
	item, err := txn.Get(conversationKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Conversation{}, fmt.Errorf("conversation %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	var conv domain.Conversation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &conv)
	})
	return conv, err
}

func conversationKey(id uuid.UUID) []byte {
	return []byte("conv:" + id.String())
}

func partnerKey(userID string, convID uuid.UUID) []byte {
	var sb strings.Builder
	sb.WriteString("cu:")
	sb.WriteString(userID)
	sb.WriteString(":")
	sb.WriteString(convID.String())
	return []byte(sb.String())
}
