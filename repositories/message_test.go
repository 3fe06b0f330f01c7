package repositories

import (
	"fmt"
	"testing"
	"time"

	"careerlink/domain"
	apperrors "careerlink/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTestMessage(convID uuid.UUID, sender, recipient, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		SenderID:       sender,
		RecipientID:    recipient,
		Content:        content,
		Type:           domain.MessageText,
		DeliveryStatus: domain.DeliverySent,
		CreatedAt:      at,
	}
}

func TestMessageRepository_Store_And_Get(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)

	msg := newTestMessage(uuid.New(), "user-a", "user-b", "hello", time.Now().UTC())

	// When storing and fetching by id
	req.NoError(repo.Store(msg))
	fetched, err := repo.Get(msg.ID)

	// Then the message round-trips through the id index
	req.NoError(err)
	req.Equal(msg.ID, fetched.ID)
	req.Equal("hello", fetched.Content)
	req.Equal(domain.DeliverySent, fetched.DeliveryStatus)
}

func TestMessageRepository_Get_Unknown_Message(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)

	_, err := repo.Get(uuid.New())
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func TestMessageRepository_List_Newest_First_With_Cursor(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, lo.ToPtr(2))
	convID := uuid.New()
	base := time.Now().UTC()

	// Given five messages sent over five seconds
	for i := 0; i < 5; i++ {
		msg := newTestMessage(convID, "user-a", "user-b",
			fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(repo.Store(msg))
	}

	// When listing the first page
	page1, cursor, err := repo.List(convID, nil)
	req.NoError(err)

	// Then the two newest come back, newest first
	req.Len(page1, 2)
	req.Equal("message 4", page1[0].Content)
	req.Equal("message 3", page1[1].Content)
	req.NotNil(cursor)

	// When following the cursor
	page2, cursor2, err := repo.List(convID, cursor)
	req.NoError(err)

	// Then the next page continues without overlap
	req.Len(page2, 2)
	req.Equal("message 2", page2[0].Content)
	req.Equal("message 1", page2[1].Content)

	// And paging past the last message signals the end with a nil cursor
	page3, cursor3, err := repo.List(convID, cursor2)
	req.NoError(err)
	req.Len(page3, 1)
	req.Equal("message 0", page3[0].Content)
	req.NotNil(cursor3)

	page4, cursor4, err := repo.List(convID, cursor3)
	req.NoError(err)
	req.Empty(page4)
	req.Nil(cursor4)
}

func TestMessageRepository_List_Empty_Conversation(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)

	// No messages means no cursor: clients see the end of history directly
	messages, cursor, err := repo.List(uuid.New(), nil)
	req.NoError(err)
	req.Empty(messages)
	req.Nil(cursor)
}

func TestMessageRepository_UpdateStatus_Moves_Forward_Only(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)

	msg := newTestMessage(uuid.New(), "user-a", "user-b", "hi", time.Now().UTC())
	req.NoError(repo.Store(msg))

	// When advancing sent -> delivered
	updated, err := repo.UpdateStatus(msg.ID, domain.DeliveryDelivered)
	req.NoError(err)
	req.Equal(domain.DeliveryDelivered, updated.DeliveryStatus)
	req.NotNil(updated.DeliveredAt)

	// And then to read
	updated, err = repo.UpdateStatus(msg.ID, domain.DeliveryRead)
	req.NoError(err)
	req.Equal(domain.DeliveryRead, updated.DeliveryStatus)

	// When attempting to pull it back to delivered
	updated, err = repo.UpdateStatus(msg.ID, domain.DeliveryDelivered)
	req.NoError(err)

	// Then the regression is a no-op, read sticks
	req.Equal(domain.DeliveryRead, updated.DeliveryStatus)
}

func TestMessageRepository_UpdateStatus_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)

	msg := newTestMessage(uuid.New(), "user-a", "user-b", "hi", time.Now().UTC())
	req.NoError(repo.Store(msg))

	_, err := repo.UpdateStatus(msg.ID, domain.DeliveryDelivered)
	req.NoError(err)
	updated, err := repo.UpdateStatus(msg.ID, domain.DeliveryDelivered)
	req.NoError(err)
	req.Equal(domain.DeliveryDelivered, updated.DeliveryStatus)
}

func TestMessageRepository_QueuedFor_Send_Order(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)
	convID := uuid.New()
	base := time.Now().UTC()

	// Given three messages parked for an offline recipient
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		msg := newTestMessage(convID, "user-a", "user-b",
			fmt.Sprintf("queued %d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(repo.Store(msg))
		_, err := repo.UpdateStatus(msg.ID, domain.DeliveryQueued)
		req.NoError(err)
		ids = append(ids, msg.ID)
	}

	// When scanning the queued index
	queued, err := repo.QueuedFor("user-b")
	req.NoError(err)

	// Then messages come back oldest first, the order they were sent
	req.Len(queued, 3)
	for i, m := range queued {
		req.Equal(ids[i], m.ID)
	}
}

func TestMessageRepository_QueuedFor_Skips_Delivered(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)
	convID := uuid.New()
	now := time.Now().UTC()

	// Given two queued messages, one of which was delivered since
	first := newTestMessage(convID, "user-a", "user-b", "one", now)
	second := newTestMessage(convID, "user-a", "user-b", "two", now.Add(time.Second))
	req.NoError(repo.Store(first))
	req.NoError(repo.Store(second))
	_, err := repo.UpdateStatus(first.ID, domain.DeliveryQueued)
	req.NoError(err)
	_, err = repo.UpdateStatus(second.ID, domain.DeliveryQueued)
	req.NoError(err)
	_, err = repo.UpdateStatus(first.ID, domain.DeliveryDelivered)
	req.NoError(err)

	// When scanning again
	queued, err := repo.QueuedFor("user-b")
	req.NoError(err)

	// Then only the still-queued message remains
	req.Len(queued, 1)
	req.Equal(second.ID, queued[0].ID)
}

func TestMessageRepository_MarkConversationRead(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)
	convID := uuid.New()
	now := time.Now().UTC()

	// Given a delivered message to the reader, one from the reader,
	// and one still queued for the reader
	inbound := newTestMessage(convID, "user-a", "user-b", "inbound", now)
	outbound := newTestMessage(convID, "user-b", "user-a", "outbound", now.Add(time.Second))
	parked := newTestMessage(convID, "user-a", "user-b", "parked", now.Add(2*time.Second))
	req.NoError(repo.Store(inbound))
	req.NoError(repo.Store(outbound))
	req.NoError(repo.Store(parked))
	_, err := repo.UpdateStatus(inbound.ID, domain.DeliveryDelivered)
	req.NoError(err)
	_, err = repo.UpdateStatus(parked.ID, domain.DeliveryQueued)
	req.NoError(err)

	// When user-b acknowledges the conversation
	count, err := repo.MarkConversationRead(convID, "user-b")
	req.NoError(err)

	// Then only the observed inbound message moves to read
	req.Equal(1, count)
	fetched, err := repo.Get(inbound.ID)
	req.NoError(err)
	req.Equal(domain.DeliveryRead, fetched.DeliveryStatus)

	// And the queued one survives for the next flush
	fetched, err = repo.Get(parked.ID)
	req.NoError(err)
	req.Equal(domain.DeliveryQueued, fetched.DeliveryStatus)

	// And the outbound one is untouched
	fetched, err = repo.Get(outbound.ID)
	req.NoError(err)
	req.Equal(domain.DeliverySent, fetched.DeliveryStatus)
}

func TestMessageRepository_CountUnread(t *testing.T) {
	req := require.New(t)
	db, log := testDB(t)
	repo := NewMessageRepository(db, log, nil)
	convID := uuid.New()
	now := time.Now().UTC()

	first := newTestMessage(convID, "user-a", "user-b", "one", now)
	second := newTestMessage(convID, "user-a", "user-b", "two", now.Add(time.Second))
	req.NoError(repo.Store(first))
	req.NoError(repo.Store(second))

	count, err := repo.CountUnread(convID, "user-b")
	req.NoError(err)
	req.Equal(2, count)

	// When one message is read
	_, err = repo.UpdateStatus(first.ID, domain.DeliveryRead)
	req.NoError(err)

	count, err = repo.CountUnread(convID, "user-b")
	req.NoError(err)
	req.Equal(1, count)
}
