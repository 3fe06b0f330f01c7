package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"careerlink/domain"
	"careerlink/domain/event"
	apperrors "careerlink/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestDeliveryService_Send_Live_Recipient(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	// Given the recipient holds a live connection
	sink := &recordingSink{}
	stack.registry.SetOnline("user-b", sink)

	// When user-a sends a first message by recipient id
	msg, err := stack.delivery.Send(ctx, domain.SendMessageCommand{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Content:     "hello there",
		Type:        domain.MessageText,
	})
	req.NoError(err)

	// Then the conversation was created lazily and the message delivered live,
	// keeping its optimistic sent status until the recipient reads it
	req.Equal(domain.DeliverySent, msg.DeliveryStatus)
	req.Equal("user-b", msg.RecipientID)

	names := sink.EventNames()
	req.Contains(names, "new_message")
	req.Contains(names, "conversation_updated")

	// And the thread summary was refreshed
	conv, err := stack.conversations.Get(msg.ConversationID)
	req.NoError(err)
	req.Equal("hello there", conv.LastMessage)
}

func TestDeliveryService_Send_Offline_Recipient_Queued(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	// When sending to someone with no live connection
	msg, err := stack.delivery.Send(ctx, domain.SendMessageCommand{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Content:     "are you there?",
		Type:        domain.MessageText,
	})
	req.NoError(err)

	// Then the message is parked with queued status
	req.Equal(domain.DeliveryQueued, msg.DeliveryStatus)
	req.Equal(1, stack.queue.Size("user-b"))

	// And a missed-message notification was recorded for the next login
	notifications, unread, err := stack.notifier.List(ctx, "user-b")
	req.NoError(err)
	req.Equal(1, unread)
	req.Len(notifications, 1)
	req.Equal(domain.NotifNewMessage, notifications[0].Type)
	req.Equal(domain.PriorityNormal, notifications[0].Priority)
	req.Contains(notifications[0].ActionRef, msg.ConversationID.String())
}

func TestDeliveryService_Send_Queued_Then_Flushed_On_Reconnect(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	// Given a message sent while the recipient was offline
	msg, err := stack.delivery.Send(ctx, domain.SendMessageCommand{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Content:     "missed you",
		Type:        domain.MessageText,
	})
	req.NoError(err)
	req.Equal(domain.DeliveryQueued, msg.DeliveryStatus)

	// When the recipient connects
	sink := &recordingSink{}
	req.NoError(stack.mux.OnConnect(ctx, "user-b", sink))

	// Then the backlog is flushed exactly once and marked delivered
	req.Contains(sink.EventNames(), "new_message")
	fetched, err := stack.messages.Get(msg.ID)
	req.NoError(err)
	req.Equal(domain.DeliveryDelivered, fetched.DeliveryStatus)
}

func TestDeliveryService_Send_Rejects_Empty_Content(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)

	_, err := stack.delivery.Send(context.Background(), domain.SendMessageCommand{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Content:     "",
		Type:        domain.MessageText,
	})
	req.True(apperrors.IsValidation(err))
}

func TestDeliveryService_Send_Rejects_Oversized_Content(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)

	_, err := stack.delivery.Send(context.Background(), domain.SendMessageCommand{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Content:     strings.Repeat("x", 4001),
		Type:        domain.MessageText,
	})
	req.True(apperrors.IsValidation(err))
}

func TestDeliveryService_Send_Rejects_Non_Participant(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	// Given a thread between user-a and user-b
	conv, _, err := stack.conversations.GetOrCreate("user-a", "user-b", time.Now().UTC())
	req.NoError(err)

	// When an outsider targets it
	_, err = stack.delivery.Send(ctx, domain.SendMessageCommand{
		SenderID:       "intruder",
		ConversationID: conv.ID,
		Content:        "let me in",
		Type:           domain.MessageText,
	})
	req.True(apperrors.IsValidation(err))

	// Then nothing was written to the thread
	messages, _, err := stack.messages.List(conv.ID, nil)
	req.NoError(err)
	req.Empty(messages)
}

func TestDeliveryService_Send_Masks_Blacklisted_Terms(t *testing.T) {
	req := require.New(t)
	moderator, err := newModerator([]string{"scam"})
	req.NoError(err)
	stack := newTestStack(t, moderator)

	msg, err := stack.delivery.Send(context.Background(), domain.SendMessageCommand{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Content:     "this offer is a scam",
		Type:        domain.MessageText,
	})
	req.NoError(err)
	req.Equal("this offer is a ****", msg.Content)
}

func TestDeliveryService_Typing_Routed_To_Live_Peer(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	conv, _, err := stack.conversations.GetOrCreate("user-a", "user-b", time.Now().UTC())
	req.NoError(err)
	sink := &recordingSink{}
	stack.registry.SetOnline("user-b", sink)

	// When user-a starts typing
	req.NoError(stack.delivery.Typing(ctx, domain.TypingCommand{
		UserID:         "user-a",
		ConversationID: conv.ID,
	}))

	// Then the peer receives the indicator with its self-clear TTL
	events := sink.Events()
	req.Len(events, 1)
	typing, ok := events[0].(event.UserTyping)
	req.True(ok)
	req.Equal("user-a", typing.UserID)
	req.Equal(int64(3000), typing.ExpiresInMs)

	// When user-a stops typing
	req.NoError(stack.delivery.Typing(ctx, domain.TypingCommand{
		UserID:         "user-a",
		ConversationID: conv.ID,
		Stopped:        true,
	}))
	req.Equal([]string{"user_typing", "user_stopped_typing"}, sink.EventNames())
}

func TestDeliveryService_Typing_Dropped_When_Peer_Offline(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)

	conv, _, err := stack.conversations.GetOrCreate("user-a", "user-b", time.Now().UTC())
	req.NoError(err)

	// When typing while the peer is offline
	err = stack.delivery.Typing(context.Background(), domain.TypingCommand{
		UserID:         "user-a",
		ConversationID: conv.ID,
	})

	// Then the indicator is silently dropped: no error, nothing queued
	req.NoError(err)
	req.Equal(0, stack.queue.Size("user-b"))
}

func TestDeliveryService_MarkConversationRead(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	// Given user-b received a message live
	readerSink := &recordingSink{}
	stack.registry.SetOnline("user-b", readerSink)
	msg, err := stack.delivery.Send(ctx, domain.SendMessageCommand{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Content:     "read me",
		Type:        domain.MessageText,
	})
	req.NoError(err)

	// When user-b acknowledges the conversation
	count, err := stack.delivery.MarkConversationRead(ctx, domain.ConversationReadCommand{
		UserID:         "user-b",
		ConversationID: msg.ConversationID,
	})
	req.NoError(err)
	req.Equal(1, count)

	// Then the message is read and the reader's session was told
	fetched, err := stack.messages.Get(msg.ID)
	req.NoError(err)
	req.Equal(domain.DeliveryRead, fetched.DeliveryStatus)
	req.Contains(readerSink.EventNames(), "conversation_read")

	// And acknowledging again is a quiet no-op
	count, err = stack.delivery.MarkConversationRead(ctx, domain.ConversationReadCommand{
		UserID:         "user-b",
		ConversationID: msg.ConversationID,
	})
	req.NoError(err)
	req.Equal(0, count)
}

func TestDeliveryService_ListMessages_Requires_Membership(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	conv, _, err := stack.conversations.GetOrCreate("user-a", "user-b", time.Now().UTC())
	req.NoError(err)

	_, _, err = stack.delivery.ListMessages(ctx, domain.ListMessagesCommand{
		UserID:         "intruder",
		ConversationID: conv.ID,
	})
	req.True(apperrors.IsValidation(err))

	_, _, err = stack.delivery.ListMessages(ctx, domain.ListMessagesCommand{
		UserID:         "user-a",
		ConversationID: uuid.New(),
	})
	req.True(apperrors.IsValidation(err))
}

func TestDeliveryService_ListMessages_Pages_History(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t, nil)
	ctx := context.Background()

	var convID uuid.UUID
	base := time.Now().UTC()
	contents := []string{"one", "two", "three"}
	for i, content := range contents {
		msg, err := stack.delivery.Send(ctx, domain.SendMessageCommand{
			SenderID:    "user-a",
			RecipientID: "user-b",
			Content:     content,
			Type:        domain.MessageText,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
		convID = msg.ConversationID
	}

	messages, _, err := stack.delivery.ListMessages(ctx, domain.ListMessagesCommand{
		UserID:         "user-b",
		ConversationID: convID,
	})
	req.NoError(err)

	// Newest first
	req.Equal([]string{"three", "two", "one"},
		lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))
}
