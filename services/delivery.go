//go:generate go run go.uber.org/mock/mockgen -source=delivery.go -destination=../mocks/mock_delivery_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"careerlink/contract"
	"careerlink/domain"
	"careerlink/domain/event"
	apperrors "careerlink/errors"
	"careerlink/internal/metrics"
	"careerlink/moderation"
	"careerlink/repositories"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type IDeliveryService interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	Typing(ctx context.Context, cmd domain.TypingCommand) error
	MarkConversationRead(ctx context.Context, cmd domain.ConversationReadCommand) (int, error)
	ListMessages(ctx context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, *string, error)
}

// INotifier is the slice of the notification fan-out the pipeline needs to
// record a missed-message notification.
type INotifier interface {
	Notify(ctx context.Context, cmd domain.NotifyCommand) (domain.Notification, error)
}

const lastMessageSummaryLen = 80

// DeliveryService is the message delivery pipeline: validate, persist with
// status sent, then either push live or park in the offline queue with
// status queued. Persist-before-push is the rule; a push failure is never an
// error, it just degrades to the queuing path.
type DeliveryService struct {
	log           *slog.Logger
	validate      *validator.Validate
	moderator     *moderation.Moderator
	registry      contract.IPresenceRegistry
	mux           contract.IMultiplexer
	queue         contract.IOfflineQueue
	notifier      INotifier
	messages      repositories.IMessageRepository
	conversations repositories.IConversationRepository
	typingTTL     time.Duration
}

func NewDeliveryService(
	log *slog.Logger,
	moderator *moderation.Moderator,
	registry contract.IPresenceRegistry,
	mux contract.IMultiplexer,
	queue contract.IOfflineQueue,
	notifier INotifier,
	messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository,
	typingTTL time.Duration,
) *DeliveryService {
	return &DeliveryService{
		log:           log,
		validate:      validator.New(),
		moderator:     moderator,
		registry:      registry,
		mux:           mux,
		queue:         queue,
		notifier:      notifier,
		messages:      messages,
		conversations: conversations,
		typingTTL:     typingTTL,
	}
}

// Send runs the pipeline end to end. A validation failure writes nothing;
// a persistence failure aborts the whole send; a dead recipient connection
// is not a failure at all.
func (s *DeliveryService) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Message{}, apperrors.NewValidation("send_message payload: %v", err)
	}

	conv, err := s.resolveConversation(cmd)
	if err != nil {
		return domain.Message{}, err
	}
	recipient, ok := conv.OtherParticipant(cmd.SenderID)
	if !ok {
		return domain.Message{}, apperrors.NewValidation(
			"user %s is not a participant of conversation %s", cmd.SenderID, conv.ID)
	}

	content := s.moderate(cmd.SenderID, cmd.Content)

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       cmd.SenderID,
		RecipientID:    recipient,
		Content:        content,
		Type:           cmd.Type,
		DeliveryStatus: domain.DeliverySent,
		CreatedAt:      createdAt,
	}
	if err := s.messages.Store(msg); err != nil {
		return domain.Message{}, apperrors.NewPersistence("message store", err)
	}
	if err := s.conversations.TouchLastMessage(conv.ID, summarize(content), createdAt); err != nil {
		s.log.Error("Failed to refresh conversation summary",
			"conversation_id", conv.ID, "error", err)
	}

	if s.registry.IsOnline(recipient) && s.mux.PushToUser(ctx, recipient, event.NewMessage{Message: msg}) {
		// Delivered live; the sender keeps seeing "sent" optimistically.
		metrics.MessagesDelivered.WithLabelValues("live").Inc()
		s.pushConversationUpdated(ctx, conv.ID, recipient, summarize(content), createdAt)
		return msg, nil
	}

	// Recipient absent or socket dead: park it.
	queuedMsg, err := s.messages.UpdateStatus(msg.ID, domain.DeliveryQueued)
	if err != nil {
		return domain.Message{}, apperrors.NewPersistence("message queue transition", err)
	}
	s.queue.Enqueue(contract.QueueEntry{
		UserID:     recipient,
		Payload:    event.NewMessage{Message: queuedMsg},
		MessageID:  &queuedMsg.ID,
		EnqueuedAt: time.Now().UTC(),
	})
	metrics.MessagesQueued.Inc()
	s.recordMissedMessage(ctx, recipient, conv.ID, content)
	return queuedMsg, nil
}

// Typing routes an indicator to the peer if live, otherwise drops it
// silently. Nothing is persisted or queued; the client self-clears the
// indicator after the advertised TTL even without a stop event.
func (s *DeliveryService) Typing(ctx context.Context, cmd domain.TypingCommand) error {
	conv, err := s.conversations.Get(cmd.ConversationID)
	if err != nil {
		return apperrors.NewValidation("conversation %s not found", cmd.ConversationID)
	}
	peer, ok := conv.OtherParticipant(cmd.UserID)
	if !ok {
		return apperrors.NewValidation(
			"user %s is not a participant of conversation %s", cmd.UserID, conv.ID)
	}
	if !s.registry.IsOnline(peer) {
		return nil
	}

	if cmd.Stopped {
		s.mux.PushToUser(ctx, peer, event.UserStoppedTyping{
			ConversationID: conv.ID,
			UserID:         cmd.UserID,
		})
		return nil
	}
	s.mux.PushToUser(ctx, peer, event.UserTyping{
		ConversationID: conv.ID,
		UserID:         cmd.UserID,
		ExpiresInMs:    s.typingTTL.Milliseconds(),
	})
	return nil
}

// MarkConversationRead acknowledges everything addressed to the reader in
// the conversation, then echoes the new state to the reader's own live
// session so unread counters converge.
func (s *DeliveryService) MarkConversationRead(ctx context.Context, cmd domain.ConversationReadCommand) (int, error) {
	conv, err := s.conversations.Get(cmd.ConversationID)
	if err != nil {
		return 0, apperrors.NewValidation("conversation %s not found", cmd.ConversationID)
	}
	if !conv.HasParticipant(cmd.UserID) {
		return 0, apperrors.NewValidation(
			"user %s is not a participant of conversation %s", cmd.UserID, conv.ID)
	}

	count, err := s.messages.MarkConversationRead(conv.ID, cmd.UserID)
	if err != nil {
		return 0, apperrors.NewPersistence("mark conversation read", err)
	}
	if count > 0 {
		s.mux.PushToUser(ctx, cmd.UserID, event.ConversationRead{
			ConversationID: conv.ID,
			ReadCount:      count,
		})
	}
	return count, nil
}

// ListMessages pages through history, newest first.
func (s *DeliveryService) ListMessages(ctx context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, *string, error) {
	conv, err := s.conversations.Get(cmd.ConversationID)
	if err != nil {
		return nil, nil, apperrors.NewValidation("conversation %s not found", cmd.ConversationID)
	}
	if !conv.HasParticipant(cmd.UserID) {
		return nil, nil, apperrors.NewValidation(
			"user %s is not a participant of conversation %s", cmd.UserID, conv.ID)
	}
	return s.messages.List(conv.ID, cmd.Cursor)
}

func (s *DeliveryService) resolveConversation(cmd domain.SendMessageCommand) (domain.Conversation, error) {
	if cmd.ConversationID != uuid.Nil {
		conv, err := s.conversations.Get(cmd.ConversationID)
		if err != nil {
			return domain.Conversation{}, apperrors.NewValidation(
				"conversation %s not found", cmd.ConversationID)
		}
		if !conv.HasParticipant(cmd.SenderID) {
			return domain.Conversation{}, apperrors.NewValidation(
				"user %s is not a participant of conversation %s", cmd.SenderID, conv.ID)
		}
		return conv, nil
	}

	if cmd.RecipientID == "" {
		return domain.Conversation{}, apperrors.NewValidation(
			"send_message needs a conversationId or a recipientId")
	}
	conv, created, err := s.conversations.GetOrCreate(cmd.SenderID, cmd.RecipientID, time.Now().UTC())
	if err != nil {
		if apperrors.IsValidation(err) {
			return domain.Conversation{}, err
		}
		return domain.Conversation{}, apperrors.NewPersistence("conversation create", err)
	}
	if created {
		s.log.Info("Conversation created on first contact",
			"conversation_id", conv.ID,
			"participants", conv.ParticipantIDs)
	}
	return conv, nil
}

func (s *DeliveryService) moderate(senderID, content string) string {
	if s.moderator == nil {
		return content
	}
	censored, found := s.moderator.Censor(content)
	if len(found) > 0 {
		info := whatlanggo.Detect(content)
		s.log.Warn("Message content masked",
			"sender_id", senderID,
			"terms", len(found),
			"lang", info.Lang.Iso6391())
	}
	return censored
}

func (s *DeliveryService) pushConversationUpdated(ctx context.Context, convID uuid.UUID, recipient, summary string, at time.Time) {
	unread, err := s.messages.CountUnread(convID, recipient)
	if err != nil {
		s.log.Error("Failed to count unread messages",
			"conversation_id", convID, "error", err)
	}
	s.mux.PushToUser(ctx, recipient, event.ConversationUpdated{
		ConversationID: convID,
		LastMessage:    summary,
		LastMessageAt:  at,
		UnreadCount:    unread,
	})
}

func (s *DeliveryService) recordMissedMessage(ctx context.Context, recipient string, convID uuid.UUID, content string) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.Notify(ctx, domain.NotifyCommand{
		RecipientID: recipient,
		Type:        domain.NotifNewMessage,
		Title:       "New message",
		Message:     summarize(content),
		Priority:    domain.PriorityNormal,
		ActionRef:   fmt.Sprintf("/messages/%s", convID),
	})
	if err != nil {
		s.log.Error("Failed to record missed-message notification",
			"recipient_id", recipient, "error", err)
	}
}

func summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= lastMessageSummaryLen {
		return content
	}
	return string(runes[:lastMessageSummaryLen]) + "…"
}
