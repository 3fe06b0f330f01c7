package domain

import (
	"time"

	"github.com/google/uuid"
)

// Command is an inbound client intent. Every command carries the identity of
// the acting user, supplied by the transport handshake; handlers never trust
// a user ID embedded in the payload itself.
type Command interface {
	ActorID() string
}

// SendMessageCommand posts a message into a conversation. Either
// ConversationID targets an existing thread, or RecipientID asks for the
// thread with that user to be created lazily on this first message.
type SendMessageCommand struct {
	SenderID       string
	ConversationID uuid.UUID
	RecipientID    string
	Content        string      `validate:"required,max=4000"`
	Type           MessageType `validate:"oneof=text file"`
	CreatedAt      time.Time
}

func (c SendMessageCommand) ActorID() string { return c.SenderID }

// TypingCommand signals a typing indicator. Fire and forget: never persisted,
// never queued, silently dropped when the peer is not live.
type TypingCommand struct {
	UserID         string
	ConversationID uuid.UUID
	Stopped        bool
}

func (c TypingCommand) ActorID() string { return c.UserID }

// ConversationReadCommand acknowledges everything addressed to the actor in
// one conversation.
type ConversationReadCommand struct {
	UserID         string
	ConversationID uuid.UUID
}

func (c ConversationReadCommand) ActorID() string { return c.UserID }

// ListMessagesCommand pages through a conversation's history, newest first.
type ListMessagesCommand struct {
	UserID         string
	ConversationID uuid.UUID
	Cursor         *string
}

func (c ListMessagesCommand) ActorID() string { return c.UserID }

// NotifyCommand asks the fan-out to record and deliver a notification.
type NotifyCommand struct {
	RecipientID string           `validate:"required"`
	Type        NotificationType `validate:"required"`
	Title       string           `validate:"required,max=200"`
	Message     string           `validate:"max=2000"`
	Priority    Priority         `validate:"oneof=normal high urgent"`
	ActionRef   string           `validate:"max=500"`
}

func (c NotifyCommand) ActorID() string { return c.RecipientID }

// NotificationActionCommand mutates a single notification owned by the actor.
type NotificationActionCommand struct {
	UserID         string
	NotificationID uuid.UUID
}

func (c NotificationActionCommand) ActorID() string { return c.UserID }
