// Package event defines the outbound vocabulary of the realtime core: every
// payload the server can push to a connected client, each carrying its wire
// name. Events are values; they cross goroutine boundaries freely.
package event

import (
	"time"

	"careerlink/domain"

	"github.com/google/uuid"
)

// DomainEvent is anything pushable to a client. Event() is the name the
// transport writes on the wire envelope.
type DomainEvent interface {
	Event() string
}

type NewMessage struct {
	Message domain.Message `json:"message"`
}

func (NewMessage) Event() string { return "new_message" }

type ConversationUpdated struct {
	ConversationID uuid.UUID `json:"conversationId"`
	LastMessage    string    `json:"lastMessage"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	UnreadCount    int       `json:"unreadCount"`
}

func (ConversationUpdated) Event() string { return "conversation_updated" }

type UserTyping struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         string    `json:"userId"`
	ExpiresInMs    int64     `json:"expiresInMs"`
}

func (UserTyping) Event() string { return "user_typing" }

type UserStoppedTyping struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         string    `json:"userId"`
}

func (UserStoppedTyping) Event() string { return "user_stopped_typing" }

// ConversationRead echoes a read receipt back to the reader's own live
// session so unread counters stay in sync across surfaces.
type ConversationRead struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ReadCount      int       `json:"readCount"`
}

func (ConversationRead) Event() string { return "conversation_read" }

type MessagesLoaded struct {
	ConversationID uuid.UUID        `json:"conversationId"`
	Messages       []domain.Message `json:"messages"`
	Cursor         *string          `json:"cursor,omitempty"`
}

func (MessagesLoaded) Event() string { return "messages_loaded" }

type PresenceChanged struct {
	UserID       string                `json:"userId"`
	Status       domain.PresenceStatus `json:"status"`
	LastActiveAt time.Time             `json:"lastActiveAt"`
}

func (PresenceChanged) Event() string { return "presence_changed" }

type NewNotification struct {
	Notification domain.Notification `json:"notification"`
	Escalation   domain.Escalation   `json:"escalation"`
}

func (NewNotification) Event() string { return "new_notification" }

type NotificationsLoaded struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

func (NotificationsLoaded) Event() string { return "notifications_loaded" }

type NotificationMarkedRead struct {
	NotificationID uuid.UUID `json:"notificationId"`
}

func (NotificationMarkedRead) Event() string { return "notification_marked_read" }

type AllNotificationsMarkedRead struct {
	Count int `json:"count"`
}

func (AllNotificationsMarkedRead) Event() string { return "all_notifications_marked_read" }

type NotificationDeleted struct {
	NotificationID uuid.UUID `json:"notificationId"`
}

func (NotificationDeleted) Event() string { return "notification_deleted" }
