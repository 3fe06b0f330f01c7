// Package ws is the transport boundary: one bidirectional websocket per
// authenticated connection, carrying named JSON events both ways.
package ws

import (
	"encoding/json"

	"careerlink/domain/event"
)

// Inbound event names accepted from clients.
const (
	EvtJoinConversation     = "join_conversation"
	EvtSendMessage          = "send_message"
	EvtTypingStart          = "typing_start"
	EvtTypingStop           = "typing_stop"
	EvtConversationRead     = "conversation_read"
	EvtListMessages         = "list_messages"
	EvtGetNotifications     = "get_notifications"
	EvtMarkNotificationRead = "mark_notification_read"
	EvtMarkAllRead          = "mark_all_read"
	EvtDeleteNotification   = "delete_notification"
)

// Envelope frames every message on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps an outbound domain event into its wire envelope.
func Encode(e event.DomainEvent) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: e.Event(), Data: data}, nil
}

// ErrorPayload is pushed back on a rejected inbound event. Source names the
// inbound event that was rejected.
type ErrorPayload struct {
	Source string `json:"event"`
	Reason string `json:"reason"`
	Kind   string `json:"kind"`
}

type sendMessagePayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type listMessagesPayload struct {
	ConversationID string  `json:"conversationId"`
	Cursor         *string `json:"cursor,omitempty"`
}

type notificationPayload struct {
	NotificationID string `json:"notificationId"`
}
