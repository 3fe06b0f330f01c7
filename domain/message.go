package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

// DeliveryStatus is the lifecycle stage of a message. Transitions are
// monotonic: sent -> queued -> delivered -> read, never backwards.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryQueued    DeliveryStatus = "queued"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
)

var deliveryRank = map[DeliveryStatus]int{
	DeliverySent:      0,
	DeliveryQueued:    1,
	DeliveryDelivered: 2,
	DeliveryRead:      3,
}

// Rank orders statuses along the lifecycle. Unknown statuses rank below
// everything so they can never overwrite a valid one.
func (s DeliveryStatus) Rank() int {
	rank, ok := deliveryRank[s]
	if !ok {
		return -1
	}
	return rank
}

// Advances reports whether moving to the given status is a forward step.
func (s DeliveryStatus) Advances(to DeliveryStatus) bool {
	return to.Rank() > s.Rank()
}

// Message is an immutable chat event owned by its conversation. RecipientID
// is derived from the two-party membership at send time; it keys the queued
// index so a reconnecting user's undelivered messages can be found without a
// full scan.
type Message struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID uuid.UUID      `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	RecipientID    string         `json:"recipientId"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"type"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	CreatedAt      time.Time      `json:"createdAt"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty"`
}
