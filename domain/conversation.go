package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a durable two-party thread. Membership is fixed at
// creation; the thread is created lazily on the first message exchanged
// between two users.
type Conversation struct {
	ID             uuid.UUID
	ParticipantIDs [2]string
	LastMessage    string
	LastMessageAt  time.Time
	CreatedAt      time.Time
}

// NewConversation builds a thread between two users. Participants are stored
// in lexicographic order so the pair has a single canonical form.
func NewConversation(userA, userB string, now time.Time) Conversation {
	a, b := OrderPair(userA, userB)
	return Conversation{
		ID:             uuid.New(),
		ParticipantIDs: [2]string{a, b},
		CreatedAt:      now,
	}
}

// OrderPair returns the two user IDs in canonical (lexicographic) order.
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether userID belongs to the thread.
func (c Conversation) HasParticipant(userID string) bool {
	return c.ParticipantIDs[0] == userID || c.ParticipantIDs[1] == userID
}

// OtherParticipant resolves the peer of userID inside the thread.
// The boolean is false when userID is not a participant at all.
func (c Conversation) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case c.ParticipantIDs[0]:
		return c.ParticipantIDs[1], true
	case c.ParticipantIDs[1]:
		return c.ParticipantIDs[0], true
	default:
		return "", false
	}
}
