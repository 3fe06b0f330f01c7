package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates the domain events a user can be notified about.
type NotificationType string

const (
	NotifNewMessage        NotificationType = "new_message"
	NotifApplicationStatus NotificationType = "application_status"
	NotifJobMatch          NotificationType = "job_match"
	NotifProfileView       NotificationType = "profile_view"
	NotifConnectionRequest NotificationType = "connection_request"
	NotifSystem            NotificationType = "system"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is persisted before any delivery attempt, so it survives even
// total push failure and is retrievable on the next login.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID string           `json:"recipientId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Priority    Priority         `json:"priority"`
	ActionRef   string           `json:"actionRef,omitempty"`
	Read        bool             `json:"read"`
	ReadAt      *time.Time       `json:"readAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// EscalationChannel names the presentation surface a notification is promoted to.
type EscalationChannel string

const (
	EscalateNone    EscalationChannel = "none"
	EscalateToast   EscalationChannel = "toast"
	EscalateDesktop EscalationChannel = "desktop"
)

// Escalation tells the client how to present a pushed notification.
// Desktop alerts still depend on the recipient having granted the
// browser-level permission; the server only signals intent.
type Escalation struct {
	Channel           EscalationChannel `json:"channel"`
	RequiresDismissal bool              `json:"requiresDismissal"`
	AutoDismissMs     int64             `json:"autoDismissMs,omitempty"`
}

const highPriorityToastTimeoutMs = 5000

// EscalationFor maps a priority to its presentation contract: normal stays on
// the unread badge, high gets a self-dismissing toast, urgent gets a toast
// plus desktop alert that the user must dismiss explicitly.
func EscalationFor(p Priority) Escalation {
	switch p {
	case PriorityHigh:
		return Escalation{Channel: EscalateToast, AutoDismissMs: highPriorityToastTimeoutMs}
	case PriorityUrgent:
		return Escalation{Channel: EscalateDesktop, RequiresDismissal: true}
	default:
		return Escalation{Channel: EscalateNone}
	}
}
