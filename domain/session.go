// Package domain contains core concepts of the realtime communication system.
// Entities are plain values; behavior that needs infrastructure lives in
// runtime and services.
package domain

import "time"

// PresenceStatus is the coarse activity state of a connected user.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

// Session is the ephemeral record of a live connection. It is created when a
// user connects and destroyed on disconnect; the connection handle itself is
// held by the presence registry, not by this value.
type Session struct {
	UserID       string
	Status       PresenceStatus
	LastActiveAt time.Time
}

// IdleFor reports how long the session has been without inbound traffic.
func (s Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActiveAt)
}
