// Package runtime wires presence, routing and offline queuing together.
// It orchestrates delivery without containing business rules; those live in
// the services layer.
package runtime

import (
	"log/slog"
	"sync"
	"time"

	"careerlink/contract"
	"careerlink/domain"
)

type liveSession struct {
	session domain.Session
	conn    contract.ConnectionSink
}

// PresenceRegistry is the single authoritative map of live users. It is
// injected by reference into every component that needs liveness checks;
// no other component keeps its own copy.
//
// Policy: one active session per user. A new connection replaces the old
// one, and the replaced connection is closed so a client never receives the
// same event twice over two sockets.
type PresenceRegistry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions map[string]*liveSession
}

func NewPresenceRegistry(log *slog.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		log:      log,
		sessions: make(map[string]*liveSession),
	}
}

// SetOnline registers a live connection for the user, replacing and closing
// any previous one. Returns whether a previous session was replaced.
func (r *PresenceRegistry) SetOnline(userID string, conn contract.ConnectionSink) bool {
	r.mu.Lock()
	prev, replaced := r.sessions[userID]
	r.sessions[userID] = &liveSession{
		session: domain.Session{
			UserID:       userID,
			Status:       domain.StatusOnline,
			LastActiveAt: time.Now().UTC(),
		},
		conn: conn,
	}
	r.mu.Unlock()

	if replaced && prev.conn != nil {
		r.log.Info("Replacing existing session", "user_id", userID)
		prev.conn.Close()
	}
	return replaced
}

// SetOffline drops the user's session. The connection handle is not closed
// here: the transport layer owns the socket lifecycle on disconnect.
func (r *PresenceRegistry) SetOffline(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Touch refreshes activity on inbound traffic. A user demoted to away is
// promoted back to online; the boolean reports a status change so the
// caller can broadcast it.
func (r *PresenceRegistry) Touch(userID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live, ok := r.sessions[userID]
	if !ok {
		return domain.Session{}, false
	}
	live.session.LastActiveAt = time.Now().UTC()
	changed := live.session.Status != domain.StatusOnline
	live.session.Status = domain.StatusOnline
	return live.session, changed
}

// IsOnline reports whether the user holds a live connection. Away users are
// still connected and therefore still reachable by push.
func (r *PresenceRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

func (r *PresenceRegistry) Get(userID string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live, ok := r.sessions[userID]
	if !ok {
		return domain.Session{}, false
	}
	return live.session, true
}

func (r *PresenceRegistry) Sink(userID string) (contract.ConnectionSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live, ok := r.sessions[userID]
	if !ok || live.conn == nil {
		return nil, false
	}
	return live.conn, true
}

// Sweep demotes idle sessions: online -> away after awayAfter, away ->
// offline (session dropped, connection closed) after offlineAfter. Returns
// the sessions that changed status so the caller can broadcast presence
// events to conversation partners.
func (r *PresenceRegistry) Sweep(now time.Time, awayAfter, offlineAfter time.Duration) []domain.Session {
	var transitioned []domain.Session
	var closing []contract.ConnectionSink

	r.mu.Lock()
	for userID, live := range r.sessions {
		idle := live.session.IdleFor(now)
		switch {
		case idle >= offlineAfter:
			delete(r.sessions, userID)
			if live.conn != nil {
				closing = append(closing, live.conn)
			}
			gone := live.session
			gone.Status = domain.StatusOffline
			transitioned = append(transitioned, gone)
		case idle >= awayAfter && live.session.Status == domain.StatusOnline:
			live.session.Status = domain.StatusAway
			transitioned = append(transitioned, live.session)
		}
	}
	r.mu.Unlock()

	for _, conn := range closing {
		conn.Close()
	}
	return transitioned
}

// CountByStatus snapshots session counts for metrics.
func (r *PresenceRegistry) CountByStatus() map[domain.PresenceStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.PresenceStatus]int)
	for _, live := range r.sessions {
		counts[live.session.Status]++
	}
	return counts
}
