package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/typeshield/typeshield/pkg/metrics"
)

// SessionCookie is the cookie name carrying the session id.
const SessionCookie = "typeshield_session"

// Session is server-side state for one authenticated browser.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Username  string
	LastScore float64 // similarity score from the login that opened the session
	ExpiresAt time.Time
}

// SessionStore keeps sessions in memory with lazy TTL expiry.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a session store with the given lifetime.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a session for a user and returns it.
func (s *SessionStore) Create(userID uuid.UUID, username string, lastScore float64) Session {
	sess := Session{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		LastScore: lastScore,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.purgeExpiredLocked()
	s.sessions[sess.ID] = sess
	metrics.UpdateActiveSessions(len(s.sessions))
	s.mu.Unlock()

	return sess
}

// Get returns a live session by id. Returns ErrNoSession for unknown or
// expired ids.
func (s *SessionStore) Get(id uuid.UUID) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || s.now().After(sess.ExpiresAt) {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Delete closes a session. Unknown ids are a no-op.
func (s *SessionStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	metrics.UpdateActiveSessions(len(s.sessions))
	s.mu.Unlock()
}

// Count reports live sessions, purging expired ones first.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()
	return len(s.sessions)
}

// purgeExpiredLocked drops expired sessions. Callers hold s.mu.
func (s *SessionStore) purgeExpiredLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	metrics.UpdateActiveSessions(len(s.sessions))
}
