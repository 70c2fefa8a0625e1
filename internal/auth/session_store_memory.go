package auth

import (
	"context"
	"sync"
	"time"
)

// InMemorySessionStore implements SessionStore for tests and the memory
// database mode. Sessions whose refresh token has expired are dropped on the
// next Save of another session, so the maps stay bounded by the number of live sign-ins.
type InMemorySessionStore struct {
	mu        sync.RWMutex
	byRefresh map[string]Session
	byAccess  map[string]string
	now       func() time.Time
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		byRefresh: make(map[string]Session),
		byAccess:  make(map[string]string),
		now:       time.Now,
	}
}

// Save stores or replaces a session. Matching the Postgres store, the record
// is keyed by refresh token.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byRefresh[session.RefreshToken]; ok {
		delete(s.byAccess, prev.AccessToken)
	}
	s.byRefresh[session.RefreshToken] = session
	s.byAccess[session.AccessToken] = session.RefreshToken
	s.pruneLocked(s.now(), session.RefreshToken)
	return nil
}

func (s *InMemorySessionStore) pruneLocked(now time.Time, keep string) {
	for token, session := range s.byRefresh {
		if token != keep && now.After(session.ExpiresAt) {
			delete(s.byAccess, session.AccessToken)
			delete(s.byRefresh, token)
		}
	}
}

// Find retrieves a session by refresh token.
func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byRefresh[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// FindByAccessToken retrieves a session by its current access token.
func (s *InMemorySessionStore) FindByAccessToken(_ context.Context, accessToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refreshToken, ok := s.byAccess[accessToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.byRefresh[refreshToken], nil
}

// Delete removes the session addressed by refreshToken. Unknown tokens report
// ErrSessionNotFound.
func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byRefresh[refreshToken]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.byAccess, session.AccessToken)
	delete(s.byRefresh, refreshToken)
	return nil
}

// Has reports whether a refresh token exists.
func (s *InMemorySessionStore) Has(refreshToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byRefresh[refreshToken]
	return ok
}

// Len reports the number of stored sessions.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRefresh)
}

// WithNowFunc overrides the clock used for pruning.
func (s *InMemorySessionStore) WithNowFunc(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}
