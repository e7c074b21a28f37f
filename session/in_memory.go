// Package session provides SessionStore implementations: a volatile
// in-memory store, a sqlite-backed store, and a redis-backed store.
package session

import (
	"context"
	"sync"

	"github.com/agentway/agentway/core"
)

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map keyed by (app, user, session). It is safe for concurrent access
// and best suited for tests or ephemeral demo servers. Returned sessions are
// clones to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create implements core.SessionStore.
func (s *InMemoryStore) Create(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := core.SessionKey(appName, userID, sessionID)
	if _, exists := s.sessions[key]; exists {
		return nil, core.ErrSessionExists
	}
	sess := core.NewSession(appName, userID, sessionID)
	s.sessions[key] = sess
	return sess.Clone(), nil
}

// Get implements core.SessionStore.
func (s *InMemoryStore) Get(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[core.SessionKey(appName, userID, sessionID)]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// AppendEvents implements core.SessionStore.
func (s *InMemoryStore) AppendEvents(ctx context.Context, appName, userID, sessionID string, events ...core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[core.SessionKey(appName, userID, sessionID)]
	if !ok {
		return core.ErrSessionNotFound
	}
	for _, ev := range events {
		sess.AddEvent(ev)
	}
	return nil
}

// ApplyDelta implements core.SessionStore.
func (s *InMemoryStore) ApplyDelta(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[core.SessionKey(appName, userID, sessionID)]
	if !ok {
		return core.ErrSessionNotFound
	}
	sess.MergeState(delta)
	return nil
}
