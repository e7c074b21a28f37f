package core

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Session is a conversational container identified by (AppName, UserID, ID).
// It tracks mutable key/value state plus an ordered, append-only event
// history. Events are never rewritten; the only logical removal is the
// Compactor's supersede, represented as an appended compaction record that
// read paths interpret (see ActiveEvents). Safe for concurrent access.
type Session struct {
	AppName string         `json:"app_name"`
	UserID  string         `json:"user_id"`
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session for the given identity.
func NewSession(appName, userID, id string) *Session {
	now := time.Now().UTC()
	return &Session{
		AppName: appName,
		UserID:  userID,
		ID:      id,
		State:   map[string]any{},
		Events:  []Event{},
		Created: now,
		Updated: now,
	}
}

// SessionKey builds the canonical composite key for a session identity.
func SessionKey(appName, userID, id string) string {
	return fmt.Sprintf("%s/%s/%s", appName, userID, id)
}

// Key returns the canonical composite key of this session.
func (s *Session) Key() string { return SessionKey(s.AppName, s.UserID, s.ID) }

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// MergeState merges the provided key/value pairs into State.
func (s *Session) MergeState(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.State, delta)
	s.Updated = time.Now().UTC()
}

// StateSnapshot returns a shallow copy of the current state map.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]any, len(s.State))
	maps.Copy(snap, s.State)
	return snap
}

// AddEvent appends an event to the history updating the Updated timestamp.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now().UTC()
}

// GetEvents returns a defensive copy of the full event log, including
// superseded events (retained for audit).
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// ActiveEvents implements the compaction read path: the most recent
// compaction record (if any) followed by all events after its superseded
// range. Older compaction records and the events they replaced are filtered
// out. Without any compaction record the full log is returned.
func (s *Session) ActiveEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeEvents(s.Events)
}

func activeEvents(events []Event) []Event {
	latest := -1
	for i, ev := range events {
		if ev.IsCompaction() {
			latest = i
		}
	}
	if latest < 0 {
		out := make([]Event, len(events))
		copy(out, events)
		return out
	}

	endID := events[latest].Actions.Compaction.EndID
	endIdx := -1
	for i, ev := range events {
		if ev.ID == endID {
			endIdx = i
			break
		}
	}

	out := []Event{events[latest]}
	for i := endIdx + 1; i < len(events); i++ {
		if i == latest || events[i].IsCompaction() {
			continue
		}
		out = append(out, events[i])
	}
	return out
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		AppName: s.AppName,
		UserID:  s.UserID,
		ID:      s.ID,
		State:   make(map[string]any, len(s.State)),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	maps.Copy(clone.State, s.State)
	copy(clone.Events, s.Events)
	return clone
}

// SessionStore persists sessions and their evolving state / event history.
// Implementations must be safe for concurrent access from independent
// sessions; per-session write serialization is the runner's responsibility.
type SessionStore interface {
	// Create makes a new empty session, failing with ErrSessionExists if the
	// identity is already present.
	Create(ctx context.Context, appName, userID, sessionID string) (*Session, error)

	// Get returns an existing session or ErrSessionNotFound.
	Get(ctx context.Context, appName, userID, sessionID string) (*Session, error)

	// AppendEvents atomically appends events to the session's log.
	AppendEvents(ctx context.Context, appName, userID, sessionID string, events ...Event) error

	// ApplyDelta merges a key/value delta into the session state.
	ApplyDelta(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error
}
