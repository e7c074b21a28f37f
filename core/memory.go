package core

import (
	"context"
	"time"
)

// MemoryFragment is one unit of long-term memory extracted from a session
// event. Fragments are owned exclusively by the MemoryStore and immutable
// after ingestion.
type MemoryFragment struct {
	AppName    string    `json:"app_name"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"` // Source session
	EventID    string    `json:"event_id"`   // Source event (idempotency key with SessionID)
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	IngestedAt time.Time `json:"ingested_at"`
}

// MemoryResult is a fragment returned from Search with its relevance score.
type MemoryResult struct {
	Fragment MemoryFragment
	Score    float64
}

// MemoryStore indexes completed sessions for cross-session retrieval scoped
// by (app, user). Ingestion is idempotent: re-ingesting a session must not
// duplicate fragments already present for the same session + event range.
// Search must produce a deterministic, monotonic relevance ordering for a
// fixed index state and fixed query.
type MemoryStore interface {
	Ingest(ctx context.Context, sess *Session) error
	Search(ctx context.Context, appName, userID, query string, limit int) ([]MemoryResult, error)
}
