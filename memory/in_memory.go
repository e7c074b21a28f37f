// Package memory implements the long-term memory store: ingestion of session
// events into per-user fragments and keyword recall over them.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/agentway/agentway/core"
)

// InMemoryStoreOptions configures an InMemoryStore.
type InMemoryStoreOptions struct {
	// IncludeToolActivity ingests function call / response events too.
	// Off by default: tool chatter rarely makes useful recall material.
	IncludeToolActivity bool
}

// InMemoryStore is a process-local core.MemoryStore. Fragments are bucketed
// per (app, user) so one user's memory never leaks into another's searches.
// Ingestion is idempotent on (session, event): re-ingesting a session after
// new turns only adds the new events.
//
// Search is keyword token overlap: the score of a fragment is the fraction of
// distinct query tokens present in its text. Only fragments matching at least
// one token are returned, ordered by score descending with ingestion order
// breaking ties. Swap in a vector index for semantic retrieval; the interface
// stays the same.
type InMemoryStore struct {
	mu                  sync.RWMutex
	fragments           map[string][]core.MemoryFragment // app/user -> fragments in ingestion order
	seen                map[string]map[string]bool       // app/user -> sessionID/eventID -> ingested
	includeToolActivity bool
}

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore(optFns ...func(o *InMemoryStoreOptions)) *InMemoryStore {
	opts := InMemoryStoreOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		fragments:           make(map[string][]core.MemoryFragment),
		seen:                make(map[string]map[string]bool),
		includeToolActivity: opts.IncludeToolActivity,
	}
}

func userKey(appName, userID string) string { return appName + "/" + userID }

// Ingest implements core.MemoryStore. It walks the session's full event log
// and adds a fragment for every not-yet-ingested event carrying text.
func (m *InMemoryStore) Ingest(ctx context.Context, sess *core.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := userKey(sess.AppName, sess.UserID)
	if m.seen[key] == nil {
		m.seen[key] = make(map[string]bool)
	}

	for _, ev := range sess.GetEvents() {
		if ev.IsCompaction() {
			continue
		}
		if !m.includeToolActivity && ev.IsToolActivity() {
			continue
		}
		text := ev.Text()
		if text == "" {
			continue
		}

		dedupe := sess.ID + "/" + ev.ID
		if m.seen[key][dedupe] {
			continue
		}
		m.seen[key][dedupe] = true

		m.fragments[key] = append(m.fragments[key], core.MemoryFragment{
			AppName:    sess.AppName,
			UserID:     sess.UserID,
			SessionID:  sess.ID,
			EventID:    ev.ID,
			Author:     ev.Author,
			Text:       text,
			IngestedAt: ev.Timestamp,
		})
	}
	return nil
}

// Search implements core.MemoryStore.
func (m *InMemoryStore) Search(ctx context.Context, appName, userID, query string, limit int) ([]core.MemoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		result core.MemoryResult
		order  int
	}
	var matches []scored

	for i, frag := range m.fragments[userKey(appName, userID)] {
		fragTokens := tokenize(frag.Text)
		hits := 0
		for tok := range queryTokens {
			if fragTokens[tok] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		matches = append(matches, scored{
			result: core.MemoryResult{
				Fragment: frag,
				Score:    float64(hits) / float64(len(queryTokens)),
			},
			order: i,
		})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].result.Score == matches[b].result.Score {
			return matches[a].order < matches[b].order
		}
		return matches[a].result.Score > matches[b].result.Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]core.MemoryResult, len(matches))
	for i, s := range matches {
		out[i] = s.result
	}
	return out, nil
}

// tokenize lowercases and splits on non-alphanumeric runes, returning the
// distinct token set.
func tokenize(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}
	return tokens
}
