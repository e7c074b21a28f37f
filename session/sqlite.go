package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentway/agentway/core"
)

// SQLiteStore is a persistent SessionStore backed by a sqlite database.
// Sessions and events live in separate tables; event order is preserved by a
// monotonically increasing rowid per session.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the session database at path. Use
// ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single shared connection avoids writer lock contention under
	// concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			app_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY (app_name, user_id, session_id)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			app_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			invocation_id TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			branch TEXT NOT NULL DEFAULT '',
			timestamp_ms INTEGER NOT NULL,
			content TEXT,
			actions TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS events_session_idx ON events(app_name, user_id, session_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Create implements core.SessionStore.
func (s *SQLiteStore) Create(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	sess := core.NewSession(appName, userID, sessionID)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (app_name, user_id, session_id, state, created_at_ms, updated_at_ms)
		 VALUES (?, ?, ?, '{}', ?, ?)
		 ON CONFLICT (app_name, user_id, session_id) DO NOTHING`,
		appName, userID, sessionID, sess.Created.UnixMilli(), sess.Updated.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if affected == 0 {
		return nil, core.ErrSessionExists
	}
	return sess, nil
}

// Get implements core.SessionStore.
func (s *SQLiteStore) Get(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	var (
		stateJSON string
		createdMs int64
		updatedMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, created_at_ms, updated_at_ms FROM sessions
		 WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		appName, userID, sessionID).Scan(&stateJSON, &createdMs, &updatedMs)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess := core.NewSession(appName, userID, sessionID)
	sess.Created = time.UnixMilli(createdMs)
	sess.Updated = time.UnixMilli(updatedMs)
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, invocation_id, author, branch, timestamp_ms, content, actions
		 FROM events WHERE app_name = ? AND user_id = ? AND session_id = ? ORDER BY seq`,
		appName, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev          core.Event
			timestampMs int64
			contentJSON sql.NullString
			actionsJSON string
		)
		if err := rows.Scan(&ev.ID, &ev.InvocationID, &ev.Author, &ev.Branch,
			&timestampMs, &contentJSON, &actionsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.UnixMilli(timestampMs)
		if contentJSON.Valid {
			var content core.Content
			if err := json.Unmarshal([]byte(contentJSON.String), &content); err != nil {
				return nil, fmt.Errorf("decode event content: %w", err)
			}
			ev.Content = &content
		}
		if err := json.Unmarshal([]byte(actionsJSON), &ev.Actions); err != nil {
			return nil, fmt.Errorf("decode event actions: %w", err)
		}
		sess.Events = append(sess.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return sess, nil
}

// AppendEvents implements core.SessionStore.
func (s *SQLiteStore) AppendEvents(ctx context.Context, appName, userID, sessionID string, events ...core.Event) error {
	if err := s.ensureExists(ctx, appName, userID, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		var contentJSON any
		if ev.Content != nil {
			raw, err := json.Marshal(ev.Content)
			if err != nil {
				return fmt.Errorf("encode event content: %w", err)
			}
			contentJSON = string(raw)
		}
		actionsJSON, err := json.Marshal(ev.Actions)
		if err != nil {
			return fmt.Errorf("encode event actions: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (event_id, app_name, user_id, session_id, invocation_id, author, branch, timestamp_ms, content, actions)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, appName, userID, sessionID, ev.InvocationID, ev.Author, ev.Branch,
			ev.Timestamp.UnixMilli(), contentJSON, string(actionsJSON))
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at_ms = ? WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		time.Now().UnixMilli(), appName, userID, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return tx.Commit()
}

// ApplyDelta implements core.SessionStore.
func (s *SQLiteStore) ApplyDelta(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}
	defer tx.Rollback()

	var stateJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		appName, userID, sessionID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return core.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return fmt.Errorf("decode session state: %w", err)
	}
	for k, v := range delta {
		state[k] = v
	}
	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET state = ?, updated_at_ms = ? WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		string(merged), time.Now().UnixMilli(), appName, userID, sessionID); err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ensureExists(ctx context.Context, appName, userID, sessionID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		appName, userID, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return core.ErrSessionNotFound
	}
	return err
}
