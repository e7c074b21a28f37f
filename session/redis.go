package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentway/agentway/core"
)

// RedisStore is a SessionStore backed by redis. Session state lives in a
// hash and the event log in a list, keyed per (app, user, session), so
// multiple runner processes can share one session database.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreOptions configures a RedisStore.
type RedisStoreOptions struct {
	// Prefix namespaces all keys, default "agentway".
	Prefix string
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisStoreOptions)) *RedisStore {
	opts := RedisStoreOptions{Prefix: "agentway"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, prefix: opts.Prefix}
}

func (s *RedisStore) sessKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("%s:sess:%s:%s:%s", s.prefix, appName, userID, sessionID)
}

func (s *RedisStore) eventsKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("%s:events:%s:%s:%s", s.prefix, appName, userID, sessionID)
}

// Create implements core.SessionStore.
func (s *RedisStore) Create(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	sess := core.NewSession(appName, userID, sessionID)
	key := s.sessKey(appName, userID, sessionID)

	created, err := s.client.HSetNX(ctx, key, "created_ms", sess.Created.UnixMilli()).Result()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if !created {
		return nil, core.ErrSessionExists
	}

	if err := s.client.HSet(ctx, key,
		"state", "{}",
		"updated_ms", sess.Updated.UnixMilli(),
	).Err(); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get implements core.SessionStore.
func (s *RedisStore) Get(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessKey(appName, userID, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrSessionNotFound
	}

	sess := core.NewSession(appName, userID, sessionID)
	if raw, ok := fields["state"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &sess.State); err != nil {
			return nil, fmt.Errorf("decode session state: %w", err)
		}
	}
	if ms, ok := fields["created_ms"]; ok {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode created_ms %q: %w", ms, err)
		}
		sess.Created = time.UnixMilli(v)
	}
	if ms, ok := fields["updated_ms"]; ok {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode updated_ms %q: %w", ms, err)
		}
		sess.Updated = time.UnixMilli(v)
	}

	raw, err := s.client.LRange(ctx, s.eventsKey(appName, userID, sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load events: %w", err)
	}
	for _, item := range raw {
		var ev core.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		sess.Events = append(sess.Events, ev)
	}
	return sess, nil
}

// AppendEvents implements core.SessionStore.
func (s *RedisStore) AppendEvents(ctx context.Context, appName, userID, sessionID string, events ...core.Event) error {
	if err := s.ensureExists(ctx, appName, userID, sessionID); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(events))
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		encoded = append(encoded, string(raw))
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.eventsKey(appName, userID, sessionID), encoded...)
	pipe.HSet(ctx, s.sessKey(appName, userID, sessionID), "updated_ms", time.Now().UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}

// ApplyDelta implements core.SessionStore.
func (s *RedisStore) ApplyDelta(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}
	key := s.sessKey(appName, userID, sessionID)

	// Read-merge-write; per-session write serialization is the runner's
	// responsibility, so no WATCH loop is needed here.
	raw, err := s.client.HGet(ctx, key, "state").Result()
	if errors.Is(err, redis.Nil) {
		return core.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}

	state := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return fmt.Errorf("decode session state: %w", err)
		}
	}
	for k, v := range delta {
		state[k] = v
	}
	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	if err := s.client.HSet(ctx, key,
		"state", string(merged),
		"updated_ms", time.Now().UnixMilli(),
	).Err(); err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}
	return nil
}

func (s *RedisStore) ensureExists(ctx context.Context, appName, userID, sessionID string) error {
	n, err := s.client.Exists(ctx, s.sessKey(appName, userID, sessionID)).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if n == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}
