package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "agentway", cfg.AppName)
	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 2.0, cfg.RetryExpBase)
	assert.Equal(t, 0, cfg.CompactionInterval)
	assert.False(t, cfg.MemoryEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AGENTWAY_APP_NAME", "blog-writer")
	t.Setenv("AGENTWAY_SESSION_BACKEND", "sqlite")
	t.Setenv("AGENTWAY_SQLITE_PATH", "/tmp/sessions.db")
	t.Setenv("AGENTWAY_RETRY_BASE_DELAY", "250ms")
	t.Setenv("AGENTWAY_COMPACTION_INTERVAL", "5")
	t.Setenv("AGENTWAY_MEMORY_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "blog-writer", cfg.AppName)
	assert.Equal(t, "sqlite", cfg.SessionBackend)
	assert.Equal(t, "/tmp/sessions.db", cfg.SQLitePath)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 5, cfg.CompactionInterval)
	assert.True(t, cfg.MemoryEnabled)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("AGENTWAY_SESSION_BACKEND", "dynamo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session backend")
}

func TestLoad_RejectsBadRetryAttempts(t *testing.T) {
	t.Setenv("AGENTWAY_RETRY_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
}
