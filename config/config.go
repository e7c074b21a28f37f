// Package config loads runner and store configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything tunable from the environment. Defaults match the
// zero-setup demo path: in-memory stores, compaction off, memory off.
type Config struct {
	// AppName scopes sessions and memory.
	AppName string `env:"AGENTWAY_APP_NAME" envDefault:"agentway"`

	// LogLevel selects the zap level: debug, info, warn, error.
	LogLevel string `env:"AGENTWAY_LOG_LEVEL" envDefault:"info"`

	// SessionBackend selects the session store: memory, sqlite or redis.
	SessionBackend string `env:"AGENTWAY_SESSION_BACKEND" envDefault:"memory"`

	// SQLitePath is the session database path for the sqlite backend.
	SQLitePath string `env:"AGENTWAY_SQLITE_PATH" envDefault:"agentway.db"`

	// RedisAddr is the host:port for the redis backend.
	RedisAddr string `env:"AGENTWAY_REDIS_ADDR" envDefault:"localhost:6379"`

	// Retry policy applied to every model invocation.
	RetryMaxAttempts int           `env:"AGENTWAY_RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay   time.Duration `env:"AGENTWAY_RETRY_BASE_DELAY" envDefault:"1s"`
	RetryExpBase     float64       `env:"AGENTWAY_RETRY_EXP_BASE" envDefault:"2"`

	// Compaction settings; CompactionInterval 0 disables compaction.
	CompactionInterval int `env:"AGENTWAY_COMPACTION_INTERVAL" envDefault:"0"`
	CompactionOverlap  int `env:"AGENTWAY_COMPACTION_OVERLAP" envDefault:"2"`

	// Memory settings.
	MemoryEnabled bool `env:"AGENTWAY_MEMORY_ENABLED" envDefault:"false"`
	PreloadMemory bool `env:"AGENTWAY_MEMORY_PRELOAD" envDefault:"false"`
	AutoIngest    bool `env:"AGENTWAY_MEMORY_AUTO_INGEST" envDefault:"false"`

	// MaxModelCalls bounds model calls per turn, 0 = unlimited.
	MaxModelCalls int `env:"AGENTWAY_MAX_MODEL_CALLS" envDefault:"0"`

	// Provider credentials, read by the model adapters.
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SessionBackend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.CompactionInterval < 0 {
		return fmt.Errorf("compaction interval must not be negative, got %d", c.CompactionInterval)
	}
	return nil
}
