// Package agentway builds multi-agent workflows on top of pluggable model
// providers, durable session stores and long-term memory. Most applications
// interact with this package by:
//  1. Wrapping a model.Model in a retry.Invoker
//  2. Composing agents (model, sequential, parallel, loop) from package agent
//  3. Driving turns through a runner.Runner, optionally configured from the
//     environment via config.Load()
//
// The helpers here wire environment configuration into concrete runner
// dependencies. All defaults are safe for local development and testing;
// production deployments typically supply a durable session store and a
// structured logger.
package agentway

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zapcore"

	"github.com/agentway/agentway/compaction"
	"github.com/agentway/agentway/config"
	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/logging"
	"github.com/agentway/agentway/memory"
	"github.com/agentway/agentway/model"
	"github.com/agentway/agentway/retry"
	"github.com/agentway/agentway/runner"
	"github.com/agentway/agentway/session"
)

// NewRunner builds a runner for the root agent from environment configuration.
// The invoker is reused for compaction summarization when compaction is
// enabled.
func NewRunner(cfg *config.Config, root core.Agent, invoker *retry.Invoker) (*runner.Runner, error) {
	store, err := NewSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	var compactor *compaction.Compactor
	if cfg.CompactionInterval > 0 {
		compactor, err = compaction.New(compaction.Config{
			Interval: cfg.CompactionInterval,
			Overlap:  cfg.CompactionOverlap,
		}, invoker, func(o *compaction.CompactorOptions) {
			o.Logger = logger
		})
		if err != nil {
			return nil, fmt.Errorf("configure compactor: %w", err)
		}
	}

	var memStore core.MemoryStore
	if cfg.MemoryEnabled {
		memStore = memory.NewInMemoryStore()
	}

	return runner.New(cfg.AppName, root, func(o *runner.Options) {
		o.SessionStore = store
		o.MemoryStore = memStore
		o.Compactor = compactor
		o.PreloadMemory = cfg.PreloadMemory
		o.AutoIngest = cfg.AutoIngest
		o.MaxModelCalls = cfg.MaxModelCalls
		o.Logger = logger
	}), nil
}

// NewSessionStore builds the session store named by cfg.SessionBackend.
func NewSessionStore(cfg *config.Config) (core.SessionStore, error) {
	switch cfg.SessionBackend {
	case "memory":
		return session.NewInMemoryStore(), nil
	case "sqlite":
		return session.NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return session.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// NewLogger builds a zap-backed logger at cfg.LogLevel.
func NewLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}
	return logging.NewZapLogger(level)
}

// NewInvoker wraps a model with the retry policy from cfg.
func NewInvoker(cfg *config.Config, m model.Model) *retry.Invoker {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.ExponentialBase = cfg.RetryExpBase
	return retry.NewInvoker(m, policy)
}
