// Package logging provides a tiny abstraction so downstream code depends on
// a minimal Logger interface while the default implementation is backed by
// zap. Tests use NoOpLogger.
package logging
