// Package compaction implements sliding-window history compaction: every few
// turns the oldest turns are summarized by the model into a compaction record
// that replaces them on read paths while the full log stays in storage.
package compaction

import "fmt"

const defaultPrompt = "Summarize the following conversation concisely. " +
	"Preserve facts, decisions, names and open questions; drop pleasantries " +
	"and repetition. Write in third person."

// Config controls when and how compaction triggers.
type Config struct {
	// Interval is the number of distinct invocations (turns) in the active
	// window that triggers a compaction pass.
	Interval int

	// Overlap is the number of most recent invocations excluded from the
	// summary, kept verbatim for context continuity. Those turns are counted
	// again toward the next trigger.
	Overlap int

	// Prompt overrides the built-in summarization instructions.
	Prompt string
}

// DefaultConfig returns the defaults: compact every 5 turns keeping 2.
func DefaultConfig() Config {
	return Config{Interval: 5, Overlap: 2}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("compaction interval must be positive, got %d", c.Interval)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("compaction overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Interval {
		return fmt.Errorf("compaction overlap (%d) must be smaller than interval (%d)", c.Overlap, c.Interval)
	}
	return nil
}

func (c Config) prompt() string {
	if c.Prompt != "" {
		return c.Prompt
	}
	return defaultPrompt
}
