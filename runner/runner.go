// Package runner coordinates complete turns: session resolution, memory
// preload, root agent execution with durable event persistence, and the
// post-turn compaction and ingestion passes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/agentway/agentway/compaction"
	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/logging"
	"github.com/agentway/agentway/session"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// SessionStore persists sessions; defaults to the in-memory store.
	SessionStore core.SessionStore

	// MemoryStore enables memory preload, the load_memory tool path, and
	// auto-ingestion. Nil disables all memory features.
	MemoryStore core.MemoryStore

	// Compactor, when set, runs after every turn.
	Compactor *compaction.Compactor

	// PreloadMemory searches memory with the user's message before the turn
	// and injects the hits ahead of agent instructions.
	PreloadMemory bool

	// PreloadLimit caps preloaded fragments, default 5.
	PreloadLimit int

	// AutoIngest saves the session into memory after every turn.
	AutoIngest bool

	// MaxModelCalls bounds model calls within one turn, 0 = unlimited.
	MaxModelCalls int

	// Logger receives turn diagnostics.
	Logger logging.Logger
}

// Turn is the synchronous result of one Runner.Run call.
type Turn struct {
	InvocationID string
	// Events lists everything persisted during the turn, user event included.
	Events []core.Event
	// Reply is the text of the last content event produced by an agent.
	Reply string
	// State is the session state snapshot after the turn.
	State map[string]any
}

// Runner drives the root agent for an application. One turn runs at a time
// per session: a second concurrent Run on the same session fails fast with
// core.ErrSessionBusy instead of queueing. Distinct sessions run freely in
// parallel.
type Runner struct {
	appName string
	root    core.Agent

	sessionStore  core.SessionStore
	memoryStore   core.MemoryStore
	compactor     *compaction.Compactor
	preloadMemory bool
	preloadLimit  int
	autoIngest    bool
	maxModelCalls int
	logger        logging.Logger

	mu   sync.Mutex
	busy map[string]context.CancelFunc
}

// New constructs a Runner for the given application and root agent.
func New(appName string, root core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		PreloadLimit: 5,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		appName:       appName,
		root:          root,
		sessionStore:  opts.SessionStore,
		memoryStore:   opts.MemoryStore,
		compactor:     opts.Compactor,
		preloadMemory: opts.PreloadMemory,
		preloadLimit:  opts.PreloadLimit,
		autoIngest:    opts.AutoIngest,
		maxModelCalls: opts.MaxModelCalls,
		logger:        opts.Logger,
	}
}

// Run executes one complete turn for the given user and session. The session
// is created on first use. Events are persisted as they are emitted, so a
// failing turn keeps everything produced before the failure.
func (r *Runner) Run(ctx context.Context, userID, sessionID string, content core.Content) (*Turn, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	key := core.SessionKey(r.appName, userID, sessionID)
	if !r.acquire(key, cancel) {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrSessionBusy)
	}
	defer r.release(key)

	sess, err := r.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	invocationID := core.NewID()
	r.logger.Info("runner.turn.start",
		"app", r.appName, "user", userID, "session", sessionID, "invocation", invocationID)

	preamble := r.preload(ctx, userID, content)

	turn := &Turn{InvocationID: invocationID}
	persistEmit := func(ev core.Event) error {
		if err := r.sessionStore.AppendEvents(ctx, r.appName, userID, sessionID, ev); err != nil {
			return fmt.Errorf("persist event: %w", err)
		}
		if len(ev.Actions.StateDelta) > 0 {
			if err := r.sessionStore.ApplyDelta(ctx, r.appName, userID, sessionID, ev.Actions.StateDelta); err != nil {
				return fmt.Errorf("persist state delta: %w", err)
			}
			sess.MergeState(ev.Actions.StateDelta)
		}
		sess.AddEvent(ev)
		turn.Events = append(turn.Events, ev)
		return nil
	}

	var limiter *core.ModelLimiter
	if r.maxModelCalls > 0 {
		limiter = core.NewModelLimiter(r.maxModelCalls)
	}

	rc := core.NewRunContext(ctx, invocationID, content, sess,
		r.sessionStore, r.memoryStore, limiter, persistEmit, r.logger)
	rc.Preamble = preamble

	// Persist the user event first so agents read it from history; the
	// context's user content is cleared to avoid doubling it in prompts.
	if len(content.Parts) > 0 {
		if err := rc.EmitEvent(core.NewUserEvent(invocationID, content)); err != nil {
			return turn, err
		}
	}
	rc.UserContent = core.Content{}

	if _, err := r.root.Run(rc); err != nil {
		r.logger.Warn("runner.turn.failed", "invocation", invocationID, "error", err.Error())
		return turn, err
	}

	r.maybeCompact(ctx, sess, invocationID, userID, sessionID, turn)
	r.maybeIngest(ctx, sess)

	turn.Reply = lastReply(turn.Events)
	turn.State = sess.StateSnapshot()

	r.logger.Info("runner.turn.complete",
		"invocation", invocationID, "events", len(turn.Events))
	return turn, nil
}

// Cancel aborts the turn currently running for the given session, if any.
// It reports whether a turn was active.
func (r *Runner) Cancel(userID, sessionID string) bool {
	key := core.SessionKey(r.appName, userID, sessionID)
	r.mu.Lock()
	cancel := r.busy[key]
	r.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (r *Runner) acquire(key string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy == nil {
		r.busy = make(map[string]context.CancelFunc)
	}
	if r.busy[key] != nil {
		return false
	}
	r.busy[key] = cancel
	return true
}

func (r *Runner) release(key string) {
	r.mu.Lock()
	delete(r.busy, key)
	r.mu.Unlock()
}

func (r *Runner) resolveSession(ctx context.Context, userID, sessionID string) (*core.Session, error) {
	sess, err := r.sessionStore.Create(ctx, r.appName, userID, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, core.ErrSessionExists) {
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess, err = r.sessionStore.Get(ctx, r.appName, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// preload searches memory with the user's message and formats the hits for
// injection ahead of agent instructions. Failures only log: recall is an
// enhancement, not a dependency.
func (r *Runner) preload(ctx context.Context, userID string, content core.Content) string {
	if !r.preloadMemory || r.memoryStore == nil {
		return ""
	}
	query := content.Text()
	if query == "" {
		return ""
	}

	results, err := r.memoryStore.Search(ctx, r.appName, userID, query, r.preloadLimit)
	if err != nil {
		r.logger.Warn("runner.preload.failed", "error", err.Error())
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant information from past conversations:\n")
	for _, res := range results {
		fmt.Fprintf(&b, "- [%s] %s\n", res.Fragment.Author, res.Fragment.Text)
	}
	return b.String()
}

// maybeCompact runs the post-turn compaction pass. Best effort: a failed
// summarization never fails the turn that triggered it.
func (r *Runner) maybeCompact(ctx context.Context, sess *core.Session, invocationID, userID, sessionID string, turn *Turn) {
	if r.compactor == nil {
		return
	}
	record, err := r.compactor.MaybeCompact(ctx, sess, invocationID)
	if err != nil {
		r.logger.Warn("runner.compaction.failed", "invocation", invocationID, "error", err.Error())
		return
	}
	if record == nil {
		return
	}
	if err := r.sessionStore.AppendEvents(ctx, r.appName, userID, sessionID, *record); err != nil {
		r.logger.Warn("runner.compaction.persist_failed", "invocation", invocationID, "error", err.Error())
		return
	}
	sess.AddEvent(*record)
	turn.Events = append(turn.Events, *record)
}

// maybeIngest saves the session into long-term memory. Best effort.
func (r *Runner) maybeIngest(ctx context.Context, sess *core.Session) {
	if !r.autoIngest || r.memoryStore == nil {
		return
	}
	if err := r.memoryStore.Ingest(ctx, sess); err != nil {
		r.logger.Warn("runner.ingest.failed", "session", sess.ID, "error", err.Error())
	}
}

func lastReply(events []core.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Author == "user" || ev.IsCompaction() {
			continue
		}
		if text := ev.Text(); text != "" {
			return text
		}
	}
	return ""
}
