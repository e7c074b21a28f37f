package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentway/agentway/agent"
	"github.com/agentway/agentway/compaction"
	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/memory"
	"github.com/agentway/agentway/model"
	"github.com/agentway/agentway/retry"
)

type blockingAgent struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAgent) Name() string        { return "blocker" }
func (a *blockingAgent) Description() string { return "blocks until released" }

func (a *blockingAgent) Run(rc *core.RunContext) (core.Signal, error) {
	select {
	case <-a.started:
		// already signalled: later invocations (other sessions, or the turn
		// after release) must not block or re-close the channel
	default:
		close(a.started)
		<-a.release
	}
	return core.SignalContinue, nil
}

type ctxWaitAgent struct {
	started chan struct{}
}

func (a *ctxWaitAgent) Name() string        { return "waiter" }
func (a *ctxWaitAgent) Description() string { return "waits for cancellation" }

func (a *ctxWaitAgent) Run(rc *core.RunContext) (core.Signal, error) {
	close(a.started)
	<-rc.Done()
	return core.SignalContinue, rc.Err()
}

type failingAgent struct{ name string }

func (a *failingAgent) Name() string        { return a.name }
func (a *failingAgent) Description() string { return "always fails" }

func (a *failingAgent) Run(rc *core.RunContext) (core.Signal, error) {
	return core.SignalContinue, errors.New("agent blew up")
}

type replyAgent struct {
	name string
	text string
}

func (a *replyAgent) Name() string        { return a.name }
func (a *replyAgent) Description() string { return "replies with fixed text" }

func (a *replyAgent) Run(rc *core.RunContext) (core.Signal, error) {
	ev := core.NewMessageEvent(rc.InvocationID, a.name, a.text)
	return core.SignalContinue, rc.EmitEvent(ev)
}

func newModelAgent(t *testing.T, name string, stub *model.StubModel, optFns ...func(o *agent.ModelAgentOptions)) *agent.ModelAgent {
	t.Helper()
	a, err := agent.NewModelAgent(name, retry.NewInvoker(stub, retry.DefaultPolicy()), optFns...)
	require.NoError(t, err)
	return a
}

func TestRun_BlogPipeline(t *testing.T) {
	outlineStub := model.NewStubModel()
	outlineStub.QueueText("1. Intro 2. Goroutines 3. Conclusion")

	outline := newModelAgent(t, "outline", outlineStub, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText("Produce a blog outline for the user's topic.")
		o.OutputKey = "blog_outline"
	})
	// the exhausted stub echoes instructions, proving the outline reached
	// the writer's prompt through session state
	writer := newModelAgent(t, "writer", model.NewStubModel(), func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText("Write the post from this outline: {blog_outline}")
	})

	r := New("blog-app", agent.NewSequentialAgent("pipeline", outline, writer))

	turn, err := r.Run(context.Background(), "user-1", "sess-1",
		core.NewTextContent("user", "Write about Go concurrency"))
	require.NoError(t, err)

	assert.Equal(t, "Write the post from this outline: 1. Intro 2. Goroutines 3. Conclusion", turn.Reply)
	assert.Equal(t, "1. Intro 2. Goroutines 3. Conclusion", turn.State["blog_outline"])

	// user event plus one event per pipeline stage
	require.Len(t, turn.Events, 3)
	assert.Equal(t, "user", turn.Events[0].Author)
	assert.Equal(t, "outline", turn.Events[1].Author)
	assert.Equal(t, "writer", turn.Events[2].Author)

	// all events share the turn's invocation id
	for _, ev := range turn.Events {
		assert.Equal(t, turn.InvocationID, ev.InvocationID)
	}
}

func TestRun_HistoryIsAppendOnly(t *testing.T) {
	r := New("app", &replyAgent{name: "echoer", text: "reply"})

	ctx := context.Background()
	_, err := r.Run(ctx, "user-1", "sess-1", core.NewTextContent("user", "first"))
	require.NoError(t, err)
	_, err = r.Run(ctx, "user-1", "sess-1", core.NewTextContent("user", "second"))
	require.NoError(t, err)

	sess, err := r.sessionStore.Get(ctx, "app", "user-1", "sess-1")
	require.NoError(t, err)
	require.Len(t, sess.Events, 4)
	assert.Equal(t, "first", sess.Events[0].Text())
	assert.Equal(t, "reply", sess.Events[1].Text())
	assert.Equal(t, "second", sess.Events[2].Text())
}

func TestRun_SessionBusyFailsFast(t *testing.T) {
	blocker := &blockingAgent{started: make(chan struct{}), release: make(chan struct{})}
	r := New("app", blocker)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = r.Run(context.Background(), "user-1", "sess-1", core.NewTextContent("user", "hi"))
	}()

	<-blocker.started

	_, err := r.Run(context.Background(), "user-1", "sess-1", core.NewTextContent("user", "again"))
	assert.ErrorIs(t, err, core.ErrSessionBusy)

	// a different session is not affected
	_, err = r.Run(context.Background(), "user-1", "sess-2", core.NewTextContent("user", "other"))
	require.NotErrorIs(t, err, core.ErrSessionBusy)

	close(blocker.release)
	wg.Wait()
	require.NoError(t, firstErr)

	// the lock is released once the turn finishes
	_, err = r.Run(context.Background(), "user-1", "sess-1", core.NewTextContent("user", "done now"))
	require.NoError(t, err)
}

func TestRun_CancelAbortsActiveTurn(t *testing.T) {
	started := make(chan struct{})
	waiter := &ctxWaitAgent{started: started}
	r := New("app", waiter)

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		_, runErr = r.Run(context.Background(), "user-1", "sess-1", core.NewTextContent("user", "hi"))
	}()

	<-started
	assert.True(t, r.Cancel("user-1", "sess-1"))
	wg.Wait()
	require.ErrorIs(t, runErr, context.Canceled)

	// no active turn anymore
	assert.False(t, r.Cancel("user-1", "sess-1"))
}

func TestRun_ParallelBranchFailureKeepsPartialResults(t *testing.T) {
	ok := &replyAgent{name: "ok", text: "partial result"}
	bad := &failingAgent{name: "bad"}

	r := New("app", agent.NewParallelAgent("fanout", ok, bad))

	turn, err := r.Run(context.Background(), "user-1", "sess-1", core.NewTextContent("user", "go"))
	require.Error(t, err)

	var branchErr *agent.BranchError
	require.ErrorAs(t, err, &branchErr)
	assert.Equal(t, []string{"bad"}, branchErr.Failed)

	// the surviving branch's event was persisted before the error surfaced
	sess, getErr := r.sessionStore.Get(context.Background(), "app", "user-1", "sess-1")
	require.NoError(t, getErr)
	texts := []string{}
	for _, ev := range sess.Events {
		if txt := ev.Text(); txt != "" && ev.Author != "user" {
			texts = append(texts, txt)
		}
	}
	assert.Equal(t, []string{"partial result"}, texts)
	require.NotNil(t, turn)
}

func TestRun_CompactionAfterInterval(t *testing.T) {
	summarizer := model.NewStubModel()
	summarizer.QueueText("summary of the first two turns")
	compactor, err := compaction.New(compaction.Config{Interval: 3, Overlap: 1},
		retry.NewInvoker(summarizer, retry.DefaultPolicy()))
	require.NoError(t, err)

	r := New("app", &replyAgent{name: "echoer", text: "reply"}, func(o *Options) {
		o.Compactor = compactor
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := r.Run(ctx, "user-1", "sess-1", core.NewTextContent("user", "hello"))
		require.NoError(t, err)
	}
	assert.Equal(t, 0, summarizer.CallCount(), "no compaction before the interval")

	turn, err := r.Run(ctx, "user-1", "sess-1", core.NewTextContent("user", "hello"))
	require.NoError(t, err)

	last := turn.Events[len(turn.Events)-1]
	require.True(t, last.IsCompaction())
	assert.Equal(t, "summary of the first two turns", last.Text())
	assert.Equal(t, "reply", turn.Reply, "compaction records never become the reply")

	sess, err := r.sessionStore.Get(ctx, "app", "user-1", "sess-1")
	require.NoError(t, err)
	assert.Len(t, sess.Events, 7, "full log keeps everything")

	active := sess.ActiveEvents()
	require.Len(t, active, 3, "record plus the overlap turn")
	assert.True(t, active[0].IsCompaction())
}

func TestRun_MemoryPreloadAndAutoIngest(t *testing.T) {
	mem := memory.NewInMemoryStore()

	// the exhausted stub echoes instructions, so the reply shows the
	// preloaded preamble injected ahead of the prompt
	assistant := newModelAgent(t, "assistant", model.NewStubModel(), func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText("Answer the user.")
	})

	r := New("app", assistant, func(o *Options) {
		o.MemoryStore = mem
		o.PreloadMemory = true
		o.AutoIngest = true
	})

	ctx := context.Background()
	_, err := r.Run(ctx, "user-1", "first-chat", core.NewTextContent("user", "My favorite color is blue-green"))
	require.NoError(t, err)

	results, err := mem.Search(ctx, "app", "user-1", "favorite color", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results, "turn was auto-ingested")

	turn, err := r.Run(ctx, "user-1", "second-chat", core.NewTextContent("user", "What is my favorite color?"))
	require.NoError(t, err)
	assert.Contains(t, turn.Reply, "blue-green", "recalled fragment reached the prompt")
	assert.Contains(t, turn.Reply, "Answer the user.")
}
