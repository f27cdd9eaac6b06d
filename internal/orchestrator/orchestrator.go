package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/threadloom/threadloom/internal/ai"
	"github.com/threadloom/threadloom/internal/assembler"
	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/graph"
	"github.com/threadloom/threadloom/internal/logging"
	"github.com/threadloom/threadloom/internal/memory"
	"github.com/threadloom/threadloom/internal/summarizer"
)

// state is one step of the turn pipeline. Transitions are strictly forward;
// stateError is reachable from every state before stateComplete.
type state int

const (
	stateAssembling state = iota
	stateStreaming
	stateSummarizing
	statePersisting
	stateSyncingMemory
	stateComplete
	stateError
	stateAborted
)

// Emitter receives the caller-facing events of one turn. Exactly one of
// Complete or Error is called, after which no further calls are made.
type Emitter interface {
	Token(text string)
	Complete(turnID, nodeID string)
	Error(code, message string)
}

// Request is one turn submission, already shape-validated by the handler.
type Request struct {
	ProjectID string
	UserID    string
	Provider  string
	Model     string
	UserText  string
}

// Options bound the pipeline's external calls.
type Options struct {
	SystemText     string
	MaxTokens      int
	StreamTimeout  time.Duration
	MemoryTimeout  time.Duration
	SummaryTimeout time.Duration
}

// Orchestrator drives one turn end to end: context assembly, provider
// streaming, summarization, persistence, graph linking, and the best-effort
// memory write-back.
type Orchestrator struct {
	store      *db.Store
	registry   *ai.Registry
	assembler  *assembler.Assembler
	summarizer *summarizer.Summarizer
	linker     *graph.Linker
	memory     *memory.Client
	opts       Options
}

func New(store *db.Store, registry *ai.Registry, asm *assembler.Assembler, sum *summarizer.Summarizer, linker *graph.Linker, mem *memory.Client, opts Options) *Orchestrator {
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 5 * time.Minute
	}
	if opts.MemoryTimeout <= 0 {
		opts.MemoryTimeout = 10 * time.Second
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = 20 * time.Second
	}
	return &Orchestrator{
		store: store, registry: registry, assembler: asm,
		summarizer: sum, linker: linker, memory: mem, opts: opts,
	}
}

// flow carries one turn's intermediate results between states.
type flow struct {
	req     Request
	emitter Emitter

	provider      ai.Provider
	assembled     assembler.Assembled
	assistantText string
	requestID     string
	latency       time.Duration
	title         *string
	summary       string
	turnID        string
	nodeID        string

	errCode    string
	errMessage string
}

// Run executes the turn pipeline. Ctx cancellation (caller abort) stops the
// stream without emitting a terminal event and without writing a Turn row.
func (o *Orchestrator) Run(ctx context.Context, req Request, emitter Emitter) {
	f := &flow{req: req, emitter: emitter}

	st := stateAssembling
	for {
		switch st {
		case stateAssembling:
			st = o.assemble(ctx, f)
		case stateStreaming:
			st = o.stream(ctx, f)
		case stateSummarizing:
			st = o.summarize(ctx, f)
		case statePersisting:
			st = o.persist(ctx, f)
		case stateSyncingMemory:
			st = o.syncMemory(f)
		case stateComplete:
			emitter.Complete(f.turnID, f.nodeID)
			return
		case stateError:
			emitter.Error(f.errCode, f.errMessage)
			return
		case stateAborted:
			logging.Infof("turn aborted by caller: project=%s", req.ProjectID)
			return
		}
	}
}

func (f *flow) fail(code, message string) state {
	f.errCode = code
	f.errMessage = message
	return stateError
}

func (o *Orchestrator) assemble(ctx context.Context, f *flow) state {
	project, err := o.store.GetProject(ctx, f.req.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return f.fail("not_found", "project not found")
		}
		if ctx.Err() != nil {
			return stateAborted
		}
		logging.Errorf("project lookup failed: %v", err)
		return f.fail("internal_error", "failed to load project")
	}
	if project.OwnerID != f.req.UserID {
		return f.fail("not_found", "project not found")
	}

	provider, err := o.registry.Get(f.req.Provider)
	if err != nil {
		return f.fail("bad_request", err.Error())
	}
	f.provider = provider

	err = o.store.UpsertMemorySession(ctx, db.UpsertMemorySessionParams{
		ProjectID:   f.req.ProjectID,
		UserScopeID: f.req.UserID,
		SessionID:   f.req.ProjectID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return stateAborted
		}
		logging.Errorf("memory session upsert failed: %v", err)
		return f.fail("internal_error", "failed to prepare turn")
	}

	pinnedNodes, err := o.store.PinnedSummaries(ctx, f.req.ProjectID)
	if err != nil {
		if ctx.Err() != nil {
			return stateAborted
		}
		logging.Errorf("pinned summaries lookup failed: %v", err)
		return f.fail("internal_error", "failed to prepare turn")
	}
	pinned := make([]string, 0, len(pinnedNodes))
	for _, n := range pinnedNodes {
		pinned = append(pinned, n.Summary)
	}

	memoryContext := ""
	if o.memory.Enabled() {
		memCtx, cancel := context.WithTimeout(ctx, o.opts.MemoryTimeout)
		memoryContext, err = o.memory.GetContext(memCtx, f.req.ProjectID, f.req.UserID)
		cancel()
		if err != nil {
			logging.Warnf("memory context retrieval failed, continuing without: %v", err)
			memoryContext = ""
		}
	}

	f.assembled = o.assembler.Assemble(ctx, assembler.Input{
		SystemText:      o.opts.SystemText,
		PinnedSummaries: pinned,
		MemoryContext:   memoryContext,
		UserText:        f.req.UserText,
	})
	return stateStreaming
}

func (o *Orchestrator) stream(ctx context.Context, f *flow) state {
	streamCtx, cancel := context.WithTimeout(ctx, o.opts.StreamTimeout)
	defer cancel()

	start := time.Now()
	events, err := f.provider.Stream(streamCtx, &ai.ChatRequest{
		Model:     f.req.Model,
		System:    f.assembled.System,
		Prompt:    f.assembled.Prompt,
		MaxTokens: o.opts.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return stateAborted
		}
		pe := ai.NormalizeError(f.req.Provider, err)
		return f.fail(pe.Code, pe.Message)
	}

	for event := range events {
		if ctx.Err() != nil {
			cancel()
			for range events {
			}
			return stateAborted
		}
		if event.RequestID != "" && f.requestID == "" {
			f.requestID = event.RequestID
		}
		switch event.Type {
		case ai.EventTypeText:
			if event.Text == "" {
				continue
			}
			f.assistantText += event.Text
			f.emitter.Token(event.Text)
		case ai.EventTypeError:
			if ctx.Err() != nil {
				return stateAborted
			}
			pe := ai.NormalizeError(f.req.Provider, event.Err)
			return f.fail(pe.Code, pe.Message)
		case ai.EventTypeDone:
			f.latency = time.Since(start)
		}
	}
	if ctx.Err() != nil {
		return stateAborted
	}
	if f.latency == 0 {
		f.latency = time.Since(start)
	}
	return stateSummarizing
}

func (o *Orchestrator) summarize(ctx context.Context, f *flow) state {
	sumCtx, cancel := context.WithTimeout(ctx, o.opts.SummaryTimeout)
	defer cancel()
	f.title, f.summary = o.summarizer.Summarize(sumCtx, f.req.UserText, f.assistantText)
	return statePersisting
}

func (o *Orchestrator) persist(ctx context.Context, f *flow) state {
	if ctx.Err() != nil {
		return stateAborted
	}

	params := db.CreateTurnParams{
		ID:              uuid.NewString(),
		ProjectID:       f.req.ProjectID,
		Provider:        f.req.Provider,
		Model:           f.req.Model,
		UserText:        f.req.UserText,
		AssistantText:   f.assistantText,
		InjectedContext: f.assembled.Injected,
		LatencyMs:       f.latency.Milliseconds(),
		RequestID:       f.requestID,
	}
	if c := f.assembled.Compression; c != nil {
		elapsedMs := c.Elapsed.Milliseconds()
		params.CompressionAggressiveness = &c.Aggressiveness
		params.CompressionMaxTokens = &c.MaxTokens
		params.CompressionMinTokens = &c.MinTokens
		params.CompressionInputTokens = &c.InputTokens
		params.CompressionOutputTokens = &c.OutputTokens
		params.CompressionRatio = &c.Ratio
		params.CompressionElapsedMs = &elapsedMs
	}

	turn, err := o.store.CreateTurn(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return stateAborted
		}
		logging.Errorf("turn persistence failed: %v", err)
		return f.fail("persistence_error", "failed to record the exchange")
	}
	f.turnID = turn.ID

	node, err := o.linker.LinkTurn(ctx, f.req.ProjectID, turn.ID, f.title, f.summary)
	if err != nil {
		logging.Errorf("graph linking failed: %v", err)
		return f.fail("persistence_error", "failed to record the exchange")
	}
	f.nodeID = node.ID
	return stateSyncingMemory
}

func (o *Orchestrator) syncMemory(f *flow) state {
	if !o.memory.Enabled() {
		return stateComplete
	}
	// The caller's context may already be gone; the write-back gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.MemoryTimeout)
	defer cancel()

	err := o.memory.AddMessages(ctx, f.req.ProjectID, f.req.UserID, []memory.Message{
		{Role: "user", Content: f.req.UserText},
		{Role: "assistant", Content: f.assistantText},
	})
	if err != nil {
		logging.Warnf("memory write-back failed: %v", err)
	}
	return stateComplete
}
