// Package engine orchestrates one user turn end to end: context snapshot,
// completion request, tool-call execution, and the follow-up completion that
// turns tool results into a natural-language answer.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/mailcopilot/internal/contextstore"
	"github.com/user/mailcopilot/internal/types"
	"github.com/user/mailcopilot/pkg/llm"
)

// missingKeyWarning is shown instead of attempting a network call when no
// credential is configured.
const missingKeyWarning = "⚠ Please set your OpenAI API key in Options to use AI features"

// ErrTurnInFlight is returned when Send is called while a turn is running.
// The turn lock is the sole mutual-exclusion device preventing overlapping
// turns; callers disable their send control for the duration.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// Config holds engine tuning.
type Config struct {
	// Model selects the tokenizer for context budgeting.
	Model string
	// MaxContextTokens caps the serialized context; <= 0 disables budgeting.
	MaxContextTokens int
}

// Engine drives the tool-orchestrated conversation loop. Conversation history
// does not persist across turns: each turn's request is built fresh from
// [system, context?, user], and subscribers keep whatever display history
// they want.
type Engine struct {
	provider llm.Provider
	creds    llm.CredentialSource
	store    *contextstore.Store
	registry *Registry
	budget   *budgeter

	turn *semaphore.Weighted

	mu        sync.Mutex
	listeners []func(Event)
}

// New creates an Engine over the given collaborators.
func New(provider llm.Provider, creds llm.CredentialSource, store *contextstore.Store, registry *Registry, cfg Config) (*Engine, error) {
	budget, err := newBudgeter(cfg.Model, cfg.MaxContextTokens)
	if err != nil {
		return nil, err
	}
	return &Engine{
		provider: provider,
		creds:    creds,
		store:    store,
		registry: registry,
		budget:   budget,
		turn:     semaphore.NewWeighted(1),
	}, nil
}

// Subscribe registers a transcript listener. Listeners run synchronously on
// the turn goroutine and must not call back into the engine.
func (e *Engine) Subscribe(fn func(Event)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

func (e *Engine) publish(ev Event) {
	e.mu.Lock()
	listeners := append([]func(Event){}, e.listeners...)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Send runs one user turn. An empty (after trim) message is a no-op: no
// transcript mutation, no network call. Transport and API errors surface as a
// "❌ Error: ..." system event and are also returned; the turn always ends
// with the lock released so the next send can proceed.
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Warn("empty message ignored")
		return nil
	}

	if !e.turn.TryAcquire(1) {
		return ErrTurnInFlight
	}
	defer e.turn.Release(1)

	// Pre-flight: never attempt the network without a credential. The client
	// re-reads the key itself when the request is issued. A failure to read
	// the credential store is an error, not a missing key.
	key, err := e.creds.APIKey(ctx)
	if err != nil {
		return e.fail(fmt.Errorf("reading API key: %w", err))
	}
	if strings.TrimSpace(key) == "" {
		slog.Warn("no API key configured")
		e.publish(Event{Kind: EventSystem, Text: missingKeyWarning})
		return nil
	}

	// Snapshot-then-clear: the tags and snapshot captured here are the only
	// copy retained for this request; a failed request must not lose them
	// back into the store.
	tags := e.store.Tags()
	e.publish(Event{Kind: EventUser, Text: text, Tags: tags})
	snap := e.store.Take()

	decls := e.registry.EnabledDeclarations()
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: buildSystemPrompt(e.registry.enabledTools())},
	}
	if content := e.budget.contextContent(snap); content != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	slog.Info("issuing completion request",
		"context_emails", len(snap.Emails),
		"context_contacts", len(snap.Contacts),
		"context_selections", len(snap.Selections),
		"tools", len(decls),
	)

	resp, err := e.provider.Complete(ctx, messages, decls)
	if err != nil {
		return e.fail(err)
	}

	if len(resp.ToolCalls) == 0 {
		e.publish(Event{Kind: EventAssistant, Text: assistantText(resp.Content)})
		return nil
	}

	// Tool phase: execute strictly in response order, isolating each call.
	history := append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	for _, call := range resp.ToolCalls {
		result := e.execute(ctx, call, snap)

		body, merr := json.Marshal(result)
		if merr != nil {
			body = []byte(`{"success":false,"error":"unserializable tool result"}`)
		}

		e.publish(Event{Kind: EventTool, Tool: call.Function.Name, Text: string(body)})
		history = append(history, llm.Message{
			Role:       llm.RoleTool,
			Content:    string(body),
			ToolCallID: call.ID,
		})
	}

	// Follow-up without tool declarations forces a natural-language summary.
	final, err := e.provider.Complete(ctx, history, nil)
	if err != nil {
		return e.fail(err)
	}

	e.publish(Event{Kind: EventAssistant, Text: assistantText(final.Content)})
	return nil
}

// execute dispatches one tool call. Argument parse failures, unknown
// functions, and executor panics all become structured error results so that
// one bad call never aborts its siblings or the follow-up request.
func (e *Engine) execute(ctx context.Context, call llm.ToolCall, snap contextstore.Snapshot) (result types.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool executor panicked", "function", call.Function.Name, "panic", r)
			result = types.Errf("tool %s failed: %v", call.Function.Name, r)
		}
	}()

	name := call.Function.Name
	tool, ok := e.registry.Lookup(name)
	if !ok {
		slog.Warn("unknown tool requested", "function", name)
		return types.Errf("Function %s is not implemented", name)
	}

	slog.Info("executing tool", "function", name, "call_id", call.ID)
	return tool.Exec.Execute(ctx, call.Function.Arguments, snap)
}

func (e *Engine) fail(err error) error {
	slog.Error("completion request failed", "error", err)
	e.publish(Event{Kind: EventSystem, Text: "❌ Error: " + err.Error()})
	return err
}

func assistantText(content string) string {
	if content == "" {
		return "No response received"
	}
	return content
}
