package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/mailcopilot/internal/contextstore"
	"github.com/user/mailcopilot/internal/mailbox"
	"github.com/user/mailcopilot/internal/types"
	"github.com/user/mailcopilot/pkg/llm"
)

// mockProvider replays scripted responses and records every request.
type mockProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	errs      []error
	calls     []providerCall

	// block, when set, stalls Complete until released.
	block chan struct{}
}

type providerCall struct {
	messages []llm.Message
	tools    []llm.Tool
}

func (m *mockProvider) Complete(_ context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, providerCall{
		messages: append([]llm.Message(nil), messages...),
		tools:    append([]llm.Tool(nil), tools...),
	})
	i := len(m.calls) - 1
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return &llm.Response{Content: "ok"}, nil
}

// recordingExecutor captures the arguments and snapshot it was called with.
type recordingExecutor struct {
	mu     sync.Mutex
	calls  []json.RawMessage
	snaps  []contextstore.Snapshot
	result types.Result
	panics bool
}

func (r *recordingExecutor) Execute(_ context.Context, args json.RawMessage, snap contextstore.Snapshot) types.Result {
	r.mu.Lock()
	r.calls = append(r.calls, args)
	r.snaps = append(r.snaps, snap)
	r.mu.Unlock()
	if r.panics {
		panic("executor blew up")
	}
	return r.result
}

type recorded struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorded) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorded) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestEngine(t *testing.T, provider llm.Provider, creds llm.CredentialSource, tools ...*Tool) (*Engine, *contextstore.Store, *recorded) {
	t.Helper()

	store := contextstore.New()
	registry := NewRegistry(tools...)
	for _, tool := range tools {
		registry.SetEnabled(tool.ID, true)
	}

	eng, err := New(provider, creds, store, registry, Config{Model: "gpt-4o"})
	require.NoError(t, err)

	rec := &recorded{}
	eng.Subscribe(rec.record)
	return eng, store, rec
}

func TestSendEmptyMessageIsNoOp(t *testing.T) {
	provider := &mockProvider{}
	eng, _, rec := newTestEngine(t, provider, llm.StaticCredential("sk-test"))

	require.NoError(t, eng.Send(context.Background(), "   \n\t"))

	assert.Empty(t, rec.events)
	assert.Empty(t, provider.calls)
}

// failingCredentials simulates an unreadable credential store.
type failingCredentials struct{}

func (failingCredentials) APIKey(context.Context) (string, error) {
	return "", errors.New("open config.json: permission denied")
}

func TestSendCredentialReadErrorIsNotMissingKey(t *testing.T) {
	provider := &mockProvider{}
	eng, _, rec := newTestEngine(t, provider, failingCredentials{})

	err := eng.Send(context.Background(), "hello")
	require.Error(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventSystem, rec.events[0].Kind)
	assert.Equal(t, "❌ Error: reading API key: open config.json: permission denied", rec.events[0].Text)
	assert.NotContains(t, rec.events[0].Text, "set your OpenAI API key")
	assert.Empty(t, provider.calls)

	// The lock is released on the error path: the next send reaches the
	// credential check again instead of bouncing off the turn lock.
	err = eng.Send(context.Background(), "still here")
	assert.NotErrorIs(t, err, ErrTurnInFlight)
	assert.ErrorContains(t, err, "permission denied")
}

func TestSendWithoutKeyWarnsAndSkipsNetwork(t *testing.T) {
	provider := &mockProvider{}
	eng, _, rec := newTestEngine(t, provider, llm.StaticCredential(""))

	require.NoError(t, eng.Send(context.Background(), "hello"))

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventSystem, rec.events[0].Kind)
	assert.Equal(t, "⚠ Please set your OpenAI API key in Options to use AI features", rec.events[0].Text)
	assert.Empty(t, provider.calls, "no network call without a credential")
}

func TestSendPlainTextTurn(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "Hi there"}}}
	eng, _, rec := newTestEngine(t, provider, llm.StaticCredential("sk-test"))

	require.NoError(t, eng.Send(context.Background(), "hello"))

	assert.Equal(t, []string{EventUser, EventAssistant}, rec.kinds())
	assert.Equal(t, "Hi there", rec.events[1].Text)

	require.Len(t, provider.calls, 1)
	msgs := provider.calls[0].messages
	require.Len(t, msgs, 2, "system + user; no context message when store is empty")
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestSendEmptyAssistantContent(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: ""}}}
	eng, _, rec := newTestEngine(t, provider, llm.StaticCredential("sk-test"))

	require.NoError(t, eng.Send(context.Background(), "hello"))

	require.Len(t, rec.events, 2)
	assert.Equal(t, "No response received", rec.events[1].Text)
}

func TestSendAttachesContextAndClearsStore(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "noted"}}}
	eng, store, rec := newTestEngine(t, provider, llm.StaticCredential("sk-test"))

	store.AddEmail(mailbox.Email{
		ID:      "m1",
		Subject: "Budget numbers",
		Author:  "cfo@example.com",
		Date:    time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC),
		Body:    "Attached are the Q1 numbers.",
	})

	require.NoError(t, eng.Send(context.Background(), "what do you see"))

	require.Len(t, provider.calls, 1)
	msgs := provider.calls[0].messages
	require.Len(t, msgs, 3, "system + context + user")
	assert.Contains(t, msgs[1].Content, "Here are the emails to analyze:")
	assert.Contains(t, msgs[1].Content, "Budget numbers")

	// Snapshot-then-clear. The store holds nothing after the turn even
	// though the request carried the email.
	assert.True(t, store.Snapshot().Empty())

	require.GreaterOrEqual(t, len(rec.events), 1)
	assert.Equal(t, EventUser, rec.events[0].Kind)
	require.Len(t, rec.events[0].Tags, 1)
	assert.Equal(t, contextstore.KindEmail, rec.events[0].Tags[0].Type)
}

func TestSendToolCallTurn(t *testing.T) {
	exec := &recordingExecutor{result: types.Ok(map[string]any{"draft_id": "d1"})}
	tool := &Tool{
		ID:           "draftEmail",
		DisplayName:  "Draft Email",
		FunctionName: "create_email_draft",
		Parameters:   json.RawMessage(`{"type":"object"}`),
		Exec:         exec,
	}

	args := json.RawMessage(`{"subject":"Re: Hi","body":"Thanks"}`)
	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "create_email_draft", Arguments: args},
		}}},
		{Content: "Draft created for you."},
	}}

	eng, _, rec := newTestEngine(t, provider, llm.StaticCredential("sk-test"), tool)
	require.NoError(t, eng.Send(context.Background(), "draft a reply"))

	// Executor ran exactly once with the arguments from the response.
	require.Len(t, exec.calls, 1)
	assert.JSONEq(t, string(args), string(exec.calls[0]))

	// First request declares the tool, the follow-up must not.
	require.Len(t, provider.calls, 2)
	require.Len(t, provider.calls[0].tools, 1)
	assert.Equal(t, "create_email_draft", provider.calls[0].tools[0].Function.Name)
	assert.Empty(t, provider.calls[1].tools, "follow-up goes out without tools")

	// The follow-up history carries the assistant tool_calls message and a
	// tool message keyed by the call id.
	history := provider.calls[1].messages
	require.GreaterOrEqual(t, len(history), 4)
	asst := history[len(history)-2]
	assert.Equal(t, llm.RoleAssistant, asst.Role)
	require.Len(t, asst.ToolCalls, 1)
	toolMsg := history[len(history)-1]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `"success":true`)

	assert.Equal(t, []string{EventUser, EventTool, EventAssistant}, rec.kinds())
	assert.Equal(t, "create_email_draft", rec.events[1].Tool)
	assert.Equal(t, "Draft created for you.", rec.events[2].Text)
}

func TestSendUnknownFunctionBecomesStructuredResult(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:       "call_9",
			Function: llm.FunctionCall{Name: "delete_everything", Arguments: json.RawMessage(`{}`)},
		}}},
		{Content: "Sorry, I cannot do that."},
	}}

	eng, _, rec := newTestEngine(t, provider, llm.StaticCredential("sk-test"))
	require.NoError(t, eng.Send(context.Background(), "do it"))

	require.Len(t, provider.calls, 2, "follow-up still issued after an unknown function")
	toolMsg := provider.calls[1].messages[len(provider.calls[1].messages)-1]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Contains(t, toolMsg.Content, "Function delete_everything is not implemented")

	assert.Equal(t, []string{EventUser, EventTool, EventAssistant}, rec.kinds())
}

func TestSendIsolatesPanickingExecutor(t *testing.T) {
	boom := &recordingExecutor{panics: true}
	fine := &recordingExecutor{result: types.Ok(nil)}
	catalog := []*Tool{
		{ID: "boom", FunctionName: "boom_tool", Parameters: json.RawMessage(`{}`), Exec: boom},
		{ID: "fine", FunctionName: "fine_tool", Parameters: json.RawMessage(`{}`), Exec: fine},
	}

	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{
			{ID: "c1", Function: llm.FunctionCall{Name: "boom_tool", Arguments: json.RawMessage(`{}`)}},
			{ID: "c2", Function: llm.FunctionCall{Name: "fine_tool", Arguments: json.RawMessage(`{}`)}},
		}},
		{Content: "done"},
	}}

	eng, _, _ := newTestEngine(t, provider, llm.StaticCredential("sk-test"), catalog...)
	require.NoError(t, eng.Send(context.Background(), "run both"))

	assert.Len(t, boom.calls, 1)
	assert.Len(t, fine.calls, 1, "sibling call runs despite the panic")

	require.Len(t, provider.calls, 2)
	history := provider.calls[1].messages
	first := history[len(history)-2]
	assert.Contains(t, first.Content, "tool boom_tool failed")
	assert.Equal(t, "c1", first.ToolCallID)
}

func TestSendProviderErrorPublishesAndReleasesLock(t *testing.T) {
	provider := &mockProvider{errs: []error{errors.New("Incorrect API key provided")}}
	eng, _, rec := newTestEngine(t, provider, llm.StaticCredential("sk-test"))

	err := eng.Send(context.Background(), "hello")
	require.Error(t, err)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventSystem, last.Kind)
	assert.Equal(t, "❌ Error: Incorrect API key provided", last.Text)

	// The lock must be released: the next turn proceeds.
	require.NoError(t, eng.Send(context.Background(), "again"))
	assert.Len(t, provider.calls, 2)
}

func TestSendRejectsOverlappingTurn(t *testing.T) {
	provider := &mockProvider{block: make(chan struct{})}
	eng, _, _ := newTestEngine(t, provider, llm.StaticCredential("sk-test"))

	done := make(chan error, 1)
	go func() { done <- eng.Send(context.Background(), "slow one") }()

	// Wait for the first turn to reach the provider.
	require.Eventually(t, func() bool {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		return len(provider.calls) > 0
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, eng.Send(context.Background(), "second"), ErrTurnInFlight)

	close(provider.block)
	require.NoError(t, <-done)
}
