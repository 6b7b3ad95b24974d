package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/user/mailcopilot/internal/contextstore"
	"github.com/user/mailcopilot/internal/types"
	"github.com/user/mailcopilot/pkg/llm"
)

// Executor runs one tool call. The snapshot is the context captured for the
// request the call belongs to; summarization indexes into it. Implementations
// return a structured Result for every outcome and never panic outward.
type Executor interface {
	Execute(ctx context.Context, args json.RawMessage, snap contextstore.Snapshot) types.Result
}

// Tool is one catalog entry: UI metadata, the function declaration shape sent
// to the completion API, per-tool system prompt guidance, and the executor.
type Tool struct {
	ID                  string
	DisplayName         string
	Description         string
	Icon                string
	FunctionName        string
	FunctionDescription string
	Parameters          json.RawMessage
	Usage               string
	Exec                Executor
}

// Definition is the UI-facing view of a catalog entry.
type Definition struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Enabled     bool   `json:"enabled"`
}

// Registry is the single source of truth for the tool catalog and its
// enablement state. The catalog is fixed at construction; only the enabled
// flags are session-mutable, and toggling them has no effect on requests
// already in flight (declarations are captured when a request is issued).
type Registry struct {
	mu      sync.RWMutex
	tools   []*Tool
	enabled map[string]bool
}

// NewRegistry creates a registry over the given catalog, all tools disabled.
func NewRegistry(tools ...*Tool) *Registry {
	return &Registry{
		tools:   tools,
		enabled: make(map[string]bool),
	}
}

// Definitions returns every catalog entry with UI metadata, in catalog order,
// regardless of enabled state.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Definition{
			ID:          t.ID,
			DisplayName: t.DisplayName,
			Description: t.Description,
			Icon:        t.Icon,
			Enabled:     r.enabled[t.ID],
		})
	}
	return out
}

// SetEnabled toggles a tool by catalog ID and reports whether the ID exists.
func (r *Registry) SetEnabled(id string, on bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tools {
		if t.ID == id {
			r.enabled[id] = on
			slog.Debug("tool toggled", "id", id, "enabled", on)
			return true
		}
	}
	return false
}

// EnabledDeclarations returns the wire-shaped declarations for exactly the
// enabled tools, in catalog order.
func (r *Registry) EnabledDeclarations() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []llm.Tool
	for _, t := range r.tools {
		if !r.enabled[t.ID] {
			continue
		}
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.FunctionName,
				Description: t.FunctionDescription,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// enabledTools returns the enabled catalog entries in catalog order.
func (r *Registry) enabledTools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Tool
	for _, t := range r.tools {
		if r.enabled[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// Lookup finds a tool by its wire function name. Lookup searches the whole
// catalog, not just the enabled subset; a response may legitimately name a
// tool that was enabled when its request was issued.
func (r *Registry) Lookup(functionName string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tools {
		if t.FunctionName == functionName {
			return t, true
		}
	}
	return nil, false
}
