package engine

import (
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/mailcopilot/internal/contextstore"
)

// clampedBodyChars is the per-email body cutoff applied when the serialized
// context does not fit the configured token budget.
const clampedBodyChars = 2000

// budgeter keeps serialized context within the model's input window.
type budgeter struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// newBudgeter selects the tokenizer for the model, falling back to
// cl100k_base for unknown models. maxTokens <= 0 disables budgeting.
func newBudgeter(model string, maxTokens int) (*budgeter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &budgeter{tokenizer: enc, maxTokens: maxTokens}, nil
}

// contextContent serializes the snapshot, re-serializing with clamped email
// bodies when the full rendering exceeds the token budget.
func (b *budgeter) contextContent(snap contextstore.Snapshot) string {
	content := snap.Serialize(0)
	if content == "" || b.maxTokens <= 0 {
		return content
	}

	tokens := len(b.tokenizer.Encode(content, nil, nil))
	if tokens <= b.maxTokens {
		return content
	}

	slog.Warn("context over token budget, clamping email bodies",
		"tokens", tokens, "budget", b.maxTokens)
	return snap.Serialize(clampedBodyChars)
}
