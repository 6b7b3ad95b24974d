package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/user/mailcopilot/internal/contextstore"
	"github.com/user/mailcopilot/internal/engine"
	"github.com/user/mailcopilot/internal/types"
)

// Body sizes handed back for the follow-up completion to summarize from.
var summaryBodyLimits = map[string]int{
	"short":  500,
	"medium": 1500,
	"long":   0,
}

// summarizeExecutor is a pure computation over the request-scoped email
// snapshot: it returns the addressed email's fields so the follow-up
// completion can produce the summary text.
type summarizeExecutor struct{}

// NewSummarizeEmail builds the summarize_email catalog entry.
func NewSummarizeEmail() *engine.Tool {
	return &engine.Tool{
		ID:                  "summarizeEmail",
		DisplayName:         "Summarize Email",
		Description:         "Summarize one of the emails attached as context",
		Icon:                "🗎",
		FunctionName:        "summarize_email",
		FunctionDescription: "Fetch one of the context emails by its 1-based index for summarization",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"emailIndex": {"type": "integer", "minimum": 1, "description": "1-based index of the email in the attached context"},
				"length": {"type": "string", "enum": ["short", "medium", "long"], "description": "Desired summary length"}
			},
			"required": ["emailIndex"]
		}`),
		Usage: "When the user asks for a summary of an attached email, call summarize_email with the 1-based index of that email in the provided context.",
		Exec:  &summarizeExecutor{},
	}
}

func (s *summarizeExecutor) Execute(_ context.Context, args json.RawMessage, snap contextstore.Snapshot) types.Result {
	var params struct {
		EmailIndex int    `json:"emailIndex"`
		Length     string `json:"length"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return types.Errf("invalid arguments: %v", err)
	}

	// The index addresses the snapshot captured for this specific request.
	if params.EmailIndex < 1 || params.EmailIndex > len(snap.Emails) {
		return types.Errf("emailIndex %d is out of range: %d email(s) in context", params.EmailIndex, len(snap.Emails))
	}

	email := snap.Emails[params.EmailIndex-1]

	body := email.Body
	if limit, ok := summaryBodyLimits[params.Length]; ok && limit > 0 {
		runes := []rune(body)
		if len(runes) > limit {
			body = string(runes[:limit])
		}
	}

	return types.Ok(map[string]any{
		"subject": email.Subject,
		"from":    email.Author,
		"date":    email.Date.Format(time.RFC1123Z),
		"body":    body,
	})
}
