package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/user/mailcopilot/internal/contextstore"
	"github.com/user/mailcopilot/internal/engine"
	"github.com/user/mailcopilot/internal/mailbox"
	"github.com/user/mailcopilot/internal/types"
)

// draftExecutor creates an email draft in the host mailbox. The background
// draft path is tried first; if it fails (it is unavailable from some host
// windows), the direct compose path is the fallback. Both failing yields a
// structured error, never an escaped one.
type draftExecutor struct {
	box mailbox.Provider
}

// NewDraftEmail builds the create_email_draft catalog entry.
func NewDraftEmail(box mailbox.Provider) *engine.Tool {
	return &engine.Tool{
		ID:                  "draftEmail",
		DisplayName:         "Draft Email",
		Description:         "Create an email draft from the conversation",
		Icon:                "✉",
		FunctionName:        "create_email_draft",
		FunctionDescription: "Create an email draft in the user's mail client with the given subject, body and optional recipients",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"to": {"type": "array", "items": {"type": "string"}, "description": "Recipient email addresses"},
				"subject": {"type": "string", "description": "The email subject"},
				"body": {"type": "string", "description": "The full email body text"}
			},
			"required": ["subject", "body"]
		}`),
		Usage: "When the user asks you to draft, compose, write or reply to an email, call create_email_draft with the subject and body (and recipients when known). Do not print the draft as plain text when this function is available.",
		Exec:  &draftExecutor{box: box},
	}
}

func (d *draftExecutor) Execute(ctx context.Context, args json.RawMessage, _ contextstore.Snapshot) types.Result {
	var params struct {
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		Body    string   `json:"body"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return types.Errf("invalid arguments: %v", err)
	}

	// Mandatory fields short-circuit before any provider call.
	if params.Subject == "" {
		return types.Errf("subject is required")
	}
	if params.Body == "" {
		return types.Errf("body is required")
	}

	draft := mailbox.Draft{To: params.To, Subject: params.Subject, Body: params.Body}

	ref, err := d.box.CreateDraft(ctx, draft)
	if err == nil {
		return types.Ok(map[string]any{
			"draft_id": ref.ID,
			"message":  "Email draft created successfully",
		})
	}
	slog.Warn("background draft path failed, trying compose", "error", err)

	ref, fallbackErr := d.box.ComposeDraft(ctx, draft)
	if fallbackErr == nil {
		return types.Ok(map[string]any{
			"draft_id": ref.ID,
			"message":  "Email draft opened in a compose window",
		})
	}

	return types.Errf("failed to create draft: %v (compose fallback: %v)", err, fallbackErr)
}
