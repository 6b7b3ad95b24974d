// Package tools implements the executors behind the built-in tool catalog:
// draft creation, the calendar event stub, and snapshot-indexed email
// summarization.
package tools

import (
	"github.com/user/mailcopilot/internal/engine"
	"github.com/user/mailcopilot/internal/mailbox"
)

// Catalog returns the built-in tool catalog in its fixed order. The mailbox
// provider is only used by the draft tool; the other executors are pure.
func Catalog(box mailbox.Provider) []*engine.Tool {
	return []*engine.Tool{
		NewDraftEmail(box),
		NewCalendarEvent(),
		NewSummarizeEmail(),
	}
}
