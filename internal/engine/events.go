package engine

import "github.com/user/mailcopilot/internal/contextstore"

// Event kinds published to transcript subscribers.
const (
	EventUser      = "user"
	EventAssistant = "assistant"
	EventSystem    = "system"
	EventTool      = "tool"
)

// Event is one transcript entry. The engine owns the request payload for a
// turn; subscribers (a sidebar, the REPL) only render events.
type Event struct {
	Kind string
	Text string

	// Tags annotate a user event with the context that accompanied it.
	Tags []contextstore.Tag

	// Tool is the wire function name for a tool event; Text then holds the
	// JSON-encoded structured result.
	Tool string
}
