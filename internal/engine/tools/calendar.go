package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/mailcopilot/internal/contextstore"
	"github.com/user/mailcopilot/internal/engine"
	"github.com/user/mailcopilot/internal/ics"
	"github.com/user/mailcopilot/internal/types"
)

// calendarExecutor is a stub: no calendar is mutated. It acknowledges the
// event it would create and attaches an ICS rendering the user can import by
// hand. A real calendar collaborator would replace the acknowledgment.
type calendarExecutor struct{}

// NewCalendarEvent builds the create_calendar_event catalog entry.
func NewCalendarEvent() *engine.Tool {
	return &engine.Tool{
		ID:                  "calendarEvent",
		DisplayName:         "Calendar Event",
		Description:         "Prepare a calendar event from the conversation",
		Icon:                "📅",
		FunctionName:        "create_calendar_event",
		FunctionDescription: "Prepare a calendar event with the given title and time range",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "The event title"},
				"startTime": {"type": "string", "description": "Event start in RFC 3339 format"},
				"endTime": {"type": "string", "description": "Event end in RFC 3339 format"},
				"location": {"type": "string", "description": "Where the event takes place"},
				"description": {"type": "string", "description": "Free-text event details"},
				"attendees": {"type": "array", "items": {"type": "string"}, "description": "Attendee email addresses"}
			},
			"required": ["title", "startTime", "endTime"]
		}`),
		Usage: "When the user asks to schedule a meeting or create a calendar event, call create_calendar_event with the title and the start and end time in RFC 3339 format.",
		Exec:  &calendarExecutor{},
	}
}

func (c *calendarExecutor) Execute(_ context.Context, args json.RawMessage, _ contextstore.Snapshot) types.Result {
	var params struct {
		Title       string   `json:"title"`
		StartTime   string   `json:"startTime"`
		EndTime     string   `json:"endTime"`
		Location    string   `json:"location"`
		Description string   `json:"description"`
		Attendees   []string `json:"attendees"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return types.Errf("invalid arguments: %v", err)
	}

	if params.Title == "" {
		return types.Errf("title is required")
	}
	if params.StartTime == "" || params.EndTime == "" {
		return types.Errf("startTime and endTime are required")
	}

	start, err := time.Parse(time.RFC3339, params.StartTime)
	if err != nil {
		return types.Errf("invalid startTime: %v", err)
	}
	end, err := time.Parse(time.RFC3339, params.EndTime)
	if err != nil {
		return types.Errf("invalid endTime: %v", err)
	}
	if !end.After(start) {
		return types.Errf("endTime must be after startTime")
	}

	preview := ics.Encode([]ics.Event{{
		Start:       start,
		End:         end,
		Summary:     params.Title,
		Description: params.Description,
		Location:    params.Location,
	}})

	return types.Ok(map[string]any{
		"message": fmt.Sprintf("Would create calendar event %q from %s to %s (no calendar integration is connected; an ICS preview is attached)",
			params.Title, start.Format(time.RFC3339), end.Format(time.RFC3339)),
		"attendees": params.Attendees,
		"ics":       preview,
	})
}
