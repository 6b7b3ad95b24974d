package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/mailcopilot/internal/contextstore"
)

func TestCalendarRequiredFields(t *testing.T) {
	tool := NewCalendarEvent()

	tests := []struct {
		name string
		args string
		want string
	}{
		{"no title", `{"startTime":"2025-06-01T10:00:00Z","endTime":"2025-06-01T11:00:00Z"}`, "title is required"},
		{"no times", `{"title":"Standup"}`, "startTime and endTime are required"},
		{"bad start", `{"title":"Standup","startTime":"tomorrow","endTime":"2025-06-01T11:00:00Z"}`, "invalid startTime"},
		{"bad end", `{"title":"Standup","startTime":"2025-06-01T10:00:00Z","endTime":"later"}`, "invalid endTime"},
		{"end before start", `{"title":"Standup","startTime":"2025-06-01T11:00:00Z","endTime":"2025-06-01T10:00:00Z"}`, "endTime must be after startTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Exec.Execute(context.Background(), json.RawMessage(tt.args), contextstore.Snapshot{})
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
		})
	}
}

func TestCalendarStubAttachesICS(t *testing.T) {
	tool := NewCalendarEvent()

	args := `{
		"title": "Design review",
		"startTime": "2025-06-01T10:00:00Z",
		"endTime": "2025-06-01T11:00:00Z",
		"location": "Room 4",
		"attendees": ["a@example.com", "b@example.com"]
	}`
	res := tool.Exec.Execute(context.Background(), json.RawMessage(args), contextstore.Snapshot{})

	require.True(t, res.Success)
	assert.Contains(t, res.Payload["message"], `Would create calendar event "Design review"`)
	assert.Contains(t, res.Payload["message"], "no calendar integration is connected")

	ics, ok := res.Payload["ics"].(string)
	require.True(t, ok)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "SUMMARY:Design review")
	assert.Contains(t, ics, "LOCATION:Room 4")
	assert.Contains(t, ics, "DTSTART:20250601T100000Z")
}

func TestCalendarAttendeesPassedThrough(t *testing.T) {
	tool := NewCalendarEvent()

	args := `{"title":"1:1","startTime":"2025-06-01T10:00:00Z","endTime":"2025-06-01T10:30:00Z","attendees":["c@example.com"]}`
	res := tool.Exec.Execute(context.Background(), json.RawMessage(args), contextstore.Snapshot{})

	require.True(t, res.Success)
	assert.Equal(t, []string{"c@example.com"}, res.Payload["attendees"])
}
