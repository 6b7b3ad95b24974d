// Package ics renders events in a minimal calendar interchange format.
// Per-event UID, DTSTAMP, DTSTART, DTEND and SUMMARY are always emitted;
// free-text fields escape backslash, semicolon, comma and newline.
package ics

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is one calendar entry to encode. A zero UID gets a generated one.
type Event struct {
	UID         string
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
	Location    string
}

// now is swapped out in tests to pin DTSTAMP.
var now = time.Now

// Encode renders the events as a VCALENDAR text blob with CRLF line endings.
func Encode(events []Event) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//mailcopilot//EN\r\nCALSCALE:GREGORIAN\r\n")

	stamp := formatUTC(now())
	for _, ev := range events {
		uid := ev.UID
		if uid == "" {
			uid = uuid.New().String()
		}

		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString("UID:" + uid + "\r\n")
		b.WriteString("DTSTAMP:" + stamp + "\r\n")
		b.WriteString("DTSTART:" + formatUTC(ev.Start) + "\r\n")
		b.WriteString("DTEND:" + formatUTC(ev.End) + "\r\n")
		b.WriteString("SUMMARY:" + escapeText(ev.Summary) + "\r\n")
		if ev.Location != "" {
			b.WriteString("LOCATION:" + escapeText(ev.Location) + "\r\n")
		}
		if ev.Description != "" {
			b.WriteString("DESCRIPTION:" + escapeText(ev.Description) + "\r\n")
		}
		b.WriteString("END:VEVENT\r\n")
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

// formatUTC renders a timestamp as YYYYMMDDTHHMMSSZ.
func formatUTC(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\n", `\n`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
