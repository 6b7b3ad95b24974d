// Package format normalizes mail message bodies before they enter the
// context store. Hosts hand over whatever the message part contains, which
// for most modern mail is HTML; the model gets markdown text instead.
package format

import (
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var htmlMarkers = []string{"<html", "<body", "<div", "<p>", "<p ", "<br", "<table", "<span"}

// IsHTML reports whether a body looks like HTML markup rather than plain text.
func IsHTML(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range htmlMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Normalize converts an HTML body to markdown text. Plain-text bodies pass
// through untouched. Conversion failures fall back to the original body; a
// raw HTML context is still better than a missing one.
func Normalize(body string) string {
	if !IsHTML(body) {
		return strings.TrimSpace(body)
	}

	markdown, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		slog.Warn("html conversion failed, keeping raw body", "error", err)
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(markdown)
}
