// Package contextstore maintains the deduplicated working set of context
// items (emails, contacts, text selections) attached to the next outbound
// chat message. The store is shared mutable state between the UI layer and
// the conversation engine: the UI populates it, and only the engine clears it
// via the atomic snapshot-then-clear handoff in Take.
package contextstore

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/mailcopilot/internal/mailbox"
)

// Kind names one of the three context collections.
type Kind string

const (
	KindEmail     Kind = "email"
	KindContact   Kind = "contact"
	KindSelection Kind = "selection"
)

// tagLabelLimit is the display-label truncation width for context tags.
const tagLabelLimit = 10

// Selection is one captured text selection. Uniqueness is exact (Text, Source).
type Selection struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Context   string    `json:"context,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSelection captures a selection now, deriving its ID from the capture time.
func NewSelection(text, context, source string) Selection {
	now := time.Now()
	return Selection{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Text:      text,
		Context:   context,
		Source:    source,
		Timestamp: now,
	}
}

// Tag is a short presentational label describing one context item. Tags
// annotate the user's chat bubble and never influence serialization.
type Tag struct {
	Type      Kind   `json:"type"`
	Label     string `json:"label"`
	FullLabel string `json:"full_label"`
	Icon      string `json:"icon"`
}

// Snapshot is an immutable copy of the store contents, captured per request.
// Tool executors address emails by their 1-based position in the snapshot.
type Snapshot struct {
	Emails     []mailbox.Email
	Contacts   []mailbox.Contact
	Selections []Selection
}

// Store holds the context collections for one conversation window.
type Store struct {
	mu         sync.Mutex
	emails     []mailbox.Email
	contacts   []mailbox.Contact
	selections []Selection
	subs       []func()
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// Subscribe registers a callback invoked after every mutation. The callback
// runs outside the store lock and must not mutate the store.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := append([]func(){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// AddEmail inserts an email unless its ID is already present, in which case
// it logs and reports false. A duplicate carrying IsPrimary promotes the
// existing entry to primary, and a duplicate with a body fills an empty one.
// Ordering (primary first, then date descending) is re-applied on every
// mutation, not just at render time.
func (s *Store) AddEmail(e mailbox.Email) bool {
	s.mu.Lock()
	added := s.addEmailLocked(e)
	s.mu.Unlock()
	s.notify()
	return added
}

func (s *Store) addEmailLocked(e mailbox.Email) bool {
	for i := range s.emails {
		if s.emails[i].ID != e.ID {
			continue
		}
		slog.Info("email already in context", "id", e.ID, "subject", e.Subject)
		if e.IsPrimary && !s.emails[i].IsPrimary {
			s.emails[i].IsPrimary = true
		}
		if s.emails[i].Body == "" && e.Body != "" {
			s.emails[i].Body = e.Body
		}
		s.sortEmailsLocked()
		return false
	}

	s.emails = append(s.emails, e)
	s.sortEmailsLocked()
	slog.Info("email added to context", "id", e.ID, "subject", e.Subject, "primary", e.IsPrimary)
	return true
}

// AddSelectedEmails inserts a batch of emails, deduplicating both against the
// store and within the batch itself. It returns how many were actually added.
func (s *Store) AddSelectedEmails(list []mailbox.Email) int {
	s.mu.Lock()
	added := 0
	for _, e := range list {
		if s.addEmailLocked(e) {
			added++
		}
	}
	s.mu.Unlock()
	s.notify()
	return added
}

func (s *Store) sortEmailsLocked() {
	sort.SliceStable(s.emails, func(i, j int) bool {
		if s.emails[i].IsPrimary != s.emails[j].IsPrimary {
			return s.emails[i].IsPrimary
		}
		return s.emails[i].Date.After(s.emails[j].Date)
	})
}

// ReplaceContacts swaps in a new address book snapshot wholesale. The
// contacts collection never accumulates across fetches.
func (s *Store) ReplaceContacts(list []mailbox.Contact) {
	s.mu.Lock()
	s.contacts = append([]mailbox.Contact(nil), list...)
	s.mu.Unlock()
	s.notify()
	slog.Info("contacts added to context", "count", len(list))
}

// AddSelection inserts a text selection unless an entry with the identical
// (text, source) pair already exists.
func (s *Store) AddSelection(sel Selection) bool {
	s.mu.Lock()
	for _, existing := range s.selections {
		if existing.Text == sel.Text && existing.Source == sel.Source {
			s.mu.Unlock()
			slog.Info("selection already in context", "source", sel.Source)
			return false
		}
	}
	s.selections = append(s.selections, sel)
	s.mu.Unlock()
	s.notify()
	return true
}

// Remove deletes one entry from the named collection. An out-of-range index
// is a no-op.
func (s *Store) Remove(kind Kind, index int) {
	s.mu.Lock()
	switch kind {
	case KindEmail:
		if index >= 0 && index < len(s.emails) {
			s.emails = append(s.emails[:index], s.emails[index+1:]...)
		}
	case KindContact:
		if index >= 0 && index < len(s.contacts) {
			s.contacts = append(s.contacts[:index], s.contacts[index+1:]...)
		}
	case KindSelection:
		if index >= 0 && index < len(s.selections) {
			s.selections = append(s.selections[:index], s.selections[index+1:]...)
		}
	}
	s.mu.Unlock()
	s.notify()
}

// ClearAll empties all three collections. It is invoked right after context
// is captured into an outbound message, never before.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	s.notify()
	slog.Info("all context cleared after message sent")
}

func (s *Store) clearLocked() {
	s.emails = nil
	s.contacts = nil
	s.selections = nil
}

// Snapshot returns an immutable copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Emails:     append([]mailbox.Email(nil), s.emails...),
		Contacts:   append([]mailbox.Contact(nil), s.contacts...),
		Selections: append([]Selection(nil), s.selections...),
	}
}

// Take captures a snapshot and clears the store under a single lock
// acquisition, so no other mutation can interleave between snapshot and
// clear. The snapshot is the only copy retained for the request being built.
func (s *Store) Take() Snapshot {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.clearLocked()
	s.mu.Unlock()
	s.notify()
	return snap
}

// Serialize renders the full store contents; see Snapshot.Serialize.
func (s *Store) Serialize() string {
	return s.Snapshot().Serialize(0)
}

// Serialize produces the plain-text context block concatenated into the
// completion request: emails first, then contacts, then text selections, with
// the literal section headers preserved for reproducible prompts. It returns
// the empty string when the snapshot is empty. bodyLimit > 0 clamps each
// email body to that many runes.
func (sn Snapshot) Serialize(bodyLimit int) string {
	var b strings.Builder

	if len(sn.Emails) > 0 {
		b.WriteString("Here are the emails to analyze:\n\n")
		for i, e := range sn.Emails {
			body := e.Body
			if bodyLimit > 0 {
				body = clampRunes(body, bodyLimit)
			}
			fmt.Fprintf(&b, "Email %d:\nSubject: %s\nFrom: %s\nDate: %s\nBody: %s\n\n",
				i+1, e.Subject, e.Author, e.Date.Format(time.RFC1123Z), body)
		}
		b.WriteString("--- End of emails ---\n\n")
	}

	if len(sn.Contacts) > 0 {
		b.WriteString("Here are your contacts for email suggestions:\n\n")
		for i, c := range sn.Contacts {
			fmt.Fprintf(&b, "%d. %s - %s\n", i+1, c.Name, c.Email)
		}
		fmt.Fprintf(&b, "\n--- End of contacts (%d total) ---\n\n", len(sn.Contacts))
	}

	if len(sn.Selections) > 0 {
		b.WriteString("Here are text selections for reference:\n\n")
		for i, sel := range sn.Selections {
			fmt.Fprintf(&b, "Selection %d from %q:\n%q\n", i+1, sel.Source, sel.Text)
			if sel.Context != "" {
				fmt.Fprintf(&b, "Context: %s\n", sel.Context)
			}
			b.WriteString("\n")
		}
		b.WriteString("--- End of text selections ---\n\n")
	}

	return b.String()
}

// Empty reports whether the snapshot holds no context at all.
func (sn Snapshot) Empty() bool {
	return len(sn.Emails) == 0 && len(sn.Contacts) == 0 && len(sn.Selections) == 0
}

// Tags produces the display labels annotating the user's chat bubble with
// what context accompanied it. Purely presentational; never affects Serialize.
func (s *Store) Tags() []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tags []Tag
	for _, e := range s.emails {
		subject := e.Subject
		if subject == "" {
			subject = "(No Subject)"
		}
		tags = append(tags, Tag{
			Type:      KindEmail,
			Label:     truncateLabel(subject, tagLabelLimit),
			FullLabel: subject,
			Icon:      "✉",
		})
	}

	if n := len(s.contacts); n > 0 {
		label := fmt.Sprintf("%d contacts", n)
		if n == 1 {
			label = "1 contact"
		}
		tags = append(tags, Tag{Type: KindContact, Label: label, FullLabel: label, Icon: "⚇"})
	}

	for _, sel := range s.selections {
		tags = append(tags, Tag{
			Type:      KindSelection,
			Label:     fmt.Sprintf("%q", truncateLabel(sel.Text, tagLabelLimit)),
			FullLabel: fmt.Sprintf("%q from %s", sel.Text, sel.Source),
			Icon:      "▢",
		})
	}

	return tags
}

func truncateLabel(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func clampRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
