package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/mailcopilot/internal/format"
)

// Memory is an in-memory Provider. It backs the bundled chat REPL and tests;
// a deployment against a real mail host replaces it with an RPC-backed
// implementation of the same interface.
type Memory struct {
	mu          sync.Mutex
	emails      []Email
	displayedID string
	selected    map[string]bool
	contacts    []Contact
	drafts      []storedDraft
	composeBody string

	// settle is the delay between opening a compose surface and saving the
	// draft, mirroring the host's need for the window to be ready.
	settle time.Duration
}

type storedDraft struct {
	Ref   DraftRef
	Draft Draft
}

// mailboxFile is the on-disk JSON shape accepted by LoadFile.
type mailboxFile struct {
	Emails []struct {
		ID        string    `json:"id"`
		Subject   string    `json:"subject"`
		Author    string    `json:"author"`
		Date      time.Time `json:"date"`
		Body      string    `json:"body"`
		Displayed bool      `json:"displayed,omitempty"`
		Selected  bool      `json:"selected,omitempty"`
	} `json:"emails"`
	Contacts []Contact `json:"contacts"`
}

// NewMemory creates an empty in-memory mailbox.
func NewMemory() *Memory {
	return &Memory{
		selected: make(map[string]bool),
		settle:   100 * time.Millisecond,
	}
}

// LoadFile reads a JSON mailbox file into a Memory provider.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mailbox file: %w", err)
	}

	var file mailboxFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mailbox file: %w", err)
	}

	m := NewMemory()
	for _, e := range file.Emails {
		m.AddEmail(Email{
			ID:      e.ID,
			Subject: e.Subject,
			Author:  e.Author,
			Date:    e.Date,
			Body:    e.Body,
		})
		if e.Displayed {
			m.SetDisplayed(e.ID)
		}
		if e.Selected {
			m.Select(e.ID)
		}
	}
	m.SetContacts(file.Contacts)

	slog.Info("mailbox loaded", "path", path, "emails", len(file.Emails), "contacts", len(file.Contacts))
	return m, nil
}

// AddEmail stores an email. An email with a duplicate ID replaces the stored one.
func (m *Memory) AddEmail(e Email) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.emails {
		if m.emails[i].ID == e.ID {
			m.emails[i] = e
			return
		}
	}
	m.emails = append(m.emails, e)
}

// SetDisplayed marks the email with the given ID as the currently open one.
func (m *Memory) SetDisplayed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayedID = id
}

// Select adds an email ID to the current selection.
func (m *Memory) Select(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected[id] = true
}

// SetContacts replaces the address book snapshot.
func (m *Memory) SetContacts(contacts []Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append([]Contact(nil), contacts...)
}

// SetSettleDelay overrides the post-compose settle delay. Tests set it to zero.
func (m *Memory) SetSettleDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle = d
}

// Drafts returns the drafts created so far.
func (m *Memory) Drafts() []Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Draft, len(m.drafts))
	for i, d := range m.drafts {
		out[i] = d.Draft
	}
	return out
}

func (m *Memory) DisplayedEmail(ctx context.Context) (Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.displayedID == "" {
		return Email{}, ErrNoDisplayedEmail
	}
	for _, e := range m.emails {
		if e.ID == m.displayedID {
			e.IsPrimary = true
			return e, nil
		}
	}
	return Email{}, ErrNoDisplayedEmail
}

func (m *Memory) SelectedEmails(ctx context.Context, activeTabsOnly bool) ([]Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Email
	for _, e := range m.emails {
		if m.selected[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

// MessageBody returns the body of a stored email normalized to plain text.
// HTML bodies are converted to markdown before they reach the context store.
func (m *Memory) MessageBody(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.emails {
		if e.ID == id {
			return format.Normalize(e.Body), nil
		}
	}
	return "", fmt.Errorf("message %s not found", id)
}

func (m *Memory) Contacts(ctx context.Context) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Contact(nil), m.contacts...), nil
}

// CreateDraft writes a draft through the background path, waiting for the
// compose surface to settle before saving.
func (m *Memory) CreateDraft(ctx context.Context, draft Draft) (DraftRef, error) {
	m.mu.Lock()
	settle := m.settle
	m.mu.Unlock()

	if settle > 0 {
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			return DraftRef{}, ctx.Err()
		}
	}

	return m.saveDraft(draft), nil
}

// ComposeDraft opens a compose surface pre-filled with the draft content.
// In the in-memory host this is the same store, without the settle delay.
func (m *Memory) ComposeDraft(ctx context.Context, draft Draft) (DraftRef, error) {
	return m.saveDraft(draft), nil
}

func (m *Memory) saveDraft(draft Draft) DraftRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := DraftRef{ID: uuid.New().String()}
	m.drafts = append(m.drafts, storedDraft{Ref: ref, Draft: draft})
	slog.Debug("draft saved", "draft_id", ref.ID, "subject", draft.Subject)
	return ref
}

func (m *Memory) ComposeBody(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.composeBody, nil
}

func (m *Memory) SetComposeBody(ctx context.Context, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.composeBody = body
	return nil
}
