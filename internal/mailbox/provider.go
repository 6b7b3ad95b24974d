// Package mailbox defines the contract with the host mail application and an
// in-memory implementation of it. The conversation engine only ever talks to
// the Provider interface; the real host (message display, compose windows,
// address books) lives outside this module.
package mailbox

import (
	"context"
	"errors"
	"time"
)

// ErrNoDisplayedEmail is returned when no message is currently open.
var ErrNoDisplayedEmail = errors.New("no email is currently displayed")

// Email is one message as the host exposes it. IsPrimary marks the message
// currently open in the host window.
type Email struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Author    string    `json:"author"`
	Date      time.Time `json:"date"`
	Body      string    `json:"body"`
	IsPrimary bool      `json:"is_primary,omitempty"`
}

// Contact is one address book entry.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AddressBook string `json:"address_book,omitempty"`
}

// Draft is the content handed to the host for draft creation.
type Draft struct {
	To      []string `json:"to,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// DraftRef identifies a draft created in the host.
type DraftRef struct {
	ID string `json:"id"`
}

// Provider is the capability surface the core consumes from the host mail
// application. All calls are suspension points: implementations may block on
// host RPC and must honor the context.
//
// CreateDraft is the background draft path; ComposeDraft opens a compose
// surface directly. The draft executor tries CreateDraft first and falls back
// to ComposeDraft, because the background path is not available from every
// window the conversation can run in.
type Provider interface {
	DisplayedEmail(ctx context.Context) (Email, error)
	SelectedEmails(ctx context.Context, activeTabsOnly bool) ([]Email, error)
	MessageBody(ctx context.Context, id string) (string, error)
	Contacts(ctx context.Context) ([]Contact, error)

	CreateDraft(ctx context.Context, draft Draft) (DraftRef, error)
	ComposeDraft(ctx context.Context, draft Draft) (DraftRef, error)

	ComposeBody(ctx context.Context) (string, error)
	SetComposeBody(ctx context.Context, body string) error
}
