package llm

import "context"

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
//
// When tools is non-empty the provider requests automatic tool selection;
// passing no tools forces a plain natural-language completion.
type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

// CredentialSource supplies the API credential for a single request. It is
// consulted fresh on every call so that credential changes in the settings
// store take effect without restarting anything.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticCredential is a CredentialSource that always returns the same key.
type StaticCredential string

func (s StaticCredential) APIKey(context.Context) (string, error) {
	return string(s), nil
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}
