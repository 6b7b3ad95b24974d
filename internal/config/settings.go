package config

import (
	"context"
)

// Settings reads credentials from the config file on every call, so a key
// saved mid-session takes effect on the next request without a restart.
type Settings struct {
	path string
}

// NewSettings creates a credential source over the config file at path.
func NewSettings(path string) *Settings {
	return &Settings{path: path}
}

// APIKey re-reads the config file and returns the current key. Environment
// overrides apply, same as at startup.
func (s *Settings) APIKey(ctx context.Context) (string, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return "", err
	}
	return cfg.LLM.APIKey, nil
}
