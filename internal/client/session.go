// Package client provides the Go client for the SkyKeeper API: a persisted
// session context, a typed HTTP client, and a local snapshot cache that
// keeps a signed-in user's saved weather records consistent with the server.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// SessionContext is the persisted login state. It is written to disk after
// signup or login and presented as a bearer credential on every request
// until cleared by logout or expiry.
type SessionContext struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the session can still be used at the given time.
func (s *SessionContext) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}

// SessionStore persists the session context as a JSON file.
type SessionStore struct {
	path string
}

// NewSessionStore creates a store backed by the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load reads the persisted session. A missing file means no session and
// returns (nil, nil); a corrupt file is an error.
func (s *SessionStore) Load() (*SessionContext, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var sess SessionContext
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return &sess, nil
}

// Save writes the session to disk, creating parent directories as needed.
// The file is written 0600 since it holds a live bearer token.
func (s *SessionStore) Save(sess *SessionContext) error {
	if sess == nil {
		return errors.New("session must not be nil")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating session directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// Clear removes the persisted session. Clearing an absent session is a no-op.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
