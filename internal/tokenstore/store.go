// Package tokenstore keeps the most recent Strava refresh token on disk between runs.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the persisted token record.
type State struct {
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UpdatedUTC   time.Time `json:"updated_utc"`
}

// Store reads and writes State at a fixed path. An empty path disables persistence.
type Store struct {
	path string
}

// New returns a store rooted at path.
func New(path string) *Store { return &Store{path: path} }

// Enabled reports whether a path is configured.
func (s *Store) Enabled() bool { return s != nil && s.path != "" }

// Load returns the stored refresh token, or "" when persistence is off or nothing was saved yet.
func (s *Store) Load() (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("decode token file: %w", err)
	}
	return st.RefreshToken, nil
}

// Save writes the refresh token with owner-only permissions.
func (s *Store) Save(refreshToken string, expiresAt, now time.Time) error {
	if !s.Enabled() {
		return nil
	}
	if refreshToken == "" {
		return fmt.Errorf("refusing to persist empty refresh token")
	}
	st := State{RefreshToken: refreshToken, UpdatedUTC: now.UTC()}
	if !expiresAt.IsZero() {
		exp := expiresAt.UTC()
		st.ExpiresAt = &exp
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
