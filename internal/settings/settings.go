// Package settings stores runtime-tunable values that override static
// configuration. Values live in the settings table so they survive
// restarts and can be changed without editing the config file.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Well-known keys.
const (
	KeySubtitleLanguages = "subtitles.languages"
	KeySubtitleLimit     = "subtitles.limit"
	KeyDeleteOriginals   = "pipeline.delete_originals"
	KeyPollInterval      = "pipeline.poll_interval"
	KeyPollMaxAttempts   = "pipeline.poll_max_attempts"
)

// ErrNotSet indicates no stored value exists for the key.
var ErrNotSet = errors.New("setting not set")

// Store reads and writes settings rows.
type Store struct {
	db *sql.DB
}

// NewStore creates a settings store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored value for key.
// Returns ErrNotSet if the key has no stored value.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotSet)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// Set stores or replaces the value for key.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// Delete removes a stored value, falling back to the static config.
// Deleting a key that is not set is a no-op.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

// All returns every stored setting keyed by name.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

// String returns the stored value for key, or fallback when unset.
func (s *Store) String(key, fallback string) string {
	v, err := s.Get(key)
	if err != nil {
		return fallback
	}
	return v
}

// Int returns the stored value for key parsed as an int, or fallback
// when unset or unparseable.
func (s *Store) Int(key string, fallback int) int {
	v, err := s.Get(key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Bool returns the stored value for key parsed as a bool, or fallback
// when unset or unparseable.
func (s *Store) Bool(key string, fallback bool) bool {
	v, err := s.Get(key)
	if err != nil {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Duration returns the stored value for key parsed as a duration, or
// fallback when unset or unparseable.
func (s *Store) Duration(key string, fallback time.Duration) time.Duration {
	v, err := s.Get(key)
	if err != nil {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
