// Package identity issues the anonymous per-browser identity a player is
// known by: an opaque session id and a display name.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

// Storage keys. The KV holds exactly these two fields.
const (
	KeySessionID = "sessionId"
	KeyUsername  = "username"
)

var (
	ErrEmptyUsername   = errors.New("username is required")
	ErrUsernameTooLong = fmt.Errorf("username must be at most %d characters", models.MaxUsernameLength)
	ErrNoSession       = errors.New("no session")
)

// KV is session-scoped key/value storage.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Session is the identity a client plays under.
type Session struct {
	ID       uuid.UUID `json:"session_id"`
	Username string    `json:"username"`
}

// NormalizeUsername trims the name and checks its length in runes.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyUsername
	}
	if utf8.RuneCountInString(name) > models.MaxUsernameLength {
		return "", ErrUsernameTooLong
	}
	return name, nil
}

// Login stores username and returns the session, reusing the stored
// session id when one exists.
func Login(kv KV, username string) (Session, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return Session{}, err
	}

	id, err := storedID(kv)
	if err != nil {
		return Session{}, err
	}
	if id == uuid.Nil {
		id = uuid.New()
		if err := kv.Set(KeySessionID, id.String()); err != nil {
			return Session{}, fmt.Errorf("failed to store session id: %w", err)
		}
	}
	if err := kv.Set(KeyUsername, name); err != nil {
		return Session{}, fmt.Errorf("failed to store username: %w", err)
	}
	return Session{ID: id, Username: name}, nil
}

// Load restores the session. Both fields must be present.
func Load(kv KV) (Session, error) {
	id, err := storedID(kv)
	if err != nil {
		return Session{}, err
	}
	name, ok, err := kv.Get(KeyUsername)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read username: %w", err)
	}
	if id == uuid.Nil || !ok || name == "" {
		return Session{}, ErrNoSession
	}
	return Session{ID: id, Username: name}, nil
}

// Logout forgets both fields.
func Logout(kv KV) error {
	if err := kv.Delete(KeySessionID); err != nil {
		return fmt.Errorf("failed to delete session id: %w", err)
	}
	if err := kv.Delete(KeyUsername); err != nil {
		return fmt.Errorf("failed to delete username: %w", err)
	}
	return nil
}

func storedID(kv KV) (uuid.UUID, error) {
	raw, ok, err := kv.Get(KeySessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read session id: %w", err)
	}
	if !ok {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		// A corrupt id is treated as absent and replaced on next login.
		return uuid.Nil, nil
	}
	return id, nil
}
