// Package credentials persists username/password pairs in a JSON file.
//
// Passwords are stored and compared in clear text, matching the behaviour
// of the application this service replaces. Do not expose it beyond a
// trusted network without swapping in salted hashes.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrUserNotFound is returned by Verify for an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword is returned by Verify when the password does not match.
	ErrWrongPassword = errors.New("wrong password")
)

// Store is a file-backed username -> password table. The whole table is read
// on each check and rewritten on each registration. The mutex only guards
// this process; two processes registering the same name can still race.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store persisted at path. The file is created lazily.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Register adds username with password. It returns false when the username
// is already taken or the table cannot be written. email is accepted for
// interface compatibility and not stored.
func (s *Store) Register(username, email, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		slog.Error("loading credentials", "path", s.path, "error", err)
		return false
	}
	if _, exists := users[username]; exists {
		return false
	}

	users[username] = password
	if err := s.save(users); err != nil {
		slog.Error("saving credentials", "path", s.path, "error", err)
		return false
	}
	slog.Info("user registered", "username", username, "email_provided", email != "")
	return true
}

// Authenticate reports whether password exactly matches the stored one.
func (s *Store) Authenticate(username, password string) bool {
	return s.Verify(username, password) == nil
}

// Verify is Authenticate with a reason: ErrUserNotFound, ErrWrongPassword,
// or a read error. The table is reloaded to observe other writers.
func (s *Store) Verify(username, password string) error {
	s.mu.Lock()
	users, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	stored, ok := users[username]
	if !ok {
		return ErrUserNotFound
	}
	if stored != password {
		return ErrWrongPassword
	}
	return nil
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	users := map[string]string{}
	if len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return users, nil
}

// save writes to a temp file in the same directory and renames it over the
// table so readers never see a partial file.
func (s *Store) save(users map[string]string) error {
	data, err := json.Marshal(users)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
