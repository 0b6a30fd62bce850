// Package auth is Igloo's minimal local account store: bcrypt password
// hashes and role membership for the handful of users who administer one
// hub, persisted to auth.json and presented to the UI through
// gorilla/sessions cookies. It is a narrowed descendant of
// daemon_ref/cl.httpd's accountHandler, stripped of the goth/OAuth provider
// machinery and the appliancedb-backed multi-tenant account model neither
// of which has an equivalent in a single-hub system.
package auth

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"igloo/persist"
)

// AuthVersion is the current auth.json schema version.
const AuthVersion uint32 = 1

const authFilename = "auth.json"

// authMigrations is empty for the same reason persist.stateMigrations is:
// version 1 is this schema's genesis.
var authMigrations = map[uint32]persist.MigrationFunc{}

// User is one local account.
type User struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"password_hash"`
	Groups       []string  `json:"groups,omitempty"` // e.g. "admin"
	Created      time.Time `json:"created"`
}

// authFile is auth.json's on-disk shape.
type authFile struct {
	Version uint32 `json:"version"`
	Users   []User `json:"users"`
}

// defaultTestUsername is the account seeded when auth.json doesn't exist
// yet, so a freshly installed hub has something to log into.
const defaultTestUsername = "admin"

// Store is the hub's in-memory view of auth.json, kept in sync on every
// mutation by an immediate atomic rewrite (there's no batching here: account
// changes are rare compared to tree mutations, so the simplicity of
// "write through on every change" outweighs a batched-flush scheme).
type Store struct {
	mu    sync.RWMutex
	dir   string
	log   *zap.Logger
	users map[string]User
}

// Open loads auth.json from dir, or seeds a single flagged test account if
// the file doesn't exist yet (spec.md §4.8's "absent files seed ... a
// single test user flagged in the log").
func Open(dir string, log *zap.Logger) (*Store, error) {
	s := &Store{dir: dir, log: log, users: make(map[string]User)}

	path := filepath.Join(dir, authFilename)
	if !persist.FileExists(path) {
		hash, err := HashPassword(defaultTestUsername)
		if err != nil {
			return nil, errors.Wrap(err, "hashing default test password")
		}
		s.users[defaultTestUsername] = User{
			Username:     defaultTestUsername,
			PasswordHash: hash,
			Groups:       []string{"admin"},
			Created:      time.Now(),
		}
		log.Warn("no auth.json found, seeding a test account",
			zap.String("username", defaultTestUsername),
			zap.String("password", defaultTestUsername))
		return s, s.save()
	}

	raw, err := persist.LoadVersioned(path, AuthVersion, authMigrations)
	if err != nil {
		return nil, errors.Wrap(err, "loading auth.json")
	}
	var f authFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "parsing auth.json")
	}
	for _, u := range f.Users {
		s.users[u.Username] = u
	}
	return s, nil
}

// save atomically rewrites auth.json. Caller must hold s.mu (at least for
// read, since save only marshals the already-locked map).
func (s *Store) save() error {
	f := authFile{Version: AuthVersion}
	for _, u := range s.users {
		f.Users = append(f.Users, u)
	}
	payload, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return persist.SaveVersioned(filepath.Join(s.dir, authFilename), payload)
}

// Authenticate checks username/password against the stored hash, returning
// the matched User on success.
func (s *Store) Authenticate(username, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrNoSuchUser
	}
	if err := ComparePassword(u.PasswordHash, password); err != nil {
		return User{}, ErrBadPassword
	}
	return u, nil
}

// SetPassword creates or updates username's password hash, persisting the
// change immediately.
func (s *Store) SetPassword(username, password string, groups []string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[username]
	created := time.Now()
	if ok {
		created = existing.Created
	}
	s.users[username] = User{
		Username:     username,
		PasswordHash: hash,
		Groups:       groups,
		Created:      created,
	}
	return s.save()
}

// RemoveUser deletes an account, persisting the change.
func (s *Store) RemoveUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return ErrNoSuchUser
	}
	delete(s.users, username)
	return s.save()
}

// Users returns a snapshot of every account's username and groups (not the
// password hashes) for an administrative listing.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, User{Username: u.Username, Groups: u.Groups, Created: u.Created})
	}
	return out
}
