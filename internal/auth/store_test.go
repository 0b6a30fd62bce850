package auth

import (
	"testing"

	"go.uber.org/zap"
)

func TestOpenSeedsTestAccountWhenMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	u, err := s.Authenticate(defaultTestUsername, defaultTestUsername)
	if err != nil {
		t.Fatalf("Authenticate seeded account: %v", err)
	}
	if u.Username != defaultTestUsername {
		t.Fatalf("got %q, want %q", u.Username, defaultTestUsername)
	}
}

func TestOpenReloadsPersistedAccounts(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.SetPassword("alice", "hunter2", []string{"admin"}); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	s2, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := s2.Authenticate("alice", "hunter2"); err != nil {
		t.Fatalf("Authenticate alice after reload: %v", err)
	}
	// The seeded test account is written to auth.json alongside real
	// accounts; it only goes away if an operator explicitly removes it.
	if _, err := s2.Authenticate(defaultTestUsername, defaultTestUsername); err != nil {
		t.Fatalf("expected seeded test account to survive reload, got %v", err)
	}
}

func TestRemovingSeededTestAccountPersists(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.RemoveUser(defaultTestUsername); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}

	s2, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := s2.Authenticate(defaultTestUsername, defaultTestUsername); err != ErrNoSuchUser {
		t.Fatalf("got %v, want ErrNoSuchUser after removal persisted", err)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetPassword("bob", "correct-horse", nil); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, err := s.Authenticate("bob", "wrong"); err != ErrBadPassword {
		t.Fatalf("got %v, want ErrBadPassword", err)
	}
	if _, err := s.Authenticate("nobody", "whatever"); err != ErrNoSuchUser {
		t.Fatalf("got %v, want ErrNoSuchUser", err)
	}
}

func TestRemoveUser(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetPassword("carol", "pw", nil); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := s.RemoveUser("carol"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if _, err := s.Authenticate("carol", "pw"); err != ErrNoSuchUser {
		t.Fatalf("got %v, want ErrNoSuchUser", err)
	}
	if err := s.RemoveUser("carol"); err != ErrNoSuchUser {
		t.Fatalf("got %v, want ErrNoSuchUser for double-remove", err)
	}
}

func TestUsersListOmitsPasswordHash(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetPassword("dave", "pw", []string{"viewer"}); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	for _, u := range s.Users() {
		if u.Username == "dave" && u.PasswordHash != nil {
			t.Fatal("expected Users() to omit password hashes")
		}
	}
}
