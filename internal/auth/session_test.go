package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionLoginLogoutRoundTrip(t *testing.T) {
	hashKey, blockKey := GenerateKeys()
	sm := NewSessionManager(hashKey, blockKey)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	if err := sm.Login(rec, req, User{Username: "alice"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	cookie := rec.Result().Cookies()
	if len(cookie) == 0 {
		t.Fatal("expected a session cookie to be set")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	for _, c := range cookie {
		req2.AddCookie(c)
	}
	username, ok := sm.CurrentUser(req2)
	if !ok || username != "alice" {
		t.Fatalf("got (%q, %v), want (alice, true)", username, ok)
	}

	rec2 := httptest.NewRecorder()
	if err := sm.Logout(rec2, req2); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	hashKey, blockKey := GenerateKeys()
	sm := NewSessionManager(hashKey, blockKey)

	called := false
	h := sm.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler should not run for an unauthenticated request")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
