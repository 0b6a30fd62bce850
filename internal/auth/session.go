package auth

import (
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// sessionName is the cookie name, the equivalent of cl.httpd's "bg_login".
const sessionName = "igloo_session"

// SessionManager wraps a gorilla/sessions cookie store, scoped to the
// "username" value this package's own Login/CurrentUser calls read and
// write (unlike the teacher, which also stashes provisioning-flow scratch
// values in the same session -- Igloo's login flow is a single round trip,
// so there is nothing else to carry).
type SessionManager struct {
	store sessions.Store
}

// NewSessionManager builds a cookie-backed SessionManager from hashKey and
// blockKey. cmd/igloohubd passes a fresh GenerateKeys pair on every start and
// does not store it, so session cookies do not survive a hub restart.
func NewSessionManager(hashKey, blockKey []byte) *SessionManager {
	cs := sessions.NewCookieStore(hashKey, blockKey)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((7 * 24 * 60 * 60)),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: cs}
}

// GenerateKeys returns a fresh random hash/block key pair suitable for
// NewSessionManager, using gorilla/securecookie's CSPRNG-backed generator.
func GenerateKeys() (hashKey, blockKey []byte) {
	return securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)
}

// Login stamps a session cookie identifying u as the logged-in user.
func (m *SessionManager) Login(w http.ResponseWriter, r *http.Request, u User) error {
	session, _ := m.store.Get(r, sessionName)
	session.Values["username"] = u.Username
	return session.Save(r, w)
}

// Logout clears the session cookie.
func (m *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	session, err := m.store.Get(r, sessionName)
	if err != nil {
		// Get returns a new, empty session alongside a decode error for a
		// stale or tampered cookie; either way there's nothing to log out
		// of, so treat it as already-logged-out rather than failing.
		return nil
	}
	session.Options.MaxAge = -1
	session.Values = make(map[interface{}]interface{})
	return session.Save(r, w)
}

// CurrentUser returns the logged-in username, if any.
func (m *SessionManager) CurrentUser(r *http.Request) (string, bool) {
	session, err := m.store.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	username, ok := session.Values["username"].(string)
	return username, ok
}

// RequireSession is net/http middleware that rejects a request with no
// valid session cookie, the equivalent of the auth-gated route group
// cl.httpd builds with echo middleware.
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.CurrentUser(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
