package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRoutes wires /api/login and /api/logout onto r. Every other route
// the caller registers under a handler wrapped in sessions.RequireSession
// is left to cmd/igloohubd, which owns the full route table.
func (s *Store) RegisterRoutes(r *mux.Router, sm *SessionManager, log *zap.Logger) {
	r.HandleFunc("/api/login", s.handleLogin(sm, log)).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", handleLogout(sm)).Methods(http.MethodPost)
}

func (s *Store) handleLogin(sm *SessionManager, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		u, err := s.Authenticate(req.Username, req.Password)
		if err != nil {
			log.Info("login failed", zap.String("username", req.Username))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := sm.Login(w, r, u); err != nil {
			log.Warn("failed to save session", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func handleLogout(sm *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sm.Logout(w, r)
		w.WriteHeader(http.StatusOK)
	}
}
