package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/maildeck/maildeck/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleLogin exchanges upstream credentials for a console session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := s.upstream.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn("login failed", "email", req.Email, "error", err)
		sendUpstreamError(w, err)
		return
	}

	sess, err := s.sessions.Create(result.Token, *result.User, s.cfg.Auth.SessionTTL)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		sendError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.setSessionCookie(w, sess.ID, sess.ExpiresAt)

	st := session.Reduce(session.State{Initialized: true}, session.LoginRequested{})
	st = session.Reduce(st, session.LoginSucceeded{User: result.User})
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    result.User,
		"state":   st,
	})
}

// handleAuthState bootstraps the console surface: it reports the
// authentication state for whatever cookie the request carries, without
// requiring one.
func (s *Server) handleAuthState(w http.ResponseWriter, r *http.Request) {
	ev := session.Initialized{}
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		sess, err := s.sessions.Get(cookie.Value)
		if err != nil {
			s.logger.Error("session lookup failed", "error", err)
			sendError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}
		if sess != nil && (sess.Token == "" || session.TokenValid(sess.Token)) {
			ev.Authenticated = true
			ev.User = &sess.User
		}
	}
	sendJSON(w, http.StatusOK, session.Reduce(session.State{}, ev))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := s.sessions.Delete(cookie.Value); err != nil {
			s.logger.Error("failed to delete session", "error", err)
		}
	}
	s.clearSessionCookie(w)
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	sendJSON(w, http.StatusOK, map[string]any{"user": sess.User})
}

// handleOIDCLogin starts the SSO code flow.
func (s *Server) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	url, _, err := s.oidc.AuthCodeURL()
	if err != nil {
		s.logger.Error("failed to build auth url", "error", err)
		sendError(w, http.StatusInternalServerError, "failed to start login")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// handleOIDCCallback finishes the SSO code flow. The resulting session
// carries no upstream token; requests fall back to the service token.
func (s *Server) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		sendError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	user, err := s.oidc.Exchange(r.Context(), state, code)
	if err != nil {
		s.logger.Warn("oidc exchange failed", "error", err)
		sendError(w, http.StatusUnauthorized, "login failed")
		return
	}

	sess, err := s.sessions.Create("", *user, s.cfg.Auth.SessionTTL)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		sendError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.setSessionCookie(w, sess.ID, sess.ExpiresAt)
	http.Redirect(w, r, "/", http.StatusFound)
}
