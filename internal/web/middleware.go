package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maildeck/maildeck/internal/session"
	"github.com/maildeck/maildeck/internal/state"
)

const sessionCookie = "maildeck_session"

type ctxKey int

const sessionKey ctxKey = iota

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// sessionMiddleware resolves the console session cookie. Requests
// without a valid session are rejected; handlers behind it can rely on
// currentSession returning a non-nil session.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			sendError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		sess, err := s.sessions.Get(cookie.Value)
		if err != nil {
			s.logger.Error("session lookup failed", "error", err)
			sendError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}
		if sess == nil {
			sendError(w, http.StatusUnauthorized, "session expired")
			return
		}

		// A session with a dead upstream token is as good as expired;
		// don't bounce every proxied call off the upstream first.
		if sess.Token != "" && !session.TokenValid(sess.Token) {
			if err := s.sessions.Delete(sess.ID); err != nil {
				s.logger.Error("failed to delete session", "error", err)
			}
			sendError(w, http.StatusUnauthorized, "session expired")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentSession returns the console session resolved by the middleware.
func currentSession(r *http.Request) *state.ConsoleSession {
	sess, _ := r.Context().Value(sessionKey).(*state.ConsoleSession)
	return sess
}

// upstreamContext builds the per-request upstream context. The app comes
// from the route when present, otherwise from the session. Sessions
// without their own upstream token use the configured service token.
func (s *Server) upstreamContext(r *http.Request) session.Context {
	sctx := session.Context{}
	if sess := currentSession(r); sess != nil {
		sctx = sess.Context()
	}
	if sctx.Token == "" {
		sctx.Token = s.cfg.Upstream.APIKey
	}
	if app := chi.URLParam(r, "app"); app != "" {
		sctx.AppID = app
	}
	return sctx
}
