package web

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)
	list, err := s.catalog.List(r.Context(), sctx.Token)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
}

// handleSelectedApp resolves the user's working app: the saved
// selection when still listed, otherwise the first app.
func (s *Server) handleSelectedApp(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	sctx := s.upstreamContext(r)

	app, err := s.catalog.Resolve(r.Context(), sctx, sess.User.ID)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}
	if app == nil {
		sendError(w, http.StatusNotFound, "no apps available")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "data": app})
}

type selectAppRequest struct {
	AppID string `json:"appId"`
}

func (s *Server) handleSelectApp(w http.ResponseWriter, r *http.Request) {
	var req selectAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AppID == "" {
		sendError(w, http.StatusBadRequest, "appId is required")
		return
	}

	sess := currentSession(r)
	sctx := s.upstreamContext(r)

	app, err := s.catalog.Select(r.Context(), sctx, sess.User.ID, req.AppID)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	if err := s.sessions.SelectApp(sess.ID, app.ID); err != nil {
		s.logger.Error("failed to store app selection", "error", err)
		sendError(w, http.StatusInternalServerError, "failed to store selection")
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{"success": true, "data": app})
}
