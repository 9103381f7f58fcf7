package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maildeck/maildeck/internal/apps"
	"github.com/maildeck/maildeck/internal/preview"
	"github.com/maildeck/maildeck/internal/session"
	"github.com/maildeck/maildeck/internal/upstream"
)

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}

// sendUpstreamError maps collaborator failures onto console responses.
// Store failures become 502 unless the upstream itself said 4xx.
func sendUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNoAppSelected) {
		sendError(w, http.StatusConflict, "no app selected")
		return
	}
	if errors.Is(err, apps.ErrUnknownApp) {
		sendError(w, http.StatusNotFound, "unknown app")
		return
	}
	if errors.Is(err, preview.ErrSessionNotFound) {
		sendError(w, http.StatusNotFound, "preview session not found")
		return
	}

	var se *upstream.StoreError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusNotFound:
			sendError(w, http.StatusNotFound, "not found")
		case se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden:
			sendError(w, http.StatusUnauthorized, "upstream rejected credentials")
		case se.Status >= 400 && se.Status < 500:
			sendError(w, http.StatusBadRequest, se.Err.Error())
		default:
			sendError(w, http.StatusBadGateway, "template store unavailable")
		}
		return
	}

	sendError(w, http.StatusBadGateway, "upstream request failed")
}
