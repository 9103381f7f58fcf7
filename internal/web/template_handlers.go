package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/state"
	"github.com/maildeck/maildeck/internal/upstream"
)

func listParamsFromQuery(r *http.Request) upstream.ListParams {
	q := r.URL.Query()
	params := upstream.ListParams{
		Shop:     q.Get("shop"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		params.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		params.Limit = limit
	}
	if active := q.Get("isActive"); active != "" {
		if b, err := strconv.ParseBool(active); err == nil {
			params.IsActive = &b
		}
	}
	return params
}

// handleListTemplates proxies the upstream listing. When the store is
// unreachable the cached snapshot is served instead, flagged as stale.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)

	page, err := s.upstream.GetTemplates(r.Context(), sctx, listParamsFromQuery(r))
	if err != nil {
		var se *upstream.StoreError
		if errors.As(err, &se) && (se.Status == 0 || se.Status >= 500) {
			cached, cerr := s.cache.List(sctx.AppID)
			if cerr == nil && len(cached) > 0 {
				s.logger.Warn("upstream unavailable, serving cached templates", "app", sctx.AppID, "error", err)
				sendJSON(w, http.StatusOK, map[string]any{
					"success": true,
					"data":    cached,
					"stale":   true,
				})
				return
			}
		}
		sendUpstreamError(w, err)
		return
	}

	if err := s.cache.StoreList(sctx.AppID, page.Data); err != nil {
		s.logger.Error("failed to refresh template cache", "app", sctx.AppID, "error", err)
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       page.Data,
		"pagination": page.Pagination,
	})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)
	id := chi.URLParam(r, "id")

	tmpl, err := s.upstream.GetTemplate(r.Context(), sctx, id)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	if err := s.cache.StoreOne(sctx.AppID, *tmpl); err != nil {
		s.logger.Error("failed to cache template", "template_id", id, "error", err)
	}

	sendJSON(w, http.StatusOK, map[string]any{"success": true, "data": tmpl})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)

	var payload model.TemplatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if payload.Language != "" && !model.ValidLanguage(payload.Language) {
		sendError(w, http.StatusBadRequest, "unsupported language")
		return
	}

	tmpl, err := s.upstream.CreateTemplate(r.Context(), sctx, payload)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	if err := s.cache.StoreOne(sctx.AppID, *tmpl); err != nil {
		s.logger.Error("failed to cache template", "template_id", tmpl.ID, "error", err)
	}
	s.recordAudit(r, "template.create", sctx.AppID, tmpl.ID, tmpl.Name)

	sendJSON(w, http.StatusCreated, map[string]any{"success": true, "data": tmpl})
}

// handleUpdateTemplate forwards a partial update. The cache is only
// touched on confirmed success, so a failed save leaves both the store
// and the snapshot unchanged.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)
	id := chi.URLParam(r, "id")

	var payload model.TemplatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Language != "" && !model.ValidLanguage(payload.Language) {
		sendError(w, http.StatusBadRequest, "unsupported language")
		return
	}

	tmpl, err := s.upstream.UpdateTemplate(r.Context(), sctx, id, payload)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	if err := s.cache.StoreOne(sctx.AppID, *tmpl); err != nil {
		s.logger.Error("failed to cache template", "template_id", id, "error", err)
	}
	s.recordAudit(r, "template.update", sctx.AppID, id, tmpl.Name)

	sendJSON(w, http.StatusOK, map[string]any{"success": true, "data": tmpl})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)
	id := chi.URLParam(r, "id")

	if err := s.upstream.DeleteTemplate(r.Context(), sctx, id); err != nil {
		sendUpstreamError(w, err)
		return
	}

	if err := s.cache.Delete(sctx.AppID, id); err != nil {
		s.logger.Error("failed to evict cached template", "template_id", id, "error", err)
	}
	s.recordAudit(r, "template.delete", sctx.AppID, id, "")

	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDuplicateTemplate(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)
	id := chi.URLParam(r, "id")

	tmpl, err := s.upstream.DuplicateTemplate(r.Context(), sctx, id)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	if err := s.cache.StoreOne(sctx.AppID, *tmpl); err != nil {
		s.logger.Error("failed to cache template", "template_id", tmpl.ID, "error", err)
	}
	s.recordAudit(r, "template.duplicate", sctx.AppID, tmpl.ID, tmpl.Name)

	sendJSON(w, http.StatusCreated, map[string]any{"success": true, "data": tmpl})
}

func (s *Server) recordAudit(r *http.Request, action, appID, templateID, details string) {
	sess := currentSession(r)
	entry := &state.AuditEntry{
		Action:     action,
		AppID:      appID,
		TemplateID: templateID,
		Details:    details,
	}
	if sess != nil {
		entry.UserID = sess.User.ID
		entry.UserEmail = sess.User.Email
	}
	if err := s.audit.Add(entry); err != nil {
		s.logger.Error("failed to write audit entry", "action", action, "error", err)
	}
}
