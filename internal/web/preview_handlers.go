package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"

	"github.com/maildeck/maildeck/internal/mailer"
	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/sample"
	"github.com/maildeck/maildeck/internal/session"
	"github.com/maildeck/maildeck/internal/upstream"
)

// fetchTemplate loads a template from the upstream, falling back to the
// cached snapshot when the store is unreachable.
func (s *Server) fetchTemplate(ctx context.Context, sctx session.Context, id string) (*model.Template, error) {
	tmpl, err := s.upstream.GetTemplate(ctx, sctx, id)
	if err == nil {
		return tmpl, nil
	}

	var se *upstream.StoreError
	if errors.As(err, &se) && (se.Status == 0 || se.Status >= 500) {
		if cached, cerr := s.cache.Get(sctx.AppID, id); cerr == nil && cached != nil {
			s.logger.Warn("upstream unavailable, using cached template", "template_id", id)
			return cached, nil
		}
	}
	return nil, err
}

// handlePreviewOnce renders a template once with the given values. A
// render failure is not an error: the raw bodies come back instead,
// flagged as a fallback.
func (s *Server) handlePreviewOnce(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)
	id := chi.URLParam(r, "id")

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tmpl, err := s.fetchTemplate(r.Context(), sctx, id)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	if values == nil {
		values = sample.Synthesize(tmpl.Variables)
	}

	rendered, err := s.upstream.PreviewTemplate(r.Context(), sctx, id, values)
	if err != nil {
		s.logger.Debug("preview render failed, serving raw template", "template_id", id, "error", err)
		raw := tmpl.RawRendered()
		sendJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"data":     raw,
			"values":   values,
			"fallback": true,
		})
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rendered,
		"values":  values,
	})
}

// handleOpenPreview opens a live preview session seeded with sample
// values and returns its first snapshot.
func (s *Server) handleOpenPreview(w http.ResponseWriter, r *http.Request) {
	sctx := s.upstreamContext(r)
	id := chi.URLParam(r, "id")

	tmpl, err := s.fetchTemplate(r.Context(), sctx, id)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	sess, err := s.previews.Open(sctx, *tmpl)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"sessionId":  sess.ID(),
		"templateId": sess.TemplateID(),
		"snapshot":   sess.Snapshot(),
	})
}

func (s *Server) handlePreviewSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.previews.Get(chi.URLParam(r, "sid"))
	if err != nil {
		sendUpstreamError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"snapshot": sess.Snapshot(),
	})
}

// handlePreviewSetValues replaces the session's sample values and kicks
// off a fresh render. The response snapshot is usually still loading;
// the frontend polls until it settles.
func (s *Server) handlePreviewSetValues(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.previews.Get(chi.URLParam(r, "sid"))
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	sess.SetValues(values)
	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"snapshot": sess.Snapshot(),
	})
}

func (s *Server) handleClosePreview(w http.ResponseWriter, r *http.Request) {
	if err := s.previews.Close(chi.URLParam(r, "sid")); err != nil {
		sendUpstreamError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}

type testSendRequest struct {
	To     string            `json:"to"`
	Values map[string]string `json:"values,omitempty"`
}

// handleTestSend renders a template and delivers it to one address
// through the configured relay. Render failures degrade to the raw
// bodies so the recipient still sees the template's structure.
func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	if !s.mailer.Enabled() {
		sendError(w, http.StatusNotImplemented, "smtp relay not configured")
		return
	}

	sctx := s.upstreamContext(r)
	id := chi.URLParam(r, "id")

	var req testSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.To); err != nil {
		sendError(w, http.StatusBadRequest, "invalid recipient address")
		return
	}

	tmpl, err := s.fetchTemplate(r.Context(), sctx, id)
	if err != nil {
		sendUpstreamError(w, err)
		return
	}

	values := req.Values
	if values == nil {
		values = sample.Synthesize(tmpl.Variables)
	}

	var rendered model.Rendered
	if res, err := s.upstream.PreviewTemplate(r.Context(), sctx, id, values); err != nil {
		s.logger.Debug("test send render failed, using raw template", "template_id", id, "error", err)
		rendered = tmpl.RawRendered()
	} else {
		rendered = *res
	}

	if err := s.mailer.SendTest(req.To, rendered); err != nil {
		if errors.Is(err, mailer.ErrDisabled) {
			sendError(w, http.StatusNotImplemented, "smtp relay not configured")
			return
		}
		s.logger.Error("test send failed", "to", req.To, "error", err)
		sendError(w, http.StatusBadGateway, "test send failed")
		return
	}

	s.recordAudit(r, "template.test_send", sctx.AppID, id, req.To)
	sendJSON(w, http.StatusOK, map[string]any{"success": true})
}
