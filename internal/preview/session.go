// Package preview implements the live preview workflow: each open
// preview owns a sample-value set seeded by the synthesizer and asks
// the upstream engine for a render on every value change, degrading to
// the raw template bodies when rendering is unavailable.
package preview

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/maildeck/maildeck/internal/metrics"
	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/sample"
	"github.com/maildeck/maildeck/internal/session"
)

// Renderer produces the substituted preview for a template. The
// upstream client is the production implementation.
type Renderer interface {
	PreviewTemplate(ctx context.Context, sctx session.Context, templateID string, values map[string]string) (*model.Rendered, error)
}

// Snapshot is the externally visible state of a preview session.
// Rendered content must be treated as stale while Loading is true.
type Snapshot struct {
	Rendered model.Rendered    `json:"rendered"`
	Values   map[string]string `json:"values"`
	Loading  bool              `json:"loading"`
}

// Session is one open preview for one template. It owns its sample
// values exclusively; opening a preview for another template means
// opening another session, so values never bleed across templates.
//
// Renders are asynchronous and may resolve out of order. A per-session
// sequence number guards application: a completion is dropped whenever
// a newer render was initiated after it, so the visible state always
// reflects the most recently initiated request.
type Session struct {
	id       string
	tmpl     model.Template
	sctx     session.Context
	renderer Renderer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	values   map[string]string
	seq      uint64 // latest initiated render
	applied  uint64 // render whose result is currently visible
	closed   bool
	current  model.Rendered
	lastUsed time.Time
}

func newSession(id string, sctx session.Context, tmpl model.Template, renderer Renderer, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		tmpl:     tmpl,
		sctx:     sctx,
		renderer: renderer,
		logger:   logger.With("template_id", tmpl.ID),
		ctx:      ctx,
		cancel:   cancel,
		values:   sample.Synthesize(tmpl.Variables),
		current:  tmpl.RawRendered(),
		lastUsed: time.Now(),
	}

	s.mu.Lock()
	s.refreshLocked()
	s.mu.Unlock()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TemplateID returns the id of the previewed template.
func (s *Session) TemplateID() string { return s.tmpl.ID }

// SetValue updates one sample value and initiates a fresh render.
func (s *Session) SetValue(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.values[name] = value
	s.refreshLocked()
}

// SetValues replaces the whole sample-value set and initiates a fresh
// render. Keys absent from the template's declared variables are
// tolerated; the upstream engine ignores what it does not need.
func (s *Session) SetValues(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.values = maps.Clone(values)
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.refreshLocked()
}

// Snapshot returns the current rendered content, the sample values and
// whether a render is still in flight.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return Snapshot{
		Rendered: s.current,
		Values:   maps.Clone(s.values),
		Loading:  s.applied != s.seq,
	}
}

// Close tears the session down. Any in-flight render is cancelled and
// its result, should it still arrive, can no longer mutate state.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.seq++ // orphan whatever is in flight
	s.mu.Unlock()
	s.cancel()
}

// refreshLocked initiates an asynchronous render for the current
// values. Callers must hold s.mu.
func (s *Session) refreshLocked() {
	s.seq++
	seq := s.seq
	values := maps.Clone(s.values)
	s.lastUsed = time.Now()

	go s.render(seq, values)
}

func (s *Session) render(seq uint64, values map[string]string) {
	metrics.PreviewStarted()

	rendered, err := s.renderer.PreviewTemplate(s.ctx, s.sctx, s.tmpl.ID, values)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq != s.seq {
		// A newer render was initiated while this one was in
		// flight; its result is the only one allowed to land.
		metrics.PreviewStale()
		return
	}

	if err != nil {
		// Degraded preview: show the raw bodies, placeholders
		// literal. Not an error from the user's point of view.
		s.logger.Debug("preview render failed, serving raw template", "error", err)
		metrics.PreviewFallback()
		s.current = s.tmpl.RawRendered()
	} else {
		s.current = *rendered
	}
	s.applied = seq
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
