// Package web is the console's HTTP surface: a JSON API consumed by the
// browser frontend, backed by the upstream template platform.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maildeck/maildeck/internal/apps"
	"github.com/maildeck/maildeck/internal/auth"
	"github.com/maildeck/maildeck/internal/cache"
	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/mailer"
	"github.com/maildeck/maildeck/internal/metrics"
	"github.com/maildeck/maildeck/internal/preview"
	"github.com/maildeck/maildeck/internal/state"
	"github.com/maildeck/maildeck/internal/upstream"
)

type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	http   *http.Server

	upstream *upstream.Client
	catalog  *apps.Catalog
	sessions *state.SessionRepository
	prefs    *state.PreferenceRepository
	audit    *state.AuditRepository
	cache    *cache.Cache
	previews *preview.Manager
	mailer   *mailer.Mailer
	oidc     *auth.OIDCProvider

	db *state.DB
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	database, err := state.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	templateCache, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template cache: %w", err)
	}

	var oidcProvider *auth.OIDCProvider
	if cfg.Auth.OIDC.Enabled {
		oidcProvider, err = auth.NewOIDCProvider(context.Background(), cfg.Auth.OIDC)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
		logger.Info("OIDC provider initialized", "issuer", cfg.Auth.OIDC.Issuer)
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	prefs := state.NewPreferenceRepository(database)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		upstream: client,
		catalog:  apps.NewCatalog(client, prefs),
		sessions: state.NewSessionRepository(database),
		prefs:    prefs,
		audit:    state.NewAuditRepository(database),
		cache:    templateCache,
		previews: preview.NewManager(client, cfg.Preview.IdleTimeout, logger),
		mailer:   mailer.New(cfg.SMTP),
		oidc:     oidcProvider,
		db:       database,
	}

	s.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		if m := metrics.Global(); m != nil {
			r.Method(http.MethodGet, s.cfg.Metrics.Path, m.Handler())
		}
	}

	r.Get("/api/auth/state", s.handleAuthState)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)
	if s.oidc != nil {
		r.Get("/auth/oidc/login", s.handleOIDCLogin)
		r.Get("/auth/callback", s.handleOIDCCallback)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/api/auth/profile", s.handleProfile)

		r.Get("/api/apps", s.handleListApps)
		r.Get("/api/apps/selected", s.handleSelectedApp)
		r.Put("/api/apps/selected", s.handleSelectApp)

		r.Route("/api/apps/{app}/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Patch("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Post("/{id}/duplicate", s.handleDuplicateTemplate)
			r.Post("/{id}/preview", s.handlePreviewOnce)
			r.Post("/{id}/preview-sessions", s.handleOpenPreview)
			r.Post("/{id}/test-send", s.handleTestSend)
		})

		r.Route("/api/preview-sessions/{sid}", func(r chi.Router) {
			r.Get("/", s.handlePreviewSnapshot)
			r.Put("/values", s.handlePreviewSetValues)
			r.Delete("/", s.handleClosePreview)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting console server", "addr", s.cfg.Server.ListenAddr)
	if s.cfg.Server.TLS.CertFile != "" {
		return s.http.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server and its owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.previews.Stop()

	err := s.http.Shutdown(ctx)
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	if derr := s.db.Close(); err == nil {
		err = derr
	}
	return err
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
