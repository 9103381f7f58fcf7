package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/session"
)

// upstreamToken mints the short-lived JWT the fake platform hands out
// on login.
func upstreamToken() string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}

// fakeUpstream simulates the remote template platform.
type fakeUpstream struct {
	mux       *chi.Mux
	templates map[string]model.Template
	down      atomic.Bool // every endpoint answers 503
	renderErr atomic.Bool // only the preview endpoint fails
}

func newFakeUpstream() *fakeUpstream {
	f := &fakeUpstream{
		mux: chi.NewRouter(),
		templates: map[string]model.Template{
			"tpl-1": {
				ID:           "tpl-1",
				Name:         "Order Export",
				Language:     "en",
				Subject:      "Export for {{shopDomain}}",
				HTMLTemplate: "<p>{{customerEmail}}</p>",
				TextTemplate: "{{customerEmail}}",
				Variables:    []string{"shopDomain", "customerEmail"},
				Version:      1,
				IsActive:     true,
			},
		},
	}

	f.mux.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"token":   upstreamToken(),
			"user":    map[string]string{"id": "u1", "email": req.Email, "role": "admin"},
		})
	})
	f.mux.Get("/apps", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]string{
				{"id": "banners-all-over", "name": "Banners All Over"},
				{"id": "order-exporter", "name": "Order Exporter"},
			},
		})
	})
	f.mux.Get("/{app}/templates", func(w http.ResponseWriter, r *http.Request) {
		list := make([]model.Template, 0, len(f.templates))
		for _, t := range f.templates {
			list = append(list, t)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": list})
	})
	f.mux.Get("/{app}/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		t, ok := f.templates[chi.URLParam(r, "id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": t})
	})
	f.mux.Post("/{app}/templates", func(w http.ResponseWriter, r *http.Request) {
		var payload model.TemplatePayload
		json.NewDecoder(r.Body).Decode(&payload)
		t := model.Template{ID: "tpl-new", Name: payload.Name, Language: payload.Language, Version: 1}
		f.templates[t.ID] = t
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": t})
	})
	f.mux.Post("/{app}/templates/{id}/preview", func(w http.ResponseWriter, r *http.Request) {
		if f.renderErr.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "render exploded"})
			return
		}
		var values map[string]string
		json.NewDecoder(r.Body).Decode(&values)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": model.Rendered{
				Subject:     "Export for " + values["shopDomain"],
				HTMLContent: "<p>" + values["customerEmail"] + "</p>",
				TextContent: values["customerEmail"],
			},
		})
	})

	return f
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.down.Load() {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	f.mux.ServeHTTP(w, r)
}

func newTestServer(t *testing.T, up *fakeUpstream) *Server {
	t.Helper()

	upstreamSrv := httptest.NewServer(up)
	t.Cleanup(upstreamSrv.Close)

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Upstream.BaseURL = upstreamSrv.URL
	cfg.Database.Path = filepath.Join(dir, "state.db")
	cfg.Cache.Path = filepath.Join(dir, "cache.db")
	cfg.Auth.SessionTTL = time.Hour
	cfg.Preview.IdleTimeout = time.Hour
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Second

	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { s.previews.Stop(); s.cache.Close(); s.db.Close() })
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/auth/login",
		map[string]string{"email": "admin@example.com", "password": "secret"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return m
}

func TestLoginAndProfile(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	cookie := login(t, s)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/auth/profile", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	if user["email"] != "admin@example.com" {
		t.Errorf("profile user = %v", user)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/auth/login",
		map[string]string{"email": "admin@example.com", "password": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/apps", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	cookie := login(t, s)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/auth/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/auth/profile", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("profile after logout = %d", rec.Code)
	}
}

func TestAppsAndSelection(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	cookie := login(t, s)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/apps", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list apps status = %d", rec.Code)
	}
	data := decodeBody(t, rec)["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("apps = %v", data)
	}
	first := data[0].(map[string]any)
	if first["icon"] == "" || first["color"] == "" {
		t.Errorf("app not decorated: %v", first)
	}

	// No saved selection: the first app wins.
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/apps/selected", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("selected status = %d", rec.Code)
	}
	sel := decodeBody(t, rec)["data"].(map[string]any)
	if sel["id"] != "banners-all-over" {
		t.Errorf("resolved = %v", sel)
	}

	// Select the other one; the choice sticks.
	rec = doJSON(t, s.Handler(), http.MethodPut, "/api/apps/selected",
		map[string]string{"appId": "order-exporter"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/apps/selected", nil, cookie)
	sel = decodeBody(t, rec)["data"].(map[string]any)
	if sel["id"] != "order-exporter" {
		t.Errorf("resolved after select = %v", sel)
	}

	// Unknown apps are rejected.
	rec = doJSON(t, s.Handler(), http.MethodPut, "/api/apps/selected",
		map[string]string{"appId": "nope"}, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown app status = %d", rec.Code)
	}
}

func TestListTemplates_CacheFallback(t *testing.T) {
	up := newFakeUpstream()
	s := newTestServer(t, up)
	cookie := login(t, s)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/apps/banners-all-over/templates", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}
	if stale, ok := decodeBody(t, rec)["stale"]; ok && stale == true {
		t.Error("fresh listing flagged stale")
	}

	// Upstream goes away: the cached snapshot is served, flagged stale.
	up.down.Store(true)
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/apps/banners-all-over/templates", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded list status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["stale"] != true {
		t.Error("degraded listing not flagged stale")
	}
	if len(body["data"].([]any)) != 1 {
		t.Errorf("cached data = %v", body["data"])
	}

	// An app never listed has no snapshot: the failure surfaces.
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/apps/order-exporter/templates", nil, cookie)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("uncached degraded list status = %d", rec.Code)
	}
}

func TestCreateTemplate_Validation(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	cookie := login(t, s)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/apps/banners-all-over/templates",
		map[string]string{"subject": "no name"}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/apps/banners-all-over/templates",
		map[string]string{"name": "X", "language": "tlh"}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad language status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/apps/banners-all-over/templates",
		map[string]string{"name": "X", "language": "de"}, cookie)
	if rec.Code != http.StatusCreated {
		t.Errorf("create status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPreviewOnce_Fallback(t *testing.T) {
	up := newFakeUpstream()
	s := newTestServer(t, up)
	cookie := login(t, s)

	// Healthy engine: substituted content, seeded from the synthesizer.
	rec := doJSON(t, s.Handler(), http.MethodPost,
		"/api/apps/banners-all-over/templates/tpl-1/preview", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	if data["subject"] != "Export for example-shop.myshopify.com" {
		t.Errorf("subject = %v", data["subject"])
	}
	if body["fallback"] == true {
		t.Error("healthy render flagged as fallback")
	}

	// Broken engine: raw bodies, placeholders intact, still 200.
	up.renderErr.Store(true)
	rec = doJSON(t, s.Handler(), http.MethodPost,
		"/api/apps/banners-all-over/templates/tpl-1/preview",
		map[string]string{"shopDomain": "x"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("fallback preview status = %d: %s", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	if body["fallback"] != true {
		t.Error("degraded render not flagged as fallback")
	}
	data = body["data"].(map[string]any)
	if data["subject"] != "Export for {{shopDomain}}" {
		t.Errorf("fallback subject = %v", data["subject"])
	}
}

func TestPreviewSessionLifecycle(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	cookie := login(t, s)

	rec := doJSON(t, s.Handler(), http.MethodPost,
		"/api/apps/banners-all-over/templates/tpl-1/preview-sessions", nil, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d: %s", rec.Code, rec.Body.String())
	}
	sid := decodeBody(t, rec)["sessionId"].(string)
	if sid == "" {
		t.Fatal("no session id")
	}

	// Poll until the first render settles.
	var snapshot map[string]any
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = doJSON(t, s.Handler(), http.MethodGet, "/api/preview-sessions/"+sid, nil, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("snapshot status = %d", rec.Code)
		}
		snapshot = decodeBody(t, rec)["snapshot"].(map[string]any)
		if snapshot["loading"] != true {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("render never settled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	values := snapshot["values"].(map[string]any)
	if values["customerEmail"] != "customer@example.com" {
		t.Errorf("seeded values = %v", values)
	}
	rendered := snapshot["rendered"].(map[string]any)
	if rendered["subject"] != "Export for example-shop.myshopify.com" {
		t.Errorf("rendered = %v", rendered)
	}

	rec = doJSON(t, s.Handler(), http.MethodPut, "/api/preview-sessions/"+sid+"/values",
		map[string]string{"shopDomain": "other.myshopify.com", "customerEmail": "x@y.z"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("set values status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodDelete, "/api/preview-sessions/"+sid, nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/preview-sessions/"+sid, nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("closed session snapshot status = %d", rec.Code)
	}
}

func TestTestSend_Disabled(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	cookie := login(t, s)

	rec := doJSON(t, s.Handler(), http.MethodPost,
		"/api/apps/banners-all-over/templates/tpl-1/test-send",
		map[string]string{"to": "user@example.com"}, cookie)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestAuthState(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/auth/state", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["initialized"] != true || body["authenticated"] != false {
		t.Errorf("anonymous state = %v", body)
	}

	cookie := login(t, s)
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/auth/state", nil, cookie)
	body = decodeBody(t, rec)
	if body["authenticated"] != true {
		t.Errorf("authenticated state = %v", body)
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "admin@example.com" {
		t.Errorf("user = %v", body["user"])
	}
}

func TestSession_DeadUpstreamToken(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	sess, err := s.sessions.Create(signed, session.User{ID: "u1", Email: "a@b.c"}, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	cookie := &http.Cookie{Name: sessionCookie, Value: sess.ID}
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/auth/profile", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// The dead session was removed, not just rejected.
	got, err := s.sessions.Get(sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("dead session still stored")
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeUpstream())
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
