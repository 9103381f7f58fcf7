package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/session"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 0)
}

var sctx = session.Context{Token: "tok", AppID: "banners-all-over"}

func TestLogin(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" {
			t.Errorf("email = %q", body["email"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"token":   "jwt-token",
			"user":    map[string]string{"id": "u1", "email": "a@b.c"},
		})
	})

	res, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "jwt-token" || res.User.ID != "u1" {
		t.Errorf("result = %+v", res)
	}
}

func TestLogin_UpstreamError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad credentials"})
	})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T %v, want *StoreError", err, err)
	}
	if se.Status != http.StatusUnauthorized {
		t.Errorf("status = %d", se.Status)
	}
}

func TestGetTemplates_QueryAndPath(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/banners-all-over/templates" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "10" || q.Get("isActive") != "true" || q.Get("search") != "export" {
			t.Errorf("query = %v", q)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []map[string]any{{"_id": "t1", "name": "Export"}},
			"pagination": map[string]int{
				"page": 2, "limit": 10, "total": 11, "totalPages": 2,
			},
		})
	})

	active := true
	page, err := c.GetTemplates(context.Background(), sctx, ListParams{
		Page: 2, Limit: 10, IsActive: &active, Search: "export",
	})
	if err != nil {
		t.Fatalf("get templates: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != "t1" {
		t.Errorf("data = %+v", page.Data)
	}
	if page.Pagination == nil || page.Pagination.Total != 11 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
}

func TestAppScoped_RequiresApp(t *testing.T) {
	c := NewClient("http://unreachable.invalid", 0)
	noApp := session.Context{Token: "tok"}

	// The precondition fails before any I/O; an unreachable base URL
	// proves nothing was dialed.
	if _, err := c.GetTemplates(context.Background(), noApp, ListParams{}); !errors.Is(err, session.ErrNoAppSelected) {
		t.Errorf("GetTemplates err = %v", err)
	}
	if _, err := c.PreviewTemplate(context.Background(), noApp, "t1", nil); !errors.Is(err, session.ErrNoAppSelected) {
		t.Errorf("PreviewTemplate err = %v", err)
	}
	if err := c.DeleteTemplate(context.Background(), noApp, "t1"); !errors.Is(err, session.ErrNoAppSelected) {
		t.Errorf("DeleteTemplate err = %v", err)
	}
}

func TestUpdateTemplate_UsesPatch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/banners-all-over/templates/t1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"_id": "t1", "version": 2},
		})
	})

	tmpl, err := c.UpdateTemplate(context.Background(), sctx, "t1", model.TemplatePayload{Name: "Renamed"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if tmpl.Version != 2 {
		t.Errorf("version = %d", tmpl.Version)
	}
}

func TestPreviewTemplate_WrapsFailuresAsRenderError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"success": false})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, tt.handler)
			_, err := c.PreviewTemplate(context.Background(), sctx, "t1", map[string]string{"x": "y"})
			var re *RenderError
			if !errors.As(err, &re) {
				t.Errorf("err = %T %v, want *RenderError", err, err)
			}
		})
	}
}

func TestPreviewTemplate_Success(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/banners-all-over/templates/t1/preview" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var values map[string]string
		json.NewDecoder(r.Body).Decode(&values)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"subject":     "Hello " + values["name"],
				"htmlContent": "<p>hi</p>",
				"textContent": "hi",
			},
		})
	})

	res, err := c.PreviewTemplate(context.Background(), sctx, "t1", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if res.Subject != "Hello Ada" || res.HTMLContent != "<p>hi</p>" {
		t.Errorf("rendered = %+v", res)
	}
}
