// Package upstream is the HTTP client for the remote template platform:
// authentication, the app catalog, app-scoped template CRUD and the
// preview render endpoint. All rendering intelligence lives on the
// other side of this client.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/maildeck/maildeck/internal/metrics"
	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/session"
)

// Client talks to the upstream template platform API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upstream client. timeout zero means 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// request performs one HTTP round trip against the upstream API. op
// names the operation for metrics and matches the StoreError Op.
func (c *Client) request(ctx context.Context, op, method, path, token string, body any, result any) error {
	start := time.Now()
	err := c.do(ctx, method, path, token, body, result)

	outcome := "success"
	if err != nil {
		outcome = "error"
		if status := statusOf(err); status >= 400 && status < 500 {
			outcome = "rejected"
		}
	}
	metrics.ObserveUpstream(op, outcome, time.Since(start).Seconds())
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
			return &httpError{status: resp.StatusCode, message: http.StatusText(resp.StatusCode)}
		}
		return &httpError{status: resp.StatusCode, message: errResp.Error}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// httpError carries the status code of a non-2xx upstream response.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func statusOf(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.status
	}
	return 0
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var resp loginResponse
	if err := c.request(ctx, "login", http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return nil, &StoreError{Op: "login", Status: statusOf(err), Err: err}
	}
	if !resp.Success || resp.Token == "" || resp.User == nil {
		return nil, &StoreError{Op: "login", Err: errors.New("invalid response from server")}
	}
	return &LoginResult{Token: resp.Token, User: resp.User}, nil
}

// Profile fetches the current user for a token.
func (c *Client) Profile(ctx context.Context, token string) (*session.User, error) {
	var resp profileResponse
	if err := c.request(ctx, "profile", http.MethodGet, "/auth/profile", token, nil, &resp); err != nil {
		return nil, &StoreError{Op: "profile", Status: statusOf(err), Err: err}
	}
	if resp.User == nil {
		return nil, &StoreError{Op: "profile", Err: errors.New("empty profile response")}
	}
	return resp.User, nil
}

// ListApps returns the apps visible to the current user.
func (c *Client) ListApps(ctx context.Context, token string) ([]App, error) {
	var resp appsResponse
	if err := c.request(ctx, "list apps", http.MethodGet, "/apps", token, nil, &resp); err != nil {
		return nil, &StoreError{Op: "list apps", Status: statusOf(err), Err: err}
	}
	if !resp.Success {
		return nil, &StoreError{Op: "list apps", Err: errors.New("upstream reported failure")}
	}
	return resp.Data, nil
}

// GetApp returns a single app by id.
func (c *Client) GetApp(ctx context.Context, token, id string) (*App, error) {
	var resp appResponse
	if err := c.request(ctx, "get app", http.MethodGet, "/apps/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return nil, &StoreError{Op: "get app", Status: statusOf(err), Err: err}
	}
	return &resp.Data, nil
}

func (c *Client) templatePath(sctx session.Context, rest string) string {
	return "/" + url.PathEscape(sctx.AppID) + "/templates" + rest
}

// GetTemplates lists templates in the selected app.
func (c *Client) GetTemplates(ctx context.Context, sctx session.Context, params ListParams) (*TemplatePage, error) {
	if err := sctx.RequireApp(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Shop != "" {
		q.Set("shop", params.Shop)
	}
	if params.Category != "" {
		q.Set("category", params.Category)
	}
	if params.IsActive != nil {
		q.Set("isActive", strconv.FormatBool(*params.IsActive))
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}

	path := c.templatePath(sctx, "")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp templatesResponse
	if err := c.request(ctx, "list templates", http.MethodGet, path, sctx.Token, nil, &resp); err != nil {
		return nil, &StoreError{Op: "list templates", Status: statusOf(err), Err: err}
	}
	return &TemplatePage{Data: resp.Data, Pagination: resp.Pagination}, nil
}

// GetTemplate fetches a single template by id.
func (c *Client) GetTemplate(ctx context.Context, sctx session.Context, id string) (*model.Template, error) {
	if err := sctx.RequireApp(); err != nil {
		return nil, err
	}
	var resp templateResponse
	if err := c.request(ctx, "get template", http.MethodGet, c.templatePath(sctx, "/"+url.PathEscape(id)), sctx.Token, nil, &resp); err != nil {
		return nil, &StoreError{Op: "get template", Status: statusOf(err), Err: err}
	}
	return &resp.Data, nil
}

// CreateTemplate submits a new template.
func (c *Client) CreateTemplate(ctx context.Context, sctx session.Context, payload model.TemplatePayload) (*model.Template, error) {
	if err := sctx.RequireApp(); err != nil {
		return nil, err
	}
	var resp templateResponse
	if err := c.request(ctx, "create template", http.MethodPost, c.templatePath(sctx, ""), sctx.Token, payload, &resp); err != nil {
		return nil, &StoreError{Op: "create template", Status: statusOf(err), Err: err}
	}
	return &resp.Data, nil
}

// UpdateTemplate submits a partial update. The upstream bumps the
// version counter only on confirmed success; a failed update leaves the
// persisted template untouched.
func (c *Client) UpdateTemplate(ctx context.Context, sctx session.Context, id string, payload model.TemplatePayload) (*model.Template, error) {
	if err := sctx.RequireApp(); err != nil {
		return nil, err
	}
	var resp templateResponse
	if err := c.request(ctx, "update template", http.MethodPatch, c.templatePath(sctx, "/"+url.PathEscape(id)), sctx.Token, payload, &resp); err != nil {
		return nil, &StoreError{Op: "update template", Status: statusOf(err), Err: err}
	}
	return &resp.Data, nil
}

// DeleteTemplate removes a template.
func (c *Client) DeleteTemplate(ctx context.Context, sctx session.Context, id string) error {
	if err := sctx.RequireApp(); err != nil {
		return err
	}
	if err := c.request(ctx, "delete template", http.MethodDelete, c.templatePath(sctx, "/"+url.PathEscape(id)), sctx.Token, nil, nil); err != nil {
		return &StoreError{Op: "delete template", Status: statusOf(err), Err: err}
	}
	return nil
}

// DuplicateTemplate copies a template within the same app.
func (c *Client) DuplicateTemplate(ctx context.Context, sctx session.Context, id string) (*model.Template, error) {
	if err := sctx.RequireApp(); err != nil {
		return nil, err
	}
	var resp templateResponse
	if err := c.request(ctx, "duplicate template", http.MethodPost, c.templatePath(sctx, "/"+url.PathEscape(id)+"/duplicate"), sctx.Token, nil, &resp); err != nil {
		return nil, &StoreError{Op: "duplicate template", Status: statusOf(err), Err: err}
	}
	return &resp.Data, nil
}

// PreviewTemplate asks the upstream engine to render a template with
// the given sample values. Values may be partial or carry extraneous
// keys; the engine tolerates both. Any failure comes back as a
// *RenderError so callers can degrade to the raw bodies.
func (c *Client) PreviewTemplate(ctx context.Context, sctx session.Context, id string, values map[string]string) (*model.Rendered, error) {
	if err := sctx.RequireApp(); err != nil {
		return nil, err
	}
	var resp previewResponse
	if err := c.request(ctx, "preview template", http.MethodPost, c.templatePath(sctx, "/"+url.PathEscape(id)+"/preview"), sctx.Token, values, &resp); err != nil {
		return nil, &RenderError{Status: statusOf(err), Err: err}
	}
	if !resp.Success {
		return nil, &RenderError{Err: errors.New("upstream reported render failure")}
	}
	return &resp.Data, nil
}
