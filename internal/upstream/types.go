package upstream

import (
	"github.com/maildeck/maildeck/internal/model"
	"github.com/maildeck/maildeck/internal/session"
)

// ErrorResponse is the upstream error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// App is a sub-application (tenant) as reported by the upstream.
type App struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Features *AppFeatures `json:"features,omitempty"`
}

// AppFeatures flags what the current user may do inside an app.
type AppFeatures struct {
	CanEditTemplates bool `json:"canEditTemplates,omitempty"`
	CanManageShops   bool `json:"canManageShops,omitempty"`
	CanViewMetrics   bool `json:"canViewMetrics,omitempty"`
}

// ListParams are the query parameters accepted by the template listing.
type ListParams struct {
	Page     int
	Limit    int
	Shop     string
	Category string
	IsActive *bool
	Search   string
}

// Pagination describes a page of the template listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// TemplatePage is one page of templates plus pagination metadata.
type TemplatePage struct {
	Data       []model.Template `json:"data"`
	Pagination *Pagination      `json:"pagination,omitempty"`
}

// LoginResult is the outcome of a successful credential login.
type LoginResult struct {
	Token string
	User  *session.User
}

type loginResponse struct {
	Success bool          `json:"success"`
	Token   string        `json:"token"`
	User    *session.User `json:"user"`
}

type profileResponse struct {
	User *session.User `json:"user"`
}

type appsResponse struct {
	Success bool  `json:"success"`
	Data    []App `json:"data"`
}

type appResponse struct {
	Success bool `json:"success"`
	Data    App  `json:"data"`
}

type templateResponse struct {
	Success bool           `json:"success"`
	Data    model.Template `json:"data"`
}

type templatesResponse struct {
	Success    bool             `json:"success"`
	Data       []model.Template `json:"data"`
	Pagination *Pagination      `json:"pagination"`
}

type previewResponse struct {
	Success bool           `json:"success"`
	Data    model.Rendered `json:"data"`
}
