// Package session holds the authentication state machine and the
// per-request context threaded through every upstream call.
package session

import "errors"

// ErrNoAppSelected is returned before any upstream I/O when an
// app-scoped operation is attempted without a selected app.
var ErrNoAppSelected = errors.New("no app selected")

// Context carries the credentials and tenant scope for upstream calls.
// It is passed explicitly rather than read from ambient state, so every
// caller states which app it is operating on.
type Context struct {
	Token string
	AppID string
}

// RequireApp fails eagerly when the context has no app scope.
func (c Context) RequireApp() error {
	if c.AppID == "" {
		return ErrNoAppSelected
	}
	return nil
}

// User is the authenticated console user as reported by the upstream
// auth endpoint (or the OIDC provider).
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
