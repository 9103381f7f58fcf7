// Package apps decorates and orders the app catalog the upstream
// exposes, and remembers which app each user worked in last.
package apps

import (
	"context"

	"github.com/maildeck/maildeck/internal/session"
	"github.com/maildeck/maildeck/internal/upstream"
)

// Lister is the subset of the upstream client the catalog needs.
type Lister interface {
	ListApps(ctx context.Context, token string) ([]upstream.App, error)
}

// PreferenceStore persists the per-user app selection.
type PreferenceStore interface {
	Get(userID, key string) (string, error)
	Set(userID, key, value string) error
}

const prefSelectedApp = "selected_app"

// App is an upstream app with console display decoration.
type App struct {
	upstream.App
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Display decoration per app id. Unknown apps get the default entry.
var appIcons = map[string]string{
	"banners-all-over": "flag",
	"order-exporter":   "table",
	"review-booster":   "star",
	"default":          "grid",
}

var appColors = map[string]string{
	"banners-all-over": "#2563eb",
	"order-exporter":   "#16a34a",
	"review-booster":   "#d97706",
	"default":          "#64748b",
}

// Decorate attaches icon and color to an upstream app.
func Decorate(a upstream.App) App {
	icon, ok := appIcons[a.ID]
	if !ok {
		icon = appIcons["default"]
	}
	color, ok := appColors[a.ID]
	if !ok {
		color = appColors["default"]
	}
	return App{App: a, Icon: icon, Color: color}
}

// Catalog lists apps and resolves each user's working app.
type Catalog struct {
	lister Lister
	prefs  PreferenceStore
}

func NewCatalog(lister Lister, prefs PreferenceStore) *Catalog {
	return &Catalog{lister: lister, prefs: prefs}
}

// List returns the decorated catalog for the current user.
func (c *Catalog) List(ctx context.Context, token string) ([]App, error) {
	raw, err := c.lister.ListApps(ctx, token)
	if err != nil {
		return nil, err
	}
	apps := make([]App, 0, len(raw))
	for _, a := range raw {
		apps = append(apps, Decorate(a))
	}
	return apps, nil
}

// Resolve picks the working app for a user: the saved selection when it
// is still in the catalog, otherwise the first listed app. Returns nil
// when the catalog is empty.
func (c *Catalog) Resolve(ctx context.Context, sctx session.Context, userID string) (*App, error) {
	apps, err := c.List(ctx, sctx.Token)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, nil
	}

	saved, err := c.prefs.Get(userID, prefSelectedApp)
	if err != nil {
		return nil, err
	}
	if saved != "" {
		for i := range apps {
			if apps[i].ID == saved {
				return &apps[i], nil
			}
		}
	}
	return &apps[0], nil
}

// Select validates an app id against the catalog and persists it as the
// user's selection. Unknown ids are rejected.
func (c *Catalog) Select(ctx context.Context, sctx session.Context, userID, appID string) (*App, error) {
	apps, err := c.List(ctx, sctx.Token)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].ID == appID {
			if err := c.prefs.Set(userID, prefSelectedApp, appID); err != nil {
				return nil, err
			}
			return &apps[i], nil
		}
	}
	return nil, ErrUnknownApp
}
