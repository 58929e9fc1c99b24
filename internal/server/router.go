// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"
	"time"

	"github.com/impa/website/internal/ipgeo"
	"github.com/impa/website/internal/server/handlers"
	"github.com/impa/website/internal/server/ratelimit"
)

// Options configures NewRouter.
type Options struct {
	Services *handlers.Services
	Config   *handlers.Config
	// CORSOrigin is the origin allowed to call the API; "*" allows any.
	CORSOrigin string
	// Geo resolves client countries for the login audit. May be nil.
	Geo *ipgeo.Checker
	// Tiers throttles submissions and admin writes. May be nil.
	Tiers *ratelimit.Tiers
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64
	// Hub streams content events at /api/events when set.
	Hub *Hub
	// MCP is served at /mcp when set.
	MCP http.Handler
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRouter creates and configures the HTTP router.
func NewRouter(o *Options) http.Handler {
	e := &env{svc: o.Services, geo: o.Geo, tiers: o.Tiers, maxBody: o.MaxBodyBytes}
	mux := &http.ServeMux{}

	ih := &handlers.InfoHandler{Cfg: o.Config, Now: o.Now}
	nh := &handlers.NewsHandler{Svc: o.Services}
	ph := &handlers.ProjectHandler{Svc: o.Services}
	ah := &handlers.AuthHandler{Svc: o.Services}
	ch := &handlers.ContactHandler{Svc: o.Services}
	admh := &handlers.AdminHandler{Svc: o.Services, Now: o.Now}
	pushh := &handlers.PushHandler{Svc: o.Services, Cfg: o.Config}
	sh := &handlers.SchemaHandler{}

	mux.Handle("GET /{$}", Wrap(ih.Info, e))
	mux.Handle("GET /api", Wrap(ih.Info, e))
	mux.Handle("GET /api/health", Wrap(ih.Health, e))

	// Auth
	mux.Handle("POST /api/auth/login", Wrap(ah.Login, e))
	mux.Handle("GET /api/auth/verify", WrapAuth(ah.Verify, e))
	mux.Handle("POST /api/auth/logout", WrapAuth(ah.Logout, e))

	// News
	mux.Handle("GET /api/news", Wrap(nh.List, e))
	mux.Handle("GET /api/news/search", Wrap(nh.Search, e))
	mux.Handle("GET /api/news/{id}", Wrap(nh.Get, e))
	mux.Handle("GET /api/news/{id}/html", Wrap(nh.HTML, e))
	mux.Handle("POST /api/news", WrapAuth(nh.Create, e))
	mux.Handle("PUT /api/news/{id}", WrapAuth(nh.Update, e))
	mux.Handle("PUT /api/news/{id}/photo", WrapAuth(nh.SetPhoto, e))
	mux.Handle("DELETE /api/news/{id}", WrapAuth(nh.Delete, e))

	// Projects
	mux.Handle("GET /api/projects", Wrap(ph.List, e))
	mux.Handle("GET /api/projects/search", Wrap(ph.Search, e))
	mux.Handle("GET /api/projects/{id}", Wrap(ph.Get, e))
	mux.Handle("POST /api/projects", WrapAuth(ph.Create, e))
	mux.Handle("PUT /api/projects/{id}", WrapAuth(ph.Update, e))
	mux.Handle("PUT /api/projects/{id}/photo", WrapAuth(ph.SetPhoto, e))
	mux.Handle("DELETE /api/projects/{id}", WrapAuth(ph.Delete, e))

	// Contact form
	mux.Handle("POST /api/contact", Wrap(ch.Submit, e))

	// Admin
	mux.Handle("GET /api/admin/export", WrapAuthFile(admh.Export, e))
	mux.Handle("GET /api/admin/export.xlsx", WrapAuthFile(admh.ExportXLSX, e))
	mux.Handle("POST /api/admin/import", WrapAuth(admh.Import, e))
	mux.Handle("GET /api/admin/info", WrapAuth(admh.Info, e))
	mux.Handle("GET /api/admin/health", WrapAuth(admh.Health, e))
	mux.Handle("POST /api/admin/reload", WrapAuth(admh.Reload, e))
	mux.Handle("POST /api/admin/refresh", WrapAuth(admh.Refresh, e))
	mux.Handle("POST /api/admin/reset", WrapAuth(admh.Reset, e))
	mux.Handle("GET /api/admin/contact", WrapAuth(ch.List, e))
	mux.Handle("DELETE /api/admin/contact/{id}", WrapAuth(ch.Delete, e))
	mux.Handle("GET /api/admin/logins", WrapAuth(admh.LoginAttempts, e))
	mux.Handle("GET /api/admin/history", WrapAuth(admh.History, e))

	// Web push
	mux.Handle("GET /api/push/key", Wrap(pushh.Key, e))
	mux.Handle("POST /api/push/subscribe", Wrap(pushh.Subscribe, e))
	mux.Handle("POST /api/push/unsubscribe", Wrap(pushh.Unsubscribe, e))

	mux.Handle("GET /api/schema/{name}", Wrap(sh.Get, e))

	if o.Hub != nil {
		mux.HandleFunc("GET /api/events", e.serveEvents(o.Hub))
	}
	if o.MCP != nil {
		mux.Handle("/mcp", o.MCP)
	}

	// Everything else, under /api/ or not, gets the JSON 404.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusNotFound, ih.NotFound())
	})

	return logRequests(cors(o.CORSOrigin, securityHeaders(mux)))
}
