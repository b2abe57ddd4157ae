// Package httptransport assembles the gateway's public HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rentgate/internal/auth/handler"
	authmw "rentgate/internal/platform/middleware"
	"rentgate/pkg/platform/middleware/metadata"
	"rentgate/pkg/platform/middleware/request"
	"rentgate/pkg/platform/middleware/requesttime"
	"rentgate/pkg/platform/middleware/session"
)

// AuthService is everything the router needs from the auth flow: the /auth
// handlers plus the token lookup that guards the API proxy.
type AuthService interface {
	handler.Service
	authmw.AccessTokenSource
}

// Deps are the pieces the router mounts. Proxy, Health and Metrics are optional.
type Deps struct {
	Auth    AuthService
	Proxy   http.Handler
	Health  http.HandlerFunc
	Metrics http.Handler
	Cookie  session.CookieConfig
	Logger  *slog.Logger
}

// NewRouter wires all public endpoints. Health and metrics sit outside the
// session middleware so probes never receive a cookie.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Logger(d.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	if d.Health != nil {
		r.Get("/healthz", d.Health)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(d.Cookie, d.Logger))
		handler.New(d.Auth, d.Logger).Register(r)
		if d.Proxy != nil {
			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireSession(d.Auth, d.Logger))
				r.Handle("/api/*", d.Proxy)
			})
		}
	})
	return r
}
