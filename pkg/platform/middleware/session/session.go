// Package session binds every request to a browser session id carried in an
// HttpOnly cookie. The id scopes the server-side token storage.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	id "rentgate/pkg/domain"
	"rentgate/pkg/requestcontext"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

const defaultCookieName = "rentgate_sid"

type cookieConfigKey struct{}

// Middleware reads the session cookie and issues a fresh one when it is missing or
// malformed. SameSite=Lax is required so the cookie survives the top-level redirect
// back from the identity provider.
func Middleware(cfg CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.Name == "" {
		cfg.Name = defaultCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := fromRequest(r, cfg.Name)
			if !ok {
				sid = id.NewSessionID()
				http.SetCookie(w, cookie(cfg, sid))
				if logger != nil {
					logger.DebugContext(r.Context(), "issued session cookie",
						"request_id", requestcontext.RequestID(r.Context()),
					)
				}
			}
			ctx := context.WithValue(r.Context(), cookieConfigKey{}, cfg)
			next.ServeHTTP(w, r.WithContext(requestcontext.WithSessionID(ctx, sid)))
		})
	}
}

// Rotate replaces the session cookie with one carrying sid. It reports false when
// the request did not pass through Middleware, in which case nothing is written.
func Rotate(w http.ResponseWriter, r *http.Request, sid id.SessionID) bool {
	cfg, ok := r.Context().Value(cookieConfigKey{}).(CookieConfig)
	if !ok {
		return false
	}
	http.SetCookie(w, cookie(cfg, sid))
	return true
}

func fromRequest(r *http.Request, name string) (id.SessionID, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return id.SessionID{}, false
	}
	sid, err := id.ParseSessionID(c.Value)
	if err != nil {
		return id.SessionID{}, false
	}
	return sid, true
}

func cookie(cfg CookieConfig, sid id.SessionID) *http.Cookie {
	c := &http.Cookie{
		Name:     cfg.Name,
		Value:    sid.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.MaxAge > 0 {
		c.MaxAge = int(cfg.MaxAge.Seconds())
	}
	return c
}
