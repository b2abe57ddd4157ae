// Package proxy forwards the SPA's API calls to the rental backend with the
// session's bearer token attached.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"strings"

	"rentgate/internal/platform/middleware"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/httputil"
	"rentgate/pkg/requestcontext"
)

// HeaderBusinessID carries the selected business to the backend.
const HeaderBusinessID = "X-Business-ID"

// Sessions is the part of the auth service the proxy needs.
type Sessions interface {
	CurrentBusiness(ctx context.Context, sid id.SessionID) (string, error)
	ClearLocal(ctx context.Context, sid id.SessionID) error
}

// Proxy must be mounted behind middleware.RequireSession.
type Proxy struct {
	proxy    *stdhttputil.ReverseProxy
	sessions Sessions
	logger   *slog.Logger
	prefix   string
}

type Option func(*Proxy)

// WithTransport replaces the round tripper used to reach the backend.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Proxy) {
		if rt != nil {
			p.proxy.Transport = rt
		}
	}
}

// New builds a proxy to backendURL. Requests under prefix (e.g. "/api") are
// forwarded with the prefix removed.
func New(backendURL, prefix string, sessions Sessions, logger *slog.Logger, opts ...Option) (*Proxy, error) {
	target, err := url.Parse(backendURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", backendURL)
	}
	p := &Proxy{sessions: sessions, logger: logger, prefix: prefix}
	p.proxy = &stdhttputil.ReverseProxy{
		Rewrite: func(pr *stdhttputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, p.prefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
			p.decorate(pr.Out)
		},
		ModifyResponse: p.onResponse,
		ErrorHandler:   p.onError,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

// decorate swaps browser credentials for backend ones.
func (p *Proxy) decorate(out *http.Request) {
	ctx := out.Context()
	out.Header.Del("Cookie")
	out.Header.Del(HeaderBusinessID)
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		out.Header.Set("X-Request-ID", reqID)
	}
	if token := middleware.GetAccessToken(ctx); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	sid := requestcontext.SessionID(ctx)
	if sid.IsNil() {
		return
	}
	businessID, err := p.sessions.CurrentBusiness(ctx, sid)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load business selection for proxy",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	if businessID != "" {
		out.Header.Set(HeaderBusinessID, businessID)
	}
}

// onResponse clears the local session when the backend rejects the token. The
// 401 itself is passed through so the SPA can route to the login page.
func (p *Proxy) onResponse(resp *http.Response) error {
	if resp.StatusCode != http.StatusUnauthorized {
		return nil
	}
	ctx := resp.Request.Context()
	sid := requestcontext.SessionID(ctx)
	if sid.IsNil() {
		return nil
	}
	if err := p.sessions.ClearLocal(ctx, sid); err != nil {
		p.logger.ErrorContext(ctx, "failed to clear session after backend 401",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return nil
}

func (p *Proxy) onError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	p.logger.ErrorContext(ctx, "backend request failed",
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
		"error", err,
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "backend unavailable"))
}
