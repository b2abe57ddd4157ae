package testutil

import (
	"context"
	"net/http"

	id "rentgate/pkg/domain"
	"rentgate/pkg/requestcontext"
)

// WithSessionID puts a browser session id in the request context, as the session
// middleware would.
func WithSessionID(req *http.Request, sid id.SessionID) *http.Request {
	return req.WithContext(requestcontext.WithSessionID(req.Context(), sid))
}

// WithSessionCookie adds the session cookie to an outbound test request.
func WithSessionCookie(req *http.Request, name string, sid id.SessionID) *http.Request {
	req.AddCookie(&http.Cookie{Name: name, Value: sid.String()})
	return req
}

// SessionContext returns a background context bound to sid.
func SessionContext(sid id.SessionID) context.Context {
	return requestcontext.WithSessionID(context.Background(), sid)
}
