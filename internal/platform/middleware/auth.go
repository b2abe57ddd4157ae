package middleware

import (
	"context"
	"log/slog"
	"net/http"

	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/httputil"
	"rentgate/pkg/requestcontext"
)

// AccessTokenSource yields the bearer token of a browser session.
type AccessTokenSource interface {
	AccessToken(ctx context.Context, sid id.SessionID) (string, error)
}

type contextKeyAccessToken struct{}

// GetAccessToken returns the token placed by RequireSession, "" when absent.
func GetAccessToken(ctx context.Context) string {
	token, ok := ctx.Value(contextKeyAccessToken{}).(string)
	if !ok {
		return ""
	}
	return token
}

// WithAccessToken is used by RequireSession and by tests.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyAccessToken{}, token)
}

// RequireSession rejects requests whose browser session holds no access token and
// puts the token in the context for the next handler.
func RequireSession(tokens AccessTokenSource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)
			sid := requestcontext.SessionID(ctx)
			if sid.IsNil() {
				logger.WarnContext(ctx, "unauthorized access - no browser session",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not authenticated"))
				return
			}

			token, err := tokens.AccessToken(ctx, sid)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.InfoContext(ctx, "unauthorized access - not signed in",
						"request_id", requestID,
					)
				} else {
					logger.ErrorContext(ctx, "failed to load access token",
						"error", err,
						"request_id", requestID,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccessToken(ctx, token)))
		})
	}
}
