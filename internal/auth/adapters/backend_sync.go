package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"rentgate/pkg/platform/circuit"
)

// ErrSyncSkipped is returned without a network call while the breaker is open.
var ErrSyncSkipped = errors.New("backend sync skipped: circuit open")

// BackendUserSync tells the rental backend that a user has just signed in so it
// can create or update its local user row. Only the bearer token is sent.
type BackendUserSync struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

type SyncOption func(*BackendUserSync)

func WithSyncHTTPClient(c *http.Client) SyncOption {
	return func(s *BackendUserSync) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func WithSyncBreaker(b *circuit.Breaker) SyncOption {
	return func(s *BackendUserSync) {
		if b != nil {
			s.breaker = b
		}
	}
}

func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(s *BackendUserSync) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBackendUserSync posts to <backendURL>/auth/sync, each call bounded by timeout.
func NewBackendUserSync(backendURL string, timeout time.Duration, opts ...SyncOption) *BackendUserSync {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &BackendUserSync{
		endpoint:   backendURL + "/auth/sync",
		httpClient: http.DefaultClient,
		timeout:    timeout,
		breaker:    circuit.New("backend-sync", circuit.WithCooldown(30*time.Second)),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SyncUser performs the call. Any non-2xx status is an error; the response body
// is discarded.
func (s *BackendUserSync) SyncUser(ctx context.Context, accessToken string) error {
	if !s.breaker.Allow() {
		return ErrSyncSkipped
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.post(ctx, accessToken)
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "backend sync circuit opened", "breaker", s.breaker.Name())
		}
		return err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "backend sync circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}

func (s *BackendUserSync) post(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sync request: unexpected status %d", resp.StatusCode)
	}
	return nil
}
