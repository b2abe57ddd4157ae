// Package service runs the OpenID Connect Authorization Code + PKCE flow for a
// browser session: it starts logins, completes callbacks, refreshes tokens and
// logs out. Transport concerns stay in the handler package.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"rentgate/internal/auth/device"
	"rentgate/internal/auth/models"
	"rentgate/internal/auth/pkce"
	"rentgate/internal/auth/store/kv"
	"rentgate/internal/platform/metrics"
	"rentgate/pkg/attrs"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/audit"
	"rentgate/pkg/requestcontext"
)

// TokenStore persists the durable half of a session.
type TokenStore interface {
	Save(ctx context.Context, sid id.SessionID, set *models.TokenSet) error
	Load(ctx context.Context, sid id.SessionID) (*models.TokenSet, error)
	Get(ctx context.Context, sid id.SessionID, key models.Key) (string, error)
	Identity(ctx context.Context, sid id.SessionID) (*models.Identity, error)
	CurrentBusiness(ctx context.Context, sid id.SessionID) (string, error)
	SetCurrentBusiness(ctx context.Context, sid id.SessionID, businessID string) error
	Clear(ctx context.Context, sid id.SessionID) error
}

// Provider is the identity provider client.
type Provider interface {
	AuthorizeURL(state, challenge string, registration bool) string
	Exchange(ctx context.Context, code, verifier string) (*models.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error)
	LogoutURL(idTokenHint string) string
}

// CodeCache remembers processed authorization codes.
type CodeCache interface {
	Claim(ctx context.Context, code string) error
}

// UserSyncer notifies the backend of a fresh login.
type UserSyncer interface {
	SyncUser(ctx context.Context, accessToken string) error
}

// PKCEGenerator produces verifiers, challenges and state values.
type PKCEGenerator interface {
	NewPair(length int) (pkce.Pair, error)
	GenerateVerifier(length int) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service is safe for concurrent use.
type Service struct {
	kv             kv.Store
	tokens         TokenStore
	provider       Provider
	codes          CodeCache
	syncer         UserSyncer
	pkce           PKCEGenerator
	transientTTL   time.Duration
	verifierLength int

	inflight singleflight.Group

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer("rentgate/auth")
		}
	}
}

// WithUserSync enables the best-effort backend sync after each login.
func WithUserSync(syncer UserSyncer) Option {
	return func(s *Service) {
		s.syncer = syncer
	}
}

func WithPKCEGenerator(g PKCEGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.pkce = g
		}
	}
}

// WithTransientTTL bounds how long an unfinished login stays redeemable.
func WithTransientTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.transientTTL = ttl
		}
	}
}

func WithVerifierLength(n int) Option {
	return func(s *Service) {
		s.verifierLength = n
	}
}

// New constructs a Service. store backs the transient scope; tokens the durable one.
func New(store kv.Store, tokens TokenStore, provider Provider, codes CodeCache, opts ...Option) *Service {
	s := &Service{
		kv:             store,
		tokens:         tokens,
		provider:       provider,
		codes:          codes,
		pkce:           pkce.Generator{},
		transientTTL:   10 * time.Minute,
		verifierLength: pkce.DefaultVerifierLength,
		tracer:         otel.Tracer("rentgate/auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) transient(sid id.SessionID) *kv.Bucket {
	return kv.NewBucket(s.kv, kv.ScopeTransient, sid, s.transientTTL)
}

// asDomain leaves domain errors untouched and wraps anything else as internal.
func asDomain(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		SessionID: attrs.ExtractString(attributes, "session_id"),
		UserID:    attrs.ExtractString(attributes, "user_id"),
		Reason:    attrs.ExtractString(attributes, "reason"),
		Device:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		ClientIP:  requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit publish failed", "event", string(event), "error", err)
	}
}

func (s *Service) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

// userID is a logging helper; an undecodable token yields "".
func userID(accessToken string) string {
	identity, err := models.DecodeIdentity(accessToken)
	if err != nil {
		return ""
	}
	return identity.ID
}

func reasonFor(err error) string {
	if de, ok := dErrors.As(err); ok {
		return string(de.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(dErrors.CodeTimeout)
	}
	return string(dErrors.CodeInternal)
}
