package service

import (
	"context"

	"rentgate/internal/auth/models"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/audit"
)

const (
	kindLogin        = "login"
	kindRegistration = "registration"
)

// InitiateLogin prepares a PKCE round trip for the session and returns the
// provider URL the browser must be sent to. A new login replaces any verifier,
// state or invitation left by an earlier attempt.
func (s *Service) InitiateLogin(ctx context.Context, sid id.SessionID, opts models.LoginOptions) (string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.InitiateLogin")
	defer span.End()

	pair, err := s.pkce.NewPair(s.verifierLength)
	if err != nil {
		return "", err
	}
	state, err := s.pkce.GenerateVerifier(s.verifierLength)
	if err != nil {
		return "", err
	}

	b := s.transient(sid)
	if err := b.Set(ctx, models.KeyPKCEVerifier, pair.Verifier); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store PKCE verifier")
	}
	if err := b.Set(ctx, models.KeyOAuthState, state); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store OAuth state")
	}
	if opts.InvitationToken != "" {
		err = b.Set(ctx, models.KeyInvitationToken, opts.InvitationToken)
	} else {
		err = b.Delete(ctx, models.KeyInvitationToken)
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invitation")
	}

	kind := kindLogin
	if opts.Registration {
		kind = kindRegistration
	}
	if s.metrics != nil {
		s.metrics.IncrementLoginsStarted(kind)
	}
	s.logAudit(ctx, audit.EventLoginStarted,
		"session_id", sid.String(),
		"kind", kind,
		"invitation", opts.InvitationToken != "")

	return s.provider.AuthorizeURL(state, pair.Challenge, opts.Registration), nil
}
