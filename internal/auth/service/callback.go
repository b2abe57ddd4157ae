package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"

	"rentgate/internal/auth/models"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/audit"
	"rentgate/pkg/platform/sentinel"
)

const (
	msgInvalidState      = "Invalid OAuth state"
	msgAlreadyProcessed  = "authorization code already processed"
	msgMissingVerifier   = "Missing PKCE verifier"
	outcomeSuccess       = "success"
	outcomeInvalidState  = "invalid_state"
	outcomeDuplicate     = "duplicate"
	outcomeExchangeError = "exchange_failed"
	outcomeError         = "error"
	outcomeProviderError = "provider_error"
)

// HandleCallback completes the redirect round trip: it validates state, redeems
// the code, stores the tokens, syncs the user with the backend and hands back the
// invitation carried since InitiateLogin.
//
// A successful login moves the session to a fresh id returned in the result; the
// id the browser arrived with is cleared and never carries the new tokens.
//
// A code is redeemed at most once. Concurrent duplicates within the same session
// share the first call's result; later duplicates fail with CodeConflict without
// reaching the provider.
func (s *Service) HandleCallback(ctx context.Context, sid id.SessionID, code, state string) (*models.CallbackResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.HandleCallback")
	defer span.End()

	if code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing authorization code")
	}

	v, err, _ := s.inflight.Do(sid.String()+":"+code, func() (any, error) {
		// Duplicates wait on this call; one of them leaving must not abort it.
		ctx := context.WithoutCancel(ctx)
		if err := s.codes.Claim(ctx, code); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				s.recordCallback(outcomeDuplicate)
				if s.metrics != nil {
					s.metrics.IncrementDuplicateCallbacks()
				}
				s.logAudit(ctx, audit.EventDuplicateCode, "session_id", sid.String())
				return nil, dErrors.New(dErrors.CodeConflict, msgAlreadyProcessed)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record authorization code")
		}
		return s.completeCallback(ctx, sid, code, state)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, reasonFor(err))
		return nil, err
	}
	span.SetStatus(otelcodes.Ok, "")
	return v.(*models.CallbackResult), nil
}

func (s *Service) completeCallback(ctx context.Context, sid id.SessionID, code, state string) (*models.CallbackResult, error) {
	b := s.transient(sid)

	stored, err := b.Take(ctx, models.KeyOAuthState)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.failCallback(ctx, sid, outcomeError,
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to load OAuth state"))
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
		if err := b.Delete(ctx, models.KeyPKCEVerifier); err != nil {
			s.warn(ctx, "failed to clear PKCE verifier", "error", err)
		}
		return nil, s.failCallback(ctx, sid, outcomeInvalidState,
			dErrors.New(dErrors.CodeUnauthorized, msgInvalidState))
	}

	verifier, err := b.Get(ctx, models.KeyPKCEVerifier)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.failCallback(ctx, sid, outcomeExchangeError,
			dErrors.New(dErrors.CodeUnauthorized, msgMissingVerifier))
	}
	if err != nil {
		return nil, s.failCallback(ctx, sid, outcomeError,
			dErrors.Wrap(err, dErrors.CodeInternal, "failed to load PKCE verifier"))
	}

	start := time.Now()
	set, err := s.provider.Exchange(ctx, code, verifier)
	if s.metrics != nil {
		s.metrics.ObserveTokenExchange(start)
	}
	if delErr := b.Delete(ctx, models.KeyPKCEVerifier); delErr != nil {
		s.warn(ctx, "failed to clear PKCE verifier", "error", delErr)
	}
	if err != nil {
		return nil, s.failCallback(ctx, sid, outcomeExchangeError, asDomain(err, "Token exchange failed"))
	}

	next := id.NewSessionID()
	if err := s.tokens.Save(ctx, next, set); err != nil {
		return nil, s.failCallback(ctx, sid, outcomeError, asDomain(err, "failed to store tokens"))
	}

	uid := userID(set.AccessToken)
	s.syncUser(ctx, set.AccessToken, uid)

	result := &models.CallbackResult{Success: true, SessionID: next}
	invitation, err := b.Take(ctx, models.KeyInvitationToken)
	switch {
	case err == nil && invitation != "":
		result.InvitationToken = &invitation
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		s.warn(ctx, "failed to read invitation token", "error", err)
	}
	if err := s.clear(ctx, sid); err != nil {
		s.warn(ctx, "failed to retire pre-login session", "error", err)
	}

	s.recordCallback(outcomeSuccess)
	s.logAudit(ctx, audit.EventLoginSucceeded,
		"session_id", next.String(),
		"previous_session_id", sid.String(),
		"user_id", uid,
		"invitation", result.InvitationToken != nil)
	return result, nil
}

// AbandonLogin discards the verifier and state of a round trip the provider
// refused, so they can no longer be redeemed. The invitation is kept for the next
// attempt, as after a failed exchange.
func (s *Service) AbandonLogin(ctx context.Context, sid id.SessionID) error {
	ctx, span := s.tracer.Start(ctx, "auth.AbandonLogin")
	defer span.End()

	err := s.transient(sid).Delete(ctx, models.KeyPKCEVerifier, models.KeyOAuthState)
	s.recordCallback(outcomeProviderError)
	s.logAudit(ctx, audit.EventLoginFailed,
		"session_id", sid.String(),
		"reason", outcomeProviderError)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(dErrors.CodeInternal))
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to discard login state")
	}
	return nil
}

// syncUser never fails the login.
func (s *Service) syncUser(ctx context.Context, accessToken, uid string) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.SyncUser(ctx, accessToken); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementUserSyncFailures()
		}
		s.warn(ctx, "backend user sync failed", "user_id", uid, "error", err)
	}
}

func (s *Service) failCallback(ctx context.Context, sid id.SessionID, outcome string, err error) error {
	s.recordCallback(outcome)
	s.logAudit(ctx, audit.EventLoginFailed,
		"session_id", sid.String(),
		"reason", outcome)
	return err
}

func (s *Service) recordCallback(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementCallbacks(outcome)
	}
}
