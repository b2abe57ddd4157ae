package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rentgate/internal/auth/models"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/audit"
)

const msgNotAuthenticated = "not authenticated"

// Refresh trades the stored refresh token for a new token set and returns the
// identity of the new access token. A failed refresh leaves the session as it was;
// the caller decides whether to log out.
func (s *Service) Refresh(ctx context.Context, sid id.SessionID) (*models.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	current, err := s.tokens.Load(ctx, sid)
	if err != nil {
		return nil, asDomain(err, "failed to load tokens")
	}
	if current.RefreshToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, msgNotAuthenticated)
	}

	set, err := s.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		s.recordRefresh("failed")
		s.logAudit(ctx, audit.EventRefreshFailed,
			"session_id", sid.String(),
			"reason", reasonFor(err))
		span.RecordError(err)
		return nil, asDomain(err, "Token refresh failed")
	}
	if set.RefreshToken == "" {
		set.RefreshToken = current.RefreshToken
	}
	if set.IDToken == "" {
		set.IDToken = current.IDToken
	}
	if err := s.tokens.Save(ctx, sid, set); err != nil {
		s.recordRefresh("failed")
		return nil, asDomain(err, "failed to store tokens")
	}

	identity, err := models.DecodeIdentity(set.AccessToken)
	if err != nil {
		s.recordRefresh("failed")
		return nil, err
	}
	s.recordRefresh(outcomeSuccess)
	s.logAudit(ctx, audit.EventTokenRefreshed,
		"session_id", sid.String(),
		"user_id", identity.ID)
	return identity, nil
}

// Logout clears the session locally and returns the provider's end-session URL.
// Local clearing always runs to completion; if any deletion failed the URL is
// still returned together with the joined error.
func (s *Service) Logout(ctx context.Context, sid id.SessionID) (string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	idToken, err := s.tokens.Get(ctx, sid, models.KeyIDToken)
	if err != nil {
		s.warn(ctx, "failed to read id token for logout hint", "error", err)
		idToken = ""
	}
	uid := s.currentUserID(ctx, sid)

	clearErr := s.clear(ctx, sid)
	if s.metrics != nil {
		s.metrics.IncrementLogouts()
	}
	s.logAudit(ctx, audit.EventLogout,
		"session_id", sid.String(),
		"user_id", uid)

	logoutURL := s.provider.LogoutURL(idToken)
	if clearErr != nil {
		span.RecordError(clearErr)
		return logoutURL, dErrors.Wrap(clearErr, dErrors.CodeInternal, "failed to clear session")
	}
	return logoutURL, nil
}

// ClearLocal is the local half of Logout, used when the backend rejects the
// session's access token. No refresh is attempted.
func (s *Service) ClearLocal(ctx context.Context, sid id.SessionID) error {
	uid := s.currentUserID(ctx, sid)
	err := s.clear(ctx, sid)
	if s.metrics != nil {
		s.metrics.IncrementLogouts()
	}
	s.logAudit(ctx, audit.EventSessionCleared,
		"session_id", sid.String(),
		"user_id", uid,
		"reason", "backend_unauthorized")
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear session")
	}
	return nil
}

// clear deletes durable keys first, then transient ones, attempting every key.
func (s *Service) clear(ctx context.Context, sid id.SessionID) error {
	var errs []error
	if err := s.tokens.Clear(ctx, sid); err != nil {
		errs = append(errs, err)
	}
	b := s.transient(sid)
	for _, key := range models.TransientKeys {
		if err := b.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Identity decodes the session's current access token.
func (s *Service) Identity(ctx context.Context, sid id.SessionID) (*models.Identity, error) {
	identity, err := s.tokens.Identity(ctx, sid)
	if err != nil {
		return nil, asDomain(err, "failed to load identity")
	}
	return identity, nil
}

// CurrentBusiness returns the selected business id, "" when none was selected.
func (s *Service) CurrentBusiness(ctx context.Context, sid id.SessionID) (string, error) {
	businessID, err := s.tokens.CurrentBusiness(ctx, sid)
	if err != nil {
		return "", asDomain(err, "failed to load business selection")
	}
	return businessID, nil
}

// SelectBusiness records which of the user's businesses API calls act for.
func (s *Service) SelectBusiness(ctx context.Context, sid id.SessionID, businessID string) error {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return dErrors.New(dErrors.CodeValidation, "business_id is required")
	}
	identity, err := s.Identity(ctx, sid)
	if err != nil {
		return err
	}
	if !identity.HasBusiness(businessID) {
		return dErrors.New(dErrors.CodeForbidden, "business is not available to this user")
	}
	if err := s.tokens.SetCurrentBusiness(ctx, sid, businessID); err != nil {
		return asDomain(err, "failed to store business selection")
	}
	s.logAudit(ctx, audit.EventBusinessSelected,
		"session_id", sid.String(),
		"user_id", identity.ID)
	return nil
}

// AccessToken returns the bearer token for API forwarding.
func (s *Service) AccessToken(ctx context.Context, sid id.SessionID) (string, error) {
	token, err := s.tokens.Get(ctx, sid, models.KeyAccessToken)
	if err != nil {
		return "", asDomain(err, "failed to load access token")
	}
	if token == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, msgNotAuthenticated)
	}
	return token, nil
}

func (s *Service) currentUserID(ctx context.Context, sid id.SessionID) string {
	token, err := s.tokens.Get(ctx, sid, models.KeyAccessToken)
	if err != nil {
		return ""
	}
	return userID(token)
}

func (s *Service) recordRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRefreshes(outcome)
	}
}
