package service

import (
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/mock/gomock"

	"rentgate/internal/auth/models"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/audit"
	"rentgate/pkg/testutil"
)

func (s *AuthServiceSuite) TestRefresh() {
	s.Run("stores the new token set and returns the identity", func() {
		s.signedIn()
		fresh := &models.TokenSet{
			AccessToken:  testutil.AccessToken(s.T(), "user-1", jwt.MapClaims{"name": "Asha Rao"}),
			RefreshToken: "refresh-2",
		}
		s.provider.EXPECT().Refresh(gomock.Any(), "refresh-1").Return(fresh, nil)

		identity, err := s.service.Refresh(s.ctx, s.sid)
		s.Require().NoError(err)
		s.Equal("Asha Rao", identity.Name)
		s.Equal(fresh.AccessToken, s.durable(models.KeyAccessToken))
		s.Equal("refresh-2", s.durable(models.KeyRefreshToken))
		s.Equal("id-token-1", s.durable(models.KeyIDToken), "id token kept when the provider omits it")
	})

	s.Run("provider failure keeps the session", func() {
		set := s.signedIn()
		s.provider.EXPECT().Refresh(gomock.Any(), "refresh-1").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "Token refresh failed"))

		_, err := s.service.Refresh(s.ctx, s.sid)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeUnauthorized, de.Code)
		s.Equal("Token refresh failed", de.Message)
		s.Equal(set.AccessToken, s.durable(models.KeyAccessToken))
		s.Contains(s.auditActions(), string(audit.EventRefreshFailed))
	})
}

func (s *AuthServiceSuite) TestRefresh_NotSignedIn() {
	_, err := s.service.Refresh(s.ctx, s.sid)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *AuthServiceSuite) TestLogout() {
	s.signedIn()
	s.Require().NoError(s.service.SelectBusiness(s.ctx, s.sid, "biz-1"))
	s.startLogin(models.LoginOptions{InvitationToken: "inv-1"})
	s.provider.EXPECT().LogoutURL("id-token-1").Return("https://idp.example/logout?id_token_hint=id-token-1")

	url, err := s.service.Logout(s.ctx, s.sid)
	s.Require().NoError(err)
	s.Equal("https://idp.example/logout?id_token_hint=id-token-1", url)

	for _, key := range models.DurableKeys {
		s.Empty(s.durable(key), "durable key %s", key)
	}
	for _, key := range models.TransientKeys {
		s.Empty(s.transient(key), "transient key %s", key)
	}
	s.Equal(0, s.kv.Len())
	s.Contains(s.auditActions(), string(audit.EventLogout))
}

func (s *AuthServiceSuite) TestLogout_WithoutSession() {
	s.provider.EXPECT().LogoutURL("").Return("https://idp.example/logout")

	url, err := s.service.Logout(s.ctx, s.sid)
	s.Require().NoError(err)
	s.Equal("https://idp.example/logout", url)
}

func (s *AuthServiceSuite) TestClearLocal() {
	s.signedIn()

	s.Require().NoError(s.service.ClearLocal(s.ctx, s.sid))

	s.Empty(s.durable(models.KeyAccessToken))
	_, err := s.service.AccessToken(s.ctx, s.sid)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Contains(s.auditActions(), string(audit.EventSessionCleared))
}

func (s *AuthServiceSuite) TestSelectBusiness() {
	s.Run("requires a session", func() {
		err := s.service.SelectBusiness(s.ctx, s.sid, "biz-1")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.signedIn()

	s.Run("rejects empty id", func() {
		err := s.service.SelectBusiness(s.ctx, s.sid, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects businesses outside the identity", func() {
		err := s.service.SelectBusiness(s.ctx, s.sid, "biz-other")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("stores an allowed business", func() {
		s.Require().NoError(s.service.SelectBusiness(s.ctx, s.sid, " biz-1 "))
		current, err := s.service.CurrentBusiness(s.ctx, s.sid)
		s.Require().NoError(err)
		s.Equal("biz-1", current)
	})
}

func (s *AuthServiceSuite) TestAccessToken() {
	_, err := s.service.AccessToken(s.ctx, s.sid)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	set := s.signedIn()
	token, err := s.service.AccessToken(s.ctx, s.sid)
	s.Require().NoError(err)
	s.Equal(set.AccessToken, token)
}

func (s *AuthServiceSuite) TestRefresh_WithoutRefreshToken() {
	s.Require().NoError(s.tokens.Save(s.ctx, s.sid, &models.TokenSet{
		AccessToken: testutil.AccessToken(s.T(), "user-1", nil),
	}))

	_, err := s.service.Refresh(s.ctx, s.sid)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
