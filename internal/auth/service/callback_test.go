package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rentgate/internal/auth/models"
	"rentgate/internal/auth/store/codes"
	"rentgate/internal/auth/store/kv"
	"rentgate/internal/auth/store/tokens"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/audit"
	"rentgate/pkg/testutil"
)

func (s *AuthServiceSuite) tokenResponse() *models.TokenSet {
	return &models.TokenSet{
		AccessToken:  testutil.AccessToken(s.T(), "user-1", nil),
		RefreshToken: "refresh-1",
		IDToken:      "id-token-1",
		TokenType:    "Bearer",
		ExpiresIn:    300,
	}
}

func (s *AuthServiceSuite) TestHandleCallback_Success() {
	testutil.Given(s.T(), "a login in flight without invitation", func(t *testing.T) {
		state := s.startLogin(models.LoginOptions{})
		verifier := s.transient(models.KeyPKCEVerifier)
		set := s.tokenResponse()

		s.provider.EXPECT().Exchange(gomock.Any(), "code-1", verifier).Return(set, nil).Times(1)
		s.syncer.EXPECT().SyncUser(gomock.Any(), set.AccessToken).Return(nil).Times(1)

		testutil.When(t, "the provider redirects back with the matching state", func(t *testing.T) {
			result, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
			require.NoError(t, err)

			testutil.Then(t, "the callback succeeds without invitation", func(t *testing.T) {
				assert.True(t, result.Success)
				assert.Nil(t, result.InvitationToken)
			})
			testutil.And(t, "the session moves to a fresh id", func(t *testing.T) {
				assert.False(t, result.SessionID.IsNil())
				assert.NotEqual(t, s.sid, result.SessionID)
			})
			testutil.And(t, "the token set is stored under the new id", func(t *testing.T) {
				assert.NotEmpty(t, s.durableOf(result.SessionID, models.KeyAccessToken))
				assert.Equal(t, "refresh-1", s.durableOf(result.SessionID, models.KeyRefreshToken))
				assert.Equal(t, "id-token-1", s.durableOf(result.SessionID, models.KeyIDToken))
			})
			testutil.And(t, "verifier and state are gone", func(t *testing.T) {
				assert.Empty(t, s.transient(models.KeyPKCEVerifier))
				assert.Empty(t, s.transient(models.KeyOAuthState))
			})
			testutil.And(t, "the identity is available on the new id only", func(t *testing.T) {
				identity, err := s.service.Identity(s.ctx, result.SessionID)
				require.NoError(t, err)
				assert.Equal(t, "user-1", identity.ID)

				_, err = s.service.Identity(s.ctx, s.sid)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			})
		})
	})
	s.Contains(s.auditActions(), string(audit.EventLoginSucceeded))
}

func (s *AuthServiceSuite) TestHandleCallback_Invitation() {
	state := s.startLogin(models.LoginOptions{InvitationToken: "inv-999"})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).Return(s.tokenResponse(), nil)
	s.syncer.EXPECT().SyncUser(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
	s.Require().NoError(err)

	s.Require().NotNil(result.InvitationToken)
	s.Equal("inv-999", *result.InvitationToken)
	s.Empty(s.transient(models.KeyInvitationToken))
}

func (s *AuthServiceSuite) TestHandleCallback_RetiresPreLoginSession() {
	s.signedIn()
	s.Require().NoError(s.tokens.SetCurrentBusiness(s.ctx, s.sid, "biz-old"))
	state := s.startLogin(models.LoginOptions{})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).Return(s.tokenResponse(), nil)
	s.syncer.EXPECT().SyncUser(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
	s.Require().NoError(err)

	for _, key := range models.DurableKeys {
		s.Empty(s.durable(key), "key %s", key)
	}
	s.NotEmpty(s.durableOf(result.SessionID, models.KeyAccessToken))
	s.Empty(s.durableOf(result.SessionID, models.KeyCurrentBusinessID))
}

func (s *AuthServiceSuite) TestHandleCallback_CallerGoneDoesNotAbortExchange() {
	state := s.startLogin(models.LoginOptions{})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (*models.TokenSet, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return s.tokenResponse(), nil
		})
	s.syncer.EXPECT().SyncUser(gomock.Any(), gomock.Any()).Return(nil)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	result, err := s.service.HandleCallback(ctx, s.sid, "code-1", state)

	s.Require().NoError(err)
	s.True(result.Success)
	s.NotEmpty(s.durableOf(result.SessionID, models.KeyAccessToken))
}

func (s *AuthServiceSuite) TestAbandonLogin() {
	testutil.Given(s.T(), "a login in flight with an invitation", func(t *testing.T) {
		state := s.startLogin(models.LoginOptions{InvitationToken: "inv-1"})

		testutil.When(t, "the provider refuses the login", func(t *testing.T) {
			require.NoError(t, s.service.AbandonLogin(s.ctx, s.sid))

			testutil.Then(t, "verifier and state are gone", func(t *testing.T) {
				assert.Empty(t, s.transient(models.KeyPKCEVerifier))
				assert.Empty(t, s.transient(models.KeyOAuthState))
			})
			testutil.And(t, "the invitation survives for the next attempt", func(t *testing.T) {
				assert.Equal(t, "inv-1", s.transient(models.KeyInvitationToken))
			})
			testutil.And(t, "a callback replaying the old state is rejected", func(t *testing.T) {
				_, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
				de, ok := dErrors.As(err)
				require.True(t, ok)
				assert.Equal(t, "Invalid OAuth state", de.Message)
			})
		})
	})
	s.Contains(s.auditActions(), string(audit.EventLoginFailed))
}

func (s *AuthServiceSuite) TestAbandonLogin_NothingInFlight() {
	s.NoError(s.service.AbandonLogin(s.ctx, s.sid))
}

func (s *AuthServiceSuite) TestHandleCallback_StateMismatch() {
	testutil.Given(s.T(), "a stored state S1", func(t *testing.T) {
		stored := s.startLogin(models.LoginOptions{})

		testutil.When(t, "the callback carries S2", func(t *testing.T) {
			_, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", stored+"-tampered")

			testutil.Then(t, "it fails with Invalid OAuth state and never calls the provider", func(t *testing.T) {
				de, ok := dErrors.As(err)
				require.True(t, ok)
				assert.Equal(t, dErrors.CodeUnauthorized, de.Code)
				assert.Equal(t, "Invalid OAuth state", de.Message)
			})
			testutil.And(t, "the round trip is discarded", func(t *testing.T) {
				assert.Empty(t, s.transient(models.KeyOAuthState))
				assert.Empty(t, s.transient(models.KeyPKCEVerifier))
			})
		})
	})
	s.Contains(s.auditActions(), string(audit.EventLoginFailed))
}

func (s *AuthServiceSuite) TestHandleCallback_NoLoginInFlight() {
	_, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", "anything")
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal("Invalid OAuth state", de.Message)
}

func (s *AuthServiceSuite) TestHandleCallback_MissingCode() {
	_, err := s.service.HandleCallback(s.ctx, s.sid, "", "state")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *AuthServiceSuite) TestHandleCallback_ProviderError() {
	state := s.startLogin(models.LoginOptions{InvitationToken: "inv-1"})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid_grant"))

	_, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)

	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(dErrors.CodeUnauthorized, de.Code)
	s.Equal("invalid_grant", de.Message)
	s.Empty(s.transient(models.KeyPKCEVerifier))
	s.Empty(s.durable(models.KeyAccessToken))
	s.Equal("inv-1", s.transient(models.KeyInvitationToken), "invitation survives for the next attempt")
}

func (s *AuthServiceSuite) TestHandleCallback_ProviderTransportError() {
	state := s.startLogin(models.LoginOptions{})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *AuthServiceSuite) TestHandleCallback_SyncFailureIsSwallowed() {
	state := s.startLogin(models.LoginOptions{})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).Return(s.tokenResponse(), nil)
	s.syncer.EXPECT().SyncUser(gomock.Any(), gomock.Any()).Return(errors.New("backend down"))

	result, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
	s.Require().NoError(err)
	s.True(result.Success)
	s.NotEmpty(s.durableOf(result.SessionID, models.KeyAccessToken))
}

func (s *AuthServiceSuite) TestHandleCallback_DuplicateCode() {
	state := s.startLogin(models.LoginOptions{})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).Return(s.tokenResponse(), nil).Times(1)
	s.syncer.EXPECT().SyncUser(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
	s.Require().NoError(err)

	_, err = s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(dErrors.CodeConflict, de.Code)
	s.Equal("authorization code already processed", de.Message)
	s.Contains(s.auditActions(), string(audit.EventDuplicateCode))
}

func (s *AuthServiceSuite) TestHandleCallback_ConcurrentDuplicates() {
	state := s.startLogin(models.LoginOptions{})
	entered := make(chan struct{})
	release := make(chan struct{})
	s.provider.EXPECT().Exchange(gomock.Any(), "code-1", gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (*models.TokenSet, error) {
			close(entered)
			<-release
			return s.tokenResponse(), nil
		}).Times(1)
	s.syncer.EXPECT().SyncUser(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	const callers = 8
	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	var mu sync.Mutex
	sessions := map[id.SessionID]struct{}{}
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.service.HandleCallback(s.ctx, s.sid, "code-1", state)
			switch {
			case err == nil && result.Success:
				successes.Add(1)
				mu.Lock()
				sessions[result.SessionID] = struct{}{}
				mu.Unlock()
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	<-entered
	close(release)
	wg.Wait()

	s.GreaterOrEqual(successes.Load(), int32(1))
	s.Equal(int32(callers), successes.Load()+conflicts.Load())
	s.Equal(1, len(sessions), "every success shares one signed-in session")
}

func TestHandleCallback_CodeClaimedByAnotherSession(t *testing.T) {
	store := kv.NewInMemory()
	cache := codes.NewInMemory()
	svc := New(store, tokens.New(store, time.Hour), nil, cache)

	if err := cache.Claim(context.Background(), "code-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	_, err := svc.HandleCallback(context.Background(), id.SessionID(uuid.New()), "code-1", "state")
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
