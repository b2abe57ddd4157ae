// Package tokens persists the provider token set of a browser session in the
// durable storage area and derives the identity from it.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentgate/internal/auth/models"
	"rentgate/internal/auth/store/kv"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/sentinel"
)

// Store reads and writes the durable keys of one session at a time.
type Store struct {
	kv     kv.Store
	ttl    time.Duration
	sealer *Sealer
}

type Option func(*Store)

// WithSealer encrypts tokens before they reach the backing store.
func WithSealer(sealer *Sealer) Option {
	return func(s *Store) {
		s.sealer = sealer
	}
}

func New(store kv.Store, ttl time.Duration, opts ...Option) *Store {
	s := &Store{kv: store, ttl: ttl}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) bucket(sid id.SessionID) *kv.Bucket {
	return kv.NewBucket(s.kv, kv.ScopeDurable, sid, s.ttl)
}

// Save overwrites the stored token set. An empty ID token removes any previous one.
func (s *Store) Save(ctx context.Context, sid id.SessionID, set *models.TokenSet) error {
	if set == nil || set.AccessToken == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "token set has no access token")
	}
	b := s.bucket(sid)
	values := []struct {
		key   models.Key
		value string
	}{
		{models.KeyAccessToken, set.AccessToken},
		{models.KeyRefreshToken, set.RefreshToken},
		{models.KeyIDToken, set.IDToken},
	}
	for _, v := range values {
		if v.value == "" {
			if err := b.Delete(ctx, v.key); err != nil {
				return fmt.Errorf("delete %s: %w", v.key, err)
			}
			continue
		}
		stored, err := s.seal(v.value)
		if err != nil {
			return err
		}
		if err := b.Set(ctx, v.key, stored); err != nil {
			return fmt.Errorf("store %s: %w", v.key, err)
		}
	}
	return nil
}

// Load returns the stored token set, or a CodeUnauthorized error when the session
// holds no access token.
func (s *Store) Load(ctx context.Context, sid id.SessionID) (*models.TokenSet, error) {
	access, err := s.get(ctx, sid, models.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	refresh, err := s.get(ctx, sid, models.KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	idToken, err := s.get(ctx, sid, models.KeyIDToken)
	if err != nil {
		return nil, err
	}
	return &models.TokenSet{
		AccessToken:  access,
		RefreshToken: refresh,
		IDToken:      idToken,
		TokenType:    "Bearer",
	}, nil
}

// Get returns one durable value, "" when absent.
func (s *Store) Get(ctx context.Context, sid id.SessionID, key models.Key) (string, error) {
	return s.get(ctx, sid, key)
}

// Identity decodes the current access token.
func (s *Store) Identity(ctx context.Context, sid id.SessionID) (*models.Identity, error) {
	access, err := s.get(ctx, sid, models.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	return models.DecodeIdentity(access)
}

func (s *Store) CurrentBusiness(ctx context.Context, sid id.SessionID) (string, error) {
	return s.get(ctx, sid, models.KeyCurrentBusinessID)
}

func (s *Store) SetCurrentBusiness(ctx context.Context, sid id.SessionID, businessID string) error {
	if err := s.bucket(sid).Set(ctx, models.KeyCurrentBusinessID, businessID); err != nil {
		return fmt.Errorf("store current business: %w", err)
	}
	return nil
}

// Clear removes every durable key. Each key is attempted even when an earlier
// deletion fails; failures are joined.
func (s *Store) Clear(ctx context.Context, sid id.SessionID) error {
	b := s.bucket(sid)
	var errs []error
	for _, key := range models.DurableKeys {
		if err := b.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) get(ctx context.Context, sid id.SessionID, key models.Key) (string, error) {
	v, err := s.bucket(sid).Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	if key == models.KeyCurrentBusinessID {
		return v, nil
	}
	return s.open(v)
}

func (s *Store) seal(v string) (string, error) {
	if s.sealer == nil {
		return v, nil
	}
	sealed, err := s.sealer.Seal(v)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal token")
	}
	return sealed, nil
}

func (s *Store) open(v string) (string, error) {
	if s.sealer == nil {
		return v, nil
	}
	plain, err := s.sealer.Open(v)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "stored token is unreadable")
	}
	return plain, nil
}
