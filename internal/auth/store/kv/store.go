// Package kv is the storage abstraction behind the auth flow: a string key-value
// store with per-key TTL, and Buckets that scope it to one browser session and one
// storage area (transient or durable).
//
// Error Contract:
// - Get and Take return sentinel.ErrNotFound for missing or expired keys
// - Delete of a missing key is not an error
// - infrastructure failures are returned wrapped with context
package kv

import (
	"context"
	"time"

	"rentgate/internal/auth/models"
	id "rentgate/pkg/domain"
)

// Store is implemented by the memory, Redis and Postgres backends.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set overwrites key. A non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Take returns the value and removes the key in one step.
	Take(ctx context.Context, key string) (string, error)
}

// Sweeper is implemented by backends that need expired keys removed explicitly.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Scope names a storage area.
type Scope string

const (
	// ScopeTransient holds values of one redirect round trip (verifier, state,
	// invitation); the analogue of browser session storage.
	ScopeTransient Scope = "transient"
	// ScopeDurable holds the token set and business selection; the analogue of
	// browser local storage.
	ScopeDurable Scope = "durable"
)

// Bucket is a Store view limited to one scope of one browser session. Physical
// keys are "<scope>:<session id>:<name>".
type Bucket struct {
	store  Store
	prefix string
	ttl    time.Duration
}

func NewBucket(store Store, scope Scope, sid id.SessionID, ttl time.Duration) *Bucket {
	return &Bucket{
		store:  store,
		prefix: string(scope) + ":" + sid.String() + ":",
		ttl:    ttl,
	}
}

func (b *Bucket) physical(key models.Key) string {
	return b.prefix + string(key)
}

func (b *Bucket) Get(ctx context.Context, key models.Key) (string, error) {
	return b.store.Get(ctx, b.physical(key))
}

func (b *Bucket) Set(ctx context.Context, key models.Key, value string) error {
	return b.store.Set(ctx, b.physical(key), value, b.ttl)
}

func (b *Bucket) Take(ctx context.Context, key models.Key) (string, error) {
	return b.store.Take(ctx, b.physical(key))
}

func (b *Bucket) Delete(ctx context.Context, keys ...models.Key) error {
	if len(keys) == 0 {
		return nil
	}
	physical := make([]string, len(keys))
	for i, k := range keys {
		physical[i] = b.physical(k)
	}
	return b.store.Delete(ctx, physical...)
}
