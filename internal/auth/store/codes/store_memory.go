package codes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rentgate/pkg/platform/sentinel"
)

// InMemoryCache keeps claimed codes in process and prunes stale ones on every
// claim.
type InMemoryCache struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	window  time.Duration
	clock   func() time.Time
}

type Option func(*InMemoryCache)

func WithWindow(window time.Duration) Option {
	return func(c *InMemoryCache) {
		if window > 0 {
			c.window = window
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *InMemoryCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewInMemory(opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		claimed: make(map[string]time.Time),
		window:  DefaultWindow,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryCache) Claim(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	for k, at := range c.claimed {
		if now.Sub(at) >= c.window {
			delete(c.claimed, k)
		}
	}
	if _, ok := c.claimed[code]; ok {
		return fmt.Errorf("authorization code: %w", sentinel.ErrAlreadyUsed)
	}
	c.claimed[code] = now
	return nil
}

// Len reports the number of remembered codes.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claimed)
}
