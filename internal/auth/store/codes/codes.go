// Package codes remembers which authorization codes were already redeemed so a
// replayed callback never reaches the token endpoint twice.
package codes

import (
	"context"
	"time"
)

// DefaultWindow bounds how long a processed code is remembered. Providers
// invalidate codes well before this.
const DefaultWindow = 5 * time.Minute

// Cache records processed codes. Claim returns sentinel.ErrAlreadyUsed when the
// code was claimed inside the window.
type Cache interface {
	Claim(ctx context.Context, code string) error
}
