package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) and
// services translate them into domain errors:
// - ErrNotFound: key or record does not exist (or has expired out of the store)
// - ErrAlreadyUsed: single-use value (authorization code) already claimed
// - ErrInvalidState: stored value cannot be decoded or is in the wrong shape
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
)
