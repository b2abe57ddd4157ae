// Package domain holds identifier types shared across packages.
package domain

import (
	"github.com/google/uuid"

	dErrors "rentgate/pkg/domain-errors"
)

// SessionID identifies one browser session of the web app. It is the value of the
// session cookie and the scope under which transient and durable keys are stored.
type SessionID uuid.UUID

// NewSessionID returns a random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID parses a cookie value. Empty, malformed and nil UUIDs are rejected.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	if u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	return SessionID(u), nil
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}
