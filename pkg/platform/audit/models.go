package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events for routing and retention.
type EventCategory string

const (
	// CategorySecurity covers events relevant to security monitoring: failed
	// callbacks, state mismatches, forced session clears.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the auth flow. It never carries token material.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	SessionID string        `json:"session_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Device    string        `json:"device,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventLoginStarted     AuditEvent = "login_started"
	EventLoginSucceeded   AuditEvent = "login_succeeded"
	EventLoginFailed      AuditEvent = "login_failed"
	EventDuplicateCode    AuditEvent = "duplicate_callback"
	EventTokenRefreshed   AuditEvent = "token_refreshed"
	EventRefreshFailed    AuditEvent = "token_refresh_failed"
	EventLogout           AuditEvent = "logout"
	EventSessionCleared   AuditEvent = "session_cleared"
	EventBusinessSelected AuditEvent = "business_selected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLoginFailed:    CategorySecurity,
	EventDuplicateCode:  CategorySecurity,
	EventRefreshFailed:  CategorySecurity,
	EventSessionCleared: CategorySecurity,
}

// Category returns the category of e. Unlisted events are operational.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
