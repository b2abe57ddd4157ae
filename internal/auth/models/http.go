package models

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	User              *Identity `json:"user"`
	CurrentBusinessID string    `json:"current_business_id,omitempty"`
}

// RefreshResponse is returned by POST /auth/refresh.
type RefreshResponse struct {
	User *Identity `json:"user"`
}

// SelectBusinessRequest is the body of PUT /auth/business.
type SelectBusinessRequest struct {
	BusinessID string `json:"business_id"`
}
