package models

import id "rentgate/pkg/domain"

// TokenSet is the provider's token response, stored wholesale after every exchange
// or refresh.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// LoginOptions shapes the authorization redirect.
type LoginOptions struct {
	// Registration sends the user to the provider's sign-up page instead of login.
	Registration bool
	// InvitationToken is carried across the redirect and handed back by the callback.
	InvitationToken string
}

// CallbackResult is the outcome of a completed callback.
type CallbackResult struct {
	Success bool
	// SessionID is the session the tokens were stored under. It replaces the id the
	// browser arrived with, which is retired by a successful login.
	SessionID id.SessionID
	// InvitationToken is non-nil when the login started from an invitation link.
	InvitationToken *string
}
