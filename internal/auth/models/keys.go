package models

// Key names a value in one of the two per-session storage areas.
type Key string

// Transient keys live for one redirect round trip and are removed after use.
const (
	KeyPKCEVerifier    Key = "pkce_verifier"
	KeyOAuthState      Key = "oauth_state"
	KeyInvitationToken Key = "invitation_token"
)

// Durable keys survive page reloads and are removed on logout.
const (
	KeyAccessToken       Key = "access_token"
	KeyRefreshToken      Key = "refresh_token"
	KeyIDToken           Key = "id_token"
	KeyCurrentBusinessID Key = "current_business_id"
)

// TransientKeys and DurableKeys enumerate every key logout must clear.
var (
	TransientKeys = []Key{KeyPKCEVerifier, KeyOAuthState, KeyInvitationToken}
	DurableKeys   = []Key{KeyAccessToken, KeyRefreshToken, KeyIDToken, KeyCurrentBusinessID}
)
