package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/email"
	pstrings "rentgate/pkg/platform/strings"
)

// Identity is the user as seen by the web app. It is derived from the access token
// on every read and never stored on its own.
type Identity struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Roles       []string `json:"roles"`
	BusinessIDs []string `json:"business_ids"`
}

// HasBusiness reports whether businessID is one of the identity's businesses.
func (i *Identity) HasBusiness(businessID string) bool {
	for _, b := range i.BusinessIDs {
		if b == businessID {
			return true
		}
	}
	return false
}

// AccessClaims is the access token payload this app reads.
type AccessClaims struct {
	Username    string `json:"preferred_username"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	BusinessIDs []string `json:"business_ids"`
	jwt.RegisteredClaims
}

// DecodeIdentity reads the access token payload without verifying the signature.
// The shape is trusted for display and routing only; the backend re-validates the
// token on every API call.
func DecodeIdentity(accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	var claims AccessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "malformed access token")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "access token has no subject")
	}

	first, last := claims.GivenName, claims.FamilyName
	if first == "" && last == "" {
		first, last = email.DeriveNameFromEmail(claims.Email)
	}
	name := claims.Name
	if name == "" {
		name = strings.TrimSpace(first + " " + last)
	}
	username := claims.Username
	if username == "" {
		username = claims.Email
	}

	return &Identity{
		ID:          claims.Subject,
		Username:    username,
		Email:       claims.Email,
		Name:        name,
		FirstName:   first,
		LastName:    last,
		Roles:       nonNil(pstrings.DedupeAndTrim(claims.RealmAccess.Roles)),
		BusinessIDs: nonNil(pstrings.DedupeAndTrim(claims.BusinessIDs)),
	}, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
