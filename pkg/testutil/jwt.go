package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken builds a provider-shaped access token for subject. Extra claims
// override the defaults. The signing key is irrelevant: the gateway only decodes.
func AccessToken(t *testing.T, subject string, extra jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":                subject,
		"preferred_username": "user-" + subject,
		"email":              subject + "@example.com",
		"exp":                time.Now().Add(5 * time.Minute).Unix(),
		"realm_access":       map[string]any{"roles": []string{"owner"}},
		"business_ids":       []string{"biz-1"},
	}
	for k, v := range extra {
		claims[k] = v
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return tok
}
