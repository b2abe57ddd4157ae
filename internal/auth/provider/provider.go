// Package provider talks to the OpenID Connect identity provider: it builds the
// authorize, registration and logout URLs and calls the token endpoint.
package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"rentgate/internal/auth/models"
	"rentgate/internal/auth/pkce"
	dErrors "rentgate/pkg/domain-errors"
)

// Scopes requested on every authorization.
var Scopes = []string{"openid", "profile", "email"}

const (
	msgExchangeFailed = "Token exchange failed"
	msgRefreshFailed  = "Token refresh failed"
)

// Config locates the realm and the client registration.
type Config struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	// PublicOrigin is where the gateway is reachable from the browser.
	PublicOrigin string
	Timeout      time.Duration
}

// Endpoints are the realm's protocol URLs.
type Endpoints struct {
	Authorize    string
	Registration string
	Token        string
	Logout       string
}

// EndpointsFor derives the protocol URLs of a realm without discovery.
func EndpointsFor(baseURL, realm string) Endpoints {
	root := baseURL + "/realms/" + url.PathEscape(realm) + "/protocol/openid-connect"
	return Endpoints{
		Authorize:    root + "/authorize",
		Registration: root + "/registrations",
		Token:        root + "/token",
		Logout:       root + "/logout",
	}
}

// Client is safe for concurrent use.
type Client struct {
	login        *oauth2.Config
	registration *oauth2.Config
	endpoints    Endpoints
	origin       string
	httpClient   *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Client) {
		if c != nil {
			p.httpClient = c
		}
	}
}

func New(cfg Config, opts ...Option) *Client {
	endpoints := EndpointsFor(cfg.BaseURL, cfg.Realm)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	login := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.PublicOrigin + "/auth/callback",
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   endpoints.Authorize,
			TokenURL:  endpoints.Token,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	registration := *login
	registration.Endpoint.AuthURL = endpoints.Registration

	c := &Client{
		login:        login,
		registration: &registration,
		endpoints:    endpoints,
		origin:       cfg.PublicOrigin,
		httpClient:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

func (c *Client) RedirectURI() string {
	return c.login.RedirectURL
}

// AuthorizeURL returns the provider page the browser is sent to. registration
// selects the sign-up page.
func (c *Client) AuthorizeURL(state, challenge string, registration bool) string {
	cfg := c.login
	if registration {
		cfg = c.registration
	}
	return cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.MethodS256),
	)
}

// Exchange redeems an authorization code. Failures are CodeUnauthorized carrying
// the provider's error_description when it sent one.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*models.TokenSet, error) {
	tok, err := c.login.Exchange(c.withClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, mapTokenError(err, msgExchangeFailed)
	}
	return toTokenSet(tok), nil
}

// Refresh trades a refresh token for a new token set. No retry.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error) {
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, msgRefreshFailed)
	}
	src := c.login.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, msgRefreshFailed)
	}
	return toTokenSet(tok), nil
}

// LogoutURL ends the provider session and returns the browser to the origin.
func (c *Client) LogoutURL(idTokenHint string) string {
	q := url.Values{}
	q.Set("client_id", c.login.ClientID)
	q.Set("post_logout_redirect_uri", c.origin)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	return c.endpoints.Logout + "?" + q.Encode()
}

func (c *Client) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func mapTokenError(err error, fallback string) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorDescription != "" {
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, re.ErrorDescription)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, fallback)
	}
	return dErrors.Wrap(err, dErrors.CodeUnauthorized, fallback)
}

func toTokenSet(tok *oauth2.Token) *models.TokenSet {
	set := &models.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}
	if !tok.Expiry.IsZero() {
		set.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	return set
}
