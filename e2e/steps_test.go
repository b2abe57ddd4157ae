package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"rentgate/internal/gateway/proxy"
)

type steps struct {
	w *world
}

func (s *steps) register(sc *godog.ScenarioContext) {
	sc.Step(`^I start a login$`, s.startLogin)
	sc.Step(`^I start a registration with invitation "([^"]*)"$`, s.startRegistration)
	sc.Step(`^I am redirected to the provider's (login|registration) page$`, s.redirectedToProvider)
	sc.Step(`^the provider redirects back with code "([^"]*)"$`, s.callback)
	sc.Step(`^the provider redirects back with code "([^"]*)" and state "([^"]*)"$`, s.callbackWithState)
	sc.Step(`^the provider redirects back with error "([^"]*)"$`, s.callbackWithError)
	sc.Step(`^the browser replays the callback$`, s.replayCallback)
	sc.Step(`^I am signed in$`, s.signIn)
	sc.Step(`^I log out$`, s.logout)

	sc.Step(`^I request "([^"]*)"$`, s.get)
	sc.Step(`^I send "([^"]*)" to "([^"]*)" with body:$`, s.send)
	sc.Step(`^I send "([^"]*)" to "([^"]*)"$`, s.sendEmpty)

	sc.Step(`^the response status is (\d+)$`, s.statusIs)
	sc.Step(`^I am redirected to "([^"]*)"$`, s.redirectedTo)
	sc.Step(`^I am redirected to the login page with error "([^"]*)"$`, s.redirectedToLoginError)
	sc.Step(`^I am redirected to the provider's logout page$`, s.redirectedToLogout)
	sc.Step(`^the JSON field "([^"]*)" is "([^"]*)"$`, s.jsonFieldIs)
	sc.Step(`^the user was synced with the backend$`, s.userSynced)
	sc.Step(`^the backend received the session's access token$`, s.backendGotBearer)
	sc.Step(`^the backend received business "([^"]*)"$`, s.backendGotBusiness)
	sc.Step(`^the backend received no cookies$`, s.backendGotNoCookies)
	sc.Step(`^the audit trail contains "([^"]*)"$`, s.auditContains)
}

func (s *steps) startLogin() error {
	return s.w.do(http.MethodGet, "/auth/login", nil)
}

func (s *steps) startRegistration(invitation string) error {
	return s.w.do(http.MethodGet, "/auth/register?invitation="+invitation, nil)
}

func (s *steps) redirectedToProvider(page string) error {
	if err := s.statusIs(http.StatusFound); err != nil {
		return err
	}
	loc, err := s.w.location()
	if err != nil {
		return err
	}
	suffix := "/authorize"
	if page == "registration" {
		suffix = "/registrations"
	}
	if !strings.HasPrefix(loc.String(), s.w.idp.URL) || !strings.HasSuffix(loc.Path, suffix) {
		return fmt.Errorf("expected provider %s page, got %s", page, loc)
	}
	q := loc.Query()
	if q.Get("code_challenge_method") != "S256" {
		return fmt.Errorf("expected S256 challenge, got %q", q.Get("code_challenge_method"))
	}
	s.w.mu.Lock()
	s.w.challenge = q.Get("code_challenge")
	s.w.mu.Unlock()
	s.w.state = q.Get("state")
	if s.w.state == "" || s.w.challenge == "" {
		return fmt.Errorf("authorize URL lacks state or challenge: %s", loc)
	}
	return nil
}

func (s *steps) callback(code string) error {
	return s.callbackWithState(code, s.w.state)
}

func (s *steps) callbackWithState(code, state string) error {
	s.w.lastCallback = "/auth/callback?code=" + code + "&state=" + state
	return s.w.do(http.MethodGet, s.w.lastCallback, nil)
}

func (s *steps) callbackWithError(description string) error {
	return s.w.do(http.MethodGet, "/auth/callback?error=access_denied&error_description="+
		strings.ReplaceAll(description, " ", "+"), nil)
}

func (s *steps) replayCallback() error {
	if s.w.lastCallback == "" {
		return fmt.Errorf("no callback to replay")
	}
	return s.w.do(http.MethodGet, s.w.lastCallback, nil)
}

func (s *steps) signIn() error {
	if err := s.startLogin(); err != nil {
		return err
	}
	if err := s.redirectedToProvider("login"); err != nil {
		return err
	}
	if err := s.callback(validCode); err != nil {
		return err
	}
	return s.redirectedTo("/")
}

func (s *steps) logout() error {
	return s.w.do(http.MethodPost, "/auth/logout", nil)
}

func (s *steps) get(path string) error {
	return s.w.do(http.MethodGet, path, nil)
}

func (s *steps) send(method, path string, body *godog.DocString) error {
	return s.w.do(method, path, strings.NewReader(body.Content))
}

func (s *steps) sendEmpty(method, path string) error {
	return s.w.do(method, path, nil)
}

func (s *steps) statusIs(status int) error {
	if s.w.resp == nil {
		return fmt.Errorf("no response recorded")
	}
	if s.w.resp.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, s.w.resp.StatusCode, s.w.body)
	}
	return nil
}

func (s *steps) redirectedTo(target string) error {
	if err := s.statusIs(http.StatusFound); err != nil {
		return err
	}
	if got := s.w.resp.Header.Get("Location"); got != target {
		return fmt.Errorf("expected redirect to %q, got %q", target, got)
	}
	return nil
}

func (s *steps) redirectedToLoginError(msg string) error {
	if err := s.statusIs(http.StatusFound); err != nil {
		return err
	}
	loc, err := s.w.location()
	if err != nil {
		return err
	}
	if loc.Path != "/login" || loc.Query().Get("error") != msg {
		return fmt.Errorf("expected /login with error %q, got %s", msg, loc)
	}
	return nil
}

func (s *steps) redirectedToLogout() error {
	if err := s.statusIs(http.StatusFound); err != nil {
		return err
	}
	loc, err := s.w.location()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(loc.String(), s.w.idp.URL) || !strings.HasSuffix(loc.Path, "/logout") {
		return fmt.Errorf("expected provider logout page, got %s", loc)
	}
	if loc.Query().Get("id_token_hint") != "id-token-1" {
		return fmt.Errorf("expected id_token_hint on logout URL, got %s", loc)
	}
	return nil
}

func (s *steps) jsonFieldIs(path, want string) error {
	var doc any
	if err := json.Unmarshal(s.w.body, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return fmt.Errorf("field %q: %q is not an object", path, part)
		}
		cur = obj[part]
	}
	if got := fmt.Sprint(cur); got != want {
		return fmt.Errorf("field %q: expected %q, got %q", path, want, got)
	}
	return nil
}

func (s *steps) userSynced() error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.syncCalls == 0 {
		return fmt.Errorf("backend never received /auth/sync")
	}
	return nil
}

func (s *steps) backendRequest() (*http.Request, error) {
	req := s.w.lastBackendRequest()
	if req == nil {
		return nil, fmt.Errorf("backend received no API request")
	}
	return req, nil
}

func (s *steps) backendGotBearer() error {
	req, err := s.backendRequest()
	if err != nil {
		return err
	}
	s.w.mu.Lock()
	want := "Bearer " + s.w.issued
	s.w.mu.Unlock()
	if got := req.Header.Get("Authorization"); got != want {
		return fmt.Errorf("expected the last issued access token, got %q", got)
	}
	return nil
}

func (s *steps) backendGotBusiness(businessID string) error {
	req, err := s.backendRequest()
	if err != nil {
		return err
	}
	if got := req.Header.Get(proxy.HeaderBusinessID); got != businessID {
		return fmt.Errorf("expected business %q, got %q", businessID, got)
	}
	return nil
}

func (s *steps) backendGotNoCookies() error {
	req, err := s.backendRequest()
	if err != nil {
		return err
	}
	if c := req.Header.Get("Cookie"); c != "" {
		return fmt.Errorf("session cookie leaked to backend: %q", c)
	}
	return nil
}

func (s *steps) auditContains(action string) error {
	events, err := s.w.audit.ListAll(context.Background())
	if err != nil {
		return err
	}
	for _, e := range events {
		if e.Action == action {
			return nil
		}
	}
	return fmt.Errorf("audit trail has no %q event (%d events)", action, len(events))
}
