package e2e

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"rentgate/internal/auth/adapters"
	"rentgate/internal/auth/provider"
	"rentgate/internal/auth/service"
	"rentgate/internal/auth/store/codes"
	"rentgate/internal/auth/store/kv"
	"rentgate/internal/auth/store/tokens"
	"rentgate/internal/gateway/proxy"
	"rentgate/internal/platform/metrics"
	httptransport "rentgate/internal/transport/http"
	"rentgate/pkg/platform/audit/publisher"
	auditmemory "rentgate/pkg/platform/audit/store/memory"
	"rentgate/pkg/platform/middleware/session"
)

const (
	validCode   = "valid-code"
	testSubject = "user-1"
	realm       = "rentals"
)

// world is one scenario: a fake identity provider, a fake rental backend and the
// gateway between them, driven by a browser-like client that keeps cookies and
// never follows redirects.
type world struct {
	idp     *httptest.Server
	backend *httptest.Server
	gateway *httptest.Server
	client  *http.Client
	audit   *auditmemory.InMemoryStore

	resp         *http.Response
	body         []byte
	state        string
	challenge    string
	lastCallback string

	mu              sync.Mutex
	backendRequests []*http.Request
	syncCalls       int
	issued          string
}

func newWorld() *world {
	w := &world{audit: auditmemory.NewInMemoryStore()}
	w.idp = httptest.NewServer(http.HandlerFunc(w.serveIdP))
	w.backend = httptest.NewServer(http.HandlerFunc(w.serveBackend))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kv.NewInMemory()
	tokenStore := tokens.New(store, time.Hour)
	idp := provider.New(provider.Config{
		BaseURL:      w.idp.URL,
		Realm:        realm,
		ClientID:     "rental-web",
		PublicOrigin: "http://rentgate.test",
		Timeout:      5 * time.Second,
	})
	auth := service.New(store, tokenStore, idp, codes.NewInMemory(),
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher.NewPublisher(w.audit)),
		service.WithMetrics(metrics.New(prometheus.NewRegistry())),
		service.WithUserSync(adapters.NewBackendUserSync(w.backend.URL, 2*time.Second,
			adapters.WithSyncLogger(logger))),
	)
	apiProxy, err := proxy.New(w.backend.URL, "/api", auth, logger)
	if err != nil {
		panic(err)
	}
	w.gateway = httptest.NewServer(httptransport.NewRouter(httptransport.Deps{
		Auth:   auth,
		Proxy:  apiProxy,
		Cookie: session.CookieConfig{Name: "rentgate_sid", MaxAge: time.Hour},
		Logger: logger,
	}))

	jar, _ := cookiejar.New(nil)
	w.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 10 * time.Second,
	}
	return w
}

func (w *world) close() {
	w.gateway.Close()
	w.backend.Close()
	w.idp.Close()
}

func (w *world) do(method, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(context.Background(), method, w.gateway.URL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	w.resp = resp
	w.body, err = io.ReadAll(resp.Body)
	return err
}

func (w *world) accessToken(extra jwt.MapClaims) string {
	claims := jwt.MapClaims{
		"sub":                testSubject,
		"preferred_username": "owner",
		"email":              "owner@example.com",
		"exp":                time.Now().Add(5 * time.Minute).Unix(),
		"realm_access":       map[string]any{"roles": []string{"owner"}},
		"business_ids":       []string{"biz-1", "biz-2"},
	}
	for k, v := range extra {
		claims[k] = v
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("idp-key"))
	return tok
}

func (w *world) serveIdP(rw http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/token") || r.Method != http.MethodPost {
		http.NotFound(rw, r)
		return
	}
	_ = r.ParseForm()
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != validCode {
			writeOAuthError(rw, "invalid_grant", "Code not valid")
			return
		}
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		w.mu.Lock()
		challenge := w.challenge
		w.mu.Unlock()
		if base64.RawURLEncoding.EncodeToString(sum[:]) != challenge {
			writeOAuthError(rw, "invalid_grant", "PKCE verification failed")
			return
		}
		w.writeTokens(rw, w.accessToken(nil), "refresh-1")
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "" {
			writeOAuthError(rw, "invalid_grant", "Token is not active")
			return
		}
		w.writeTokens(rw, w.accessToken(jwt.MapClaims{"preferred_username": "owner-refreshed"}), "refresh-2")
	default:
		writeOAuthError(rw, "unsupported_grant_type", "")
	}
}

func (w *world) writeTokens(rw http.ResponseWriter, access, refresh string) {
	w.mu.Lock()
	w.issued = access
	w.mu.Unlock()
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"id_token":      "id-token-1",
		"token_type":    "Bearer",
		"expires_in":    300,
	})
}

func writeOAuthError(rw http.ResponseWriter, code, desc string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(rw).Encode(map[string]string{"error": code, "error_description": desc})
}

func (w *world) serveBackend(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch r.URL.Path {
	case "/auth/sync":
		w.syncCalls++
		rw.WriteHeader(http.StatusNoContent)
	case "/expired":
		w.backendRequests = append(w.backendRequests, r.Clone(context.Background()))
		rw.WriteHeader(http.StatusUnauthorized)
	default:
		w.backendRequests = append(w.backendRequests, r.Clone(context.Background()))
		rw.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(rw, `{"items":[]}`)
	}
}

func (w *world) lastBackendRequest() *http.Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.backendRequests) == 0 {
		return nil
	}
	return w.backendRequests[len(w.backendRequests)-1]
}

func (w *world) location() (*url.URL, error) {
	return url.Parse(w.resp.Header.Get("Location"))
}
