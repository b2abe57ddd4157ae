package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Audit sinks.
const (
	AuditLog   = "log"
	AuditKafka = "kafka"
)

// Server is the complete gateway configuration.
type Server struct {
	Addr            string        `env:"RENTGATE_ADDR" envDefault:":8080"`
	PublicOrigin    string        `env:"PUBLIC_ORIGIN" envDefault:"http://localhost:8080"`
	BackendURL      string        `env:"BACKEND_URL" envDefault:"http://localhost:3000"`
	SyncTimeout     time.Duration `env:"SYNC_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TokenSealingKey string        `env:"TOKEN_SEALING_KEY"`

	HTTP     HTTP
	Log      Log
	OIDC     OIDC
	Session  Session
	Store    Store
	Redis    Redis
	Postgres Postgres
	Audit    Audit
}

// HTTP bounds the public listener. WriteTimeout also caps proxied API calls.
type HTTP struct {
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type Log struct {
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
}

// OIDC locates the identity provider realm and the gateway's client registration.
type OIDC struct {
	BaseURL            string        `env:"OIDC_BASE_URL"`
	Realm              string        `env:"OIDC_REALM" envDefault:"rentals"`
	ClientID           string        `env:"OIDC_CLIENT_ID" envDefault:"rental-web"`
	ClientSecret       string        `env:"OIDC_CLIENT_SECRET"`
	Timeout            time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	PKCEVerifierLength int           `env:"PKCE_VERIFIER_LENGTH" envDefault:"64"`
}

// RFC 7636 bounds for the code verifier.
const (
	minVerifierLength = 43
	maxVerifierLength = 128
)

type Session struct {
	CookieName   string        `env:"SESSION_COOKIE" envDefault:"rentgate_sid"`
	TransientTTL time.Duration `env:"TRANSIENT_TTL" envDefault:"10m"`
	DurableTTL   time.Duration `env:"DURABLE_TTL" envDefault:"720h"`
	DedupeWindow time.Duration `env:"CODE_DEDUPE_WINDOW" envDefault:"5m"`
}

type Store struct {
	Backend       string        `env:"STORE_BACKEND" envDefault:"memory"`
	SweepInterval time.Duration `env:"STORE_SWEEP_INTERVAL" envDefault:"1m"`
}

// Redis configures the shared client used by the redis store backend.
type Redis struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type Postgres struct {
	URL          string `env:"DATABASE_URL"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
}

type Audit struct {
	Sink    string   `env:"AUDIT_SINK" envDefault:"log"`
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"AUDIT_TOPIC" envDefault:"rentgate.audit"`
	Buffer  int      `env:"AUDIT_BUFFER" envDefault:"256"`
}

// FromEnv parses the environment, fills derived defaults and validates the result.
func FromEnv() (Server, error) {
	cfg, err := env.ParseAs[Server]()
	if err != nil {
		return Server{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.PublicOrigin = strings.TrimRight(cfg.PublicOrigin, "/")
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	if cfg.OIDC.BaseURL == "" {
		cfg.OIDC.BaseURL = cfg.PublicOrigin + "/idp"
	}
	cfg.OIDC.BaseURL = strings.TrimRight(cfg.OIDC.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (s Server) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"PUBLIC_ORIGIN": s.PublicOrigin,
		"BACKEND_URL":   s.BackendURL,
		"OIDC_BASE_URL": s.OIDC.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if s.OIDC.ClientID == "" {
		errs = append(errs, errors.New("OIDC_CLIENT_ID is required"))
	}
	if n := s.OIDC.PKCEVerifierLength; n < minVerifierLength || n > maxVerifierLength {
		errs = append(errs, fmt.Errorf("PKCE_VERIFIER_LENGTH must be between %d and %d, got %d",
			minVerifierLength, maxVerifierLength, n))
	}
	switch s.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if s.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORE_BACKEND=redis"))
		}
	case StorePostgres:
		if s.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", s.Store.Backend))
	}
	switch s.Audit.Sink {
	case AuditLog:
	case AuditKafka:
		if len(s.Audit.Brokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when AUDIT_SINK=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIT_SINK %q", s.Audit.Sink))
	}
	if s.Session.TransientTTL <= 0 || s.Session.DurableTTL <= 0 {
		errs = append(errs, errors.New("session TTLs must be positive"))
	}
	return errors.Join(errs...)
}

// SecureCookies reports whether the public origin is served over TLS.
func (s Server) SecureCookies() bool {
	return strings.HasPrefix(s.PublicOrigin, "https://")
}
