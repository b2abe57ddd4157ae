package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"

	"rentgate/internal/auth/adapters"
	"rentgate/internal/auth/provider"
	"rentgate/internal/auth/service"
	"rentgate/internal/auth/store/codes"
	"rentgate/internal/auth/store/kv"
	"rentgate/internal/auth/store/tokens"
	"rentgate/internal/gateway/proxy"
	"rentgate/internal/platform/config"
	"rentgate/internal/platform/httpserver"
	"rentgate/internal/platform/logger"
	"rentgate/internal/platform/metrics"
	"rentgate/internal/platform/postgres"
	redisclient "rentgate/internal/platform/redis"
	httptransport "rentgate/internal/transport/http"
	audit "rentgate/pkg/platform/audit"
	"rentgate/pkg/platform/audit/publisher"
	kafkasink "rentgate/pkg/platform/audit/publishers/kafka"
	"rentgate/pkg/platform/audit/publishers/logsink"
	"rentgate/pkg/platform/httputil"
	"rentgate/pkg/platform/middleware/session"
)

// main wires the gateway and keeps the server lifecycle small. Flow logic lives
// in internal/auth/service.
func main() {
	if err := run(); err != nil {
		slog.Error("rentgate exited", "error", err)
		os.Exit(1)
	}
}

// infra holds the resources that need closing on shutdown.
type infra struct {
	store   kv.Store
	codes   service.CodeCache
	sweeper kv.Sweeper
	redis   *redisclient.Client
	db      *sql.DB
	kafka   *kgo.Client
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.close()

	var tokenOpts []tokens.Option
	if cfg.TokenSealingKey != "" {
		sealer, err := tokens.NewSealer(cfg.TokenSealingKey)
		if err != nil {
			return fmt.Errorf("TOKEN_SEALING_KEY: %w", err)
		}
		tokenOpts = append(tokenOpts, tokens.WithSealer(sealer))
	}
	tokenStore := tokens.New(res.store, cfg.Session.DurableTTL, tokenOpts...)

	sink, err := buildAuditSink(ctx, cfg, log, res)
	if err != nil {
		return err
	}
	auditPublisher := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.Audit.Buffer),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	idp := provider.New(provider.Config{
		BaseURL:      cfg.OIDC.BaseURL,
		Realm:        cfg.OIDC.Realm,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		PublicOrigin: cfg.PublicOrigin,
		Timeout:      cfg.OIDC.Timeout,
	})
	endpoints := idp.Endpoints()
	log.Info("identity provider configured",
		"authorize", endpoints.Authorize,
		"token", endpoints.Token,
		"logout", endpoints.Logout,
		"redirect_uri", idp.RedirectURI(),
	)
	syncer := adapters.NewBackendUserSync(cfg.BackendURL, cfg.SyncTimeout,
		adapters.WithSyncLogger(log),
	)

	authService := service.New(res.store, tokenStore, idp, res.codes,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		service.WithUserSync(syncer),
		service.WithTransientTTL(cfg.Session.TransientTTL),
		service.WithVerifierLength(cfg.OIDC.PKCEVerifierLength),
		service.WithTracerProvider(otel.GetTracerProvider()),
	)

	apiProxy, err := proxy.New(cfg.BackendURL, "/api", authService, log)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:    authService,
		Proxy:   apiProxy,
		Health:  healthHandler(res),
		Metrics: promhttp.Handler(),
		Cookie: session.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.SecureCookies(),
			MaxAge: cfg.Session.DurableTTL,
		},
		Logger: log,
	})

	if res.sweeper != nil {
		go sweep(ctx, res.sweeper, cfg.Store.SweepInterval, log)
	}

	srv := httpserver.New(cfg.Addr, router, cfg.HTTP)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting rentgate",
			"addr", cfg.Addr,
			"store", cfg.Store.Backend,
			"audit_sink", cfg.Audit.Sink,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildStores(ctx context.Context, cfg config.Server) (*infra, error) {
	res := &infra{}
	switch cfg.Store.Backend {
	case config.StoreRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		res.redis = client
		res.store = kv.NewRedis(client.Client)
		res.codes = codes.NewRedis(client.Client, codes.WithRedisWindow(cfg.Session.DedupeWindow))
		return res, nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		res.db = db
		pg := kv.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			res.close()
			return nil, fmt.Errorf("migrate kv store: %w", err)
		}
		res.store = pg
		res.sweeper = pg
	default:
		mem := kv.NewInMemory()
		res.store = mem
		res.sweeper = mem
	}
	res.codes = codes.NewInMemory(codes.WithWindow(cfg.Session.DedupeWindow))
	return res, nil
}

func buildAuditSink(ctx context.Context, cfg config.Server, log *slog.Logger, res *infra) (audit.Sink, error) {
	if cfg.Audit.Sink != config.AuditKafka {
		return logsink.NewSink(log), nil
	}
	client, err := kafkasink.NewClient(cfg.Audit.Brokers)
	if err != nil {
		return nil, err
	}
	res.kafka = client
	if err := kafkasink.EnsureTopic(ctx, client, cfg.Audit.Topic, 1); err != nil {
		log.Warn("audit topic not ensured", "topic", cfg.Audit.Topic, "error", err)
	}
	return kafkasink.NewSink(client, cfg.Audit.Topic), nil
}

// sweep removes expired keys from backends without native expiry.
func sweep(ctx context.Context, sweeper kv.Sweeper, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := sweeper.DeleteExpired(ctx, now)
			if err != nil {
				log.Warn("sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("swept expired keys", "count", n)
			}
		}
	}
}

func healthHandler(res *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if res.redis != nil {
			if err := res.redis.Health(r.Context()); err != nil {
				status["redis"] = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		if res.db != nil {
			if err := res.db.PingContext(r.Context()); err != nil {
				status["postgres"] = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	}
}
