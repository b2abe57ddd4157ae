package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the auth flow.
type Metrics struct {
	LoginsStarted         *prometheus.CounterVec
	Callbacks             *prometheus.CounterVec
	Refreshes             *prometheus.CounterVec
	Logouts               prometheus.Counter
	UserSyncFailures      prometheus.Counter
	DuplicateCallbacks    prometheus.Counter
	TokenExchangeDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentgate_logins_started_total",
			Help: "Authorization redirects issued, by kind (login or registration)",
		}, []string{"kind"}),
		Callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentgate_callbacks_total",
			Help: "Authorization callbacks handled, by outcome",
		}, []string{"outcome"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentgate_refresh_total",
			Help: "Token refresh attempts, by outcome",
		}, []string{"outcome"}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_logouts_total",
			Help: "Logouts, including local-only session clears",
		}),
		UserSyncFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_user_sync_failures_total",
			Help: "Failed or skipped best-effort backend user syncs",
		}),
		DuplicateCallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_duplicate_callbacks_total",
			Help: "Callbacks whose authorization code was already processed",
		}),
		TokenExchangeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rentgate_token_exchange_duration_seconds",
			Help:    "Latency of authorization code exchanges",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementLoginsStarted(kind string) {
	m.LoginsStarted.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementCallbacks(outcome string) {
	m.Callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRefreshes(outcome string) {
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLogouts() {
	m.Logouts.Inc()
}

func (m *Metrics) IncrementUserSyncFailures() {
	m.UserSyncFailures.Inc()
}

func (m *Metrics) IncrementDuplicateCallbacks() {
	m.DuplicateCallbacks.Inc()
}

func (m *Metrics) ObserveTokenExchange(start time.Time) {
	m.TokenExchangeDuration.Observe(time.Since(start).Seconds())
}
