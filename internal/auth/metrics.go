package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks token issuance and authentication failures.
type Metrics struct {
	tokensIssued *prometheus.CounterVec
	failures     *prometheus.CounterVec
	rateLimited  prometheus.Counter
}

// NewMetrics creates the auth collectors on registerer. A nil registerer
// yields working but unregistered collectors.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		tokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_auth_tokens_issued_total",
				Help: "Total number of access tokens issued, by grant type",
			},
			[]string{"grant_type"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_auth_failures_total",
				Help: "Total number of failed authentication operations, by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_auth_rate_limited_total",
				Help: "Total number of OAuth endpoint requests rejected by the per-IP rate limiter",
			},
		),
	}
}

func (m *Metrics) observeIssued(grantType string) {
	m.tokensIssued.WithLabelValues(grantType).Inc()
}

func (m *Metrics) observeFailure(operation string, err error) {
	if ae := AsAuthError(err); ae != nil {
		m.failures.WithLabelValues(operation, string(ae.Kind)).Inc()
	}
}

func (m *Metrics) observeRateLimited() {
	m.rateLimited.Inc()
}
