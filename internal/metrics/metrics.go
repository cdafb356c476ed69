package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OAuth flow Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the oauth core and HTTP packages.

var (
	OAuthLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_logins_total",
		Help: "Login redirects issued, per provider",
	}, []string{"provider"})

	OAuthExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_exchanges_total",
		Help: "Authorization-code exchange outcomes, per provider",
	}, []string{"provider", "result"})

	OAuthOutbound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_outbound_requests_total",
		Help: "Outbound calls to identity providers, per operation",
	}, []string{"provider", "op"})

	OAuthRevocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_revocations_total",
		Help: "Token revocations performed, per provider",
	}, []string{"provider"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_ms",
		Help:    "Inbound request latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"handler"})
)

// Exchange result labels.
const (
	ResultSuccess       = "success"
	ResultShortCircuit  = "short_circuit"
	ResultStateMismatch = "state_mismatch"
	ResultProviderError = "provider_error"
	ResultTransport     = "transport_error"
)

// Register registers all collectors on the given registry (default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		OAuthLogins, OAuthExchanges, OAuthOutbound, OAuthRevocations, HTTPDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
