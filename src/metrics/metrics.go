// Package metrics exposes Prometheus counters for the authentication paths.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by middleware, the login service and
// the audit logger.
type Recorder interface {
	TokenVerification(outcome string)
	OAuthLogin(provider, outcome string)
	OAuthUpstream(provider, step string, d time.Duration)
	AuditWrite(outcome string)
}

type Collector struct {
	tokenVerifications *prometheus.CounterVec
	oauthLogins        *prometheus.CounterVec
	oauthUpstream      *prometheus.HistogramVec
	auditWrites        *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_token_verifications_total",
			Help: "Session token verifications by outcome.",
		}, []string{"outcome"}),
		oauthLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_oauth_logins_total",
			Help: "OAuth login attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		oauthUpstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgate_oauth_upstream_seconds",
			Help:    "Latency of calls to OAuth providers.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "step"}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_audit_writes_total",
			Help: "Login audit writes by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.tokenVerifications,
		c.oauthLogins,
		c.oauthUpstream,
		c.auditWrites,
	)

	return c
}

func (c *Collector) TokenVerification(outcome string) {
	c.tokenVerifications.WithLabelValues(outcome).Inc()
}

func (c *Collector) OAuthLogin(provider, outcome string) {
	c.oauthLogins.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) OAuthUpstream(provider, step string, d time.Duration) {
	c.oauthUpstream.WithLabelValues(provider, step).Observe(d.Seconds())
}

func (c *Collector) AuditWrite(outcome string) {
	c.auditWrites.WithLabelValues(outcome).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) TokenVerification(string) {}
func (Nop) OAuthLogin(string, string) {}
func (Nop) OAuthUpstream(string, string, time.Duration) {}
func (Nop) AuditWrite(string) {}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
