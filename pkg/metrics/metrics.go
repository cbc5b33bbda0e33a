package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmockd/mockidp/pkg/oauth"
)

// Namespace prefixes every emulator metric.
const Namespace = "mockidp"

// Registry holds the emulator's collectors.
type Registry struct {
	registry *prometheus.Registry
	started  time.Time

	grants        *prometheus.CounterVec
	tokensIssued  *prometheus.CounterVec
	codes         prometheus.Gauge
	refreshTokens prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	uptime        prometheus.GaugeFunc
}

var _ oauth.Recorder = (*Registry)(nil)

// NewRegistry creates a registry with all emulator metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
	}
	r.init()
	r.register()
	return r
}

func (r *Registry) init() {
	r.grants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "grants_total",
			Help:      "Token endpoint requests by grant type and outcome",
		},
		[]string{"grant_type", "outcome"},
	)

	r.tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued by kind",
		},
		[]string{"kind"},
	)

	r.codes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "authorization_codes",
		Help:      "Outstanding authorization codes",
	})

	r.refreshTokens = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "refresh_tokens",
		Help:      "Outstanding refresh tokens",
	})

	r.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	r.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	r.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the server started",
		},
		func() float64 { return time.Since(r.started).Seconds() },
	)
}

func (r *Registry) register() {
	r.registry.MustRegister(
		r.grants,
		r.tokensIssued,
		r.codes,
		r.refreshTokens,
		r.httpRequests,
		r.httpDuration,
		r.uptime,
	)
	r.registry.MustRegister(collectors.NewGoCollector())
	r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer exposes the underlying registry for custom collectors and tests.
func (r *Registry) Gatherer() *prometheus.Registry {
	return r.registry
}

// Label values substituted for client-controlled input.
const (
	GrantTypeUnknown     = "unknown"
	GrantTypeUnsupported = "unsupported"
	MethodOther          = "other"
)

// GrantCompleted implements oauth.Recorder. grantType comes straight from
// the request, so only the supported grant types become label values.
func (r *Registry) GrantCompleted(grantType, outcome string) {
	r.grants.WithLabelValues(grantLabel(grantType), outcome).Inc()
}

func grantLabel(grantType string) string {
	switch grantType {
	case oauth.GrantTypeAuthorizationCode, oauth.GrantTypeClientCredentials,
		oauth.GrantTypeRefreshToken, oauth.GrantTypePassword:
		return grantType
	case "":
		return GrantTypeUnknown
	}
	return GrantTypeUnsupported
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
		http.MethodConnect, http.MethodTrace:
		return method
	}
	return MethodOther
}

// TokenIssued implements oauth.Recorder.
func (r *Registry) TokenIssued(kind string) {
	r.tokensIssued.WithLabelValues(kind).Inc()
}

// StoreSizes implements oauth.Recorder.
func (r *Registry) StoreSizes(codes, refreshTokens int) {
	r.codes.Set(float64(codes))
	r.refreshTokens.Set(float64(refreshTokens))
}

// RecordHTTPRequest records one served request.
func (r *Registry) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	method = methodLabel(method)
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
