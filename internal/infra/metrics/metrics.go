package metrics

import (
	"net/http"
	"strconv"
	"time"

	customErrors "github.com/Morphiu/Squad-Yangu/internal/domain/auth/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth"

type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	authEvents *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Authentication flow outcomes.",
		}, []string{"flow", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.authEvents,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// AuthEvent counts one run of flow, labelled by how it ended.
func (m *Metrics) AuthEvent(flow string, err error) {
	m.authEvents.WithLabelValues(flow, Outcome(err)).Inc()
}

func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case customErrors.IsInvalidArgument(err):
		return "invalid_argument"
	case customErrors.IsAlreadyExists(err):
		return "already_exists"
	case customErrors.IsInvalidCredentials(err):
		return "invalid_credentials"
	case customErrors.IsInvalidToken(err):
		return "invalid_token"
	case customErrors.IsNotFound(err):
		return "not_found"
	case customErrors.IsInvalidResetToken(err):
		return "invalid_reset_token"
	case customErrors.IsTooManyRequests(err):
		return "throttled"
	case customErrors.IsEmailDelivery(err):
		return "email_failed"
	default:
		return "internal"
	}
}
