package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method and status code.",
		},
		[]string{"service", "route", "method", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds by route and method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "route", "method"},
	)
	requestsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "api",
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(requestsTotal, requestDuration, requestsInFlight)

	return &APIMetrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		requestDuration:  requestDuration,
		requestsInFlight: requestsInFlight,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) ObserveRequest(service, route, method string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(service, route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(service, route, method).Observe(elapsed.Seconds())
}

func (m *APIMetrics) RequestStarted() {
	m.requestsInFlight.Inc()
}

func (m *APIMetrics) RequestFinished() {
	m.requestsInFlight.Dec()
}
