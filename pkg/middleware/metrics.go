package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// RequestsInFlight is the number of requests currently being handled.
	RequestsInFlight prometheus.Gauge

	// RequestsTotal is the total number of requests, labelled by route,
	// status and method.
	RequestsTotal *prometheus.CounterVec

	// RequestLatency is the request latency, labelled by route, status and
	// method.
	RequestLatency *prometheus.HistogramVec
}

func NewMetrics(subsystem string) *Metrics {
	labels := []string{"route", "status", "method"}
	return &Metrics{
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rumor",
				Subsystem: subsystem,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently handled by this server.",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total requests.",
			},
			labels,
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rumor",
				Subsystem: subsystem,
				Name:      "request_latency_seconds",
				Help:      "Request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			labels,
		),
	}
}

func (m *Metrics) Register(registry prometheus.Registerer) {
	registry.MustRegister(
		m.RequestsInFlight,
		m.RequestsTotal,
		m.RequestLatency,
	)
}

// Handler returns middleware that records metrics for each request.
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()

		// Process request.
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		labels := prometheus.Labels{
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
			"method": c.Request.Method,
		}
		m.RequestsTotal.With(labels).Inc()
		m.RequestLatency.With(labels).Observe(time.Since(start).Seconds())
	}
}
