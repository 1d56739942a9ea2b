package counter

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Adds is the total number of successful adds.
	Adds prometheus.Counter

	// Conflicts is the total number of compare-and-swap operations that
	// failed as the counter was concurrently updated.
	Conflicts prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Adds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "counter",
				Name:      "adds_total",
				Help:      "Total number of successful adds",
			},
		),
		Conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "counter",
				Name:      "conflicts_total",
				Help:      "Total number of compare-and-swap conflicts",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Adds,
		m.Conflicts,
	)
}
