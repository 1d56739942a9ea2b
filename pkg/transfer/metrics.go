package transfer

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// ConnectionsInbound is the total number of incoming transfer
	// connections.
	ConnectionsInbound prometheus.Counter

	// ConnectionsOutbound is the total number of outgoing transfer
	// connections.
	ConnectionsOutbound prometheus.Counter

	// BytesInbound is the total number of bytes read from transfer
	// connections.
	BytesInbound prometheus.Counter

	// BytesOutbound is the total number of bytes written to transfer
	// connections.
	BytesOutbound prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsInbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "transfer",
				Name:      "connections_inbound_total",
				Help:      "Total number of incoming transfer connections",
			},
		),
		ConnectionsOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "transfer",
				Name:      "connections_outbound_total",
				Help:      "Total number of outgoing transfer connections",
			},
		),
		BytesInbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "transfer",
				Name:      "bytes_inbound_total",
				Help:      "Total number of read bytes",
			},
		),
		BytesOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "transfer",
				Name:      "bytes_outbound_total",
				Help:      "Total number of written bytes",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.ConnectionsInbound,
		m.ConnectionsOutbound,
		m.BytesInbound,
		m.BytesOutbound,
	)
}
