package broadcast

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Values is the number of known values.
	Values prometheus.Gauge

	// ValuesSubmitted is the total number of values submitted by clients.
	ValuesSubmitted prometheus.Counter

	// ValuesReceived is the total number of values received from other
	// nodes, including duplicates.
	ValuesReceived prometheus.Counter

	// Rounds is the total number of completed rounds.
	Rounds prometheus.Counter

	// RoundLatency is the duration of each round.
	RoundLatency prometheus.Histogram

	// Transfers is the total number of transfers sent, labelled by result.
	Transfers *prometheus.CounterVec

	// TransferValues is the total number of values sent in transfers.
	TransferValues prometheus.Counter

	// CursorConflicts is the total number of acknowledged transfers whose
	// cursor had already been advanced by a concurrent round.
	CursorConflicts prometheus.Counter

	// SubmitLatency is the time to acknowledge a submitted value.
	SubmitLatency prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		Values: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "values",
				Help:      "Number of known values",
			},
		),
		ValuesSubmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "values_submitted_total",
				Help:      "Total number of values submitted by clients",
			},
		),
		ValuesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "values_received_total",
				Help:      "Total number of values received from other nodes",
			},
		),
		Rounds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "rounds_total",
				Help:      "Total number of completed rounds",
			},
		),
		RoundLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "round_latency_seconds",
				Help:      "Round latency",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "transfers_total",
				Help:      "Total number of transfers",
			},
			[]string{"result"},
		),
		TransferValues: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "transfer_values_total",
				Help:      "Total number of values sent in transfers",
			},
		),
		CursorConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "cursor_conflicts_total",
				Help:      "Total number of skipped cursor advances",
			},
		),
		SubmitLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rumor",
				Subsystem: "broadcast",
				Name:      "submit_latency_seconds",
				Help:      "Submit latency",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Values,
		m.ValuesSubmitted,
		m.ValuesReceived,
		m.Rounds,
		m.RoundLatency,
		m.Transfers,
		m.TransferValues,
		m.CursorConflicts,
		m.SubmitLatency,
	)
}
