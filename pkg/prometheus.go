package pkg

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "mfkey"

type Metrics struct {
	Registry *prometheus.Registry

	Sessions        *prometheus.CounterVec
	ParseErrors     prometheus.Counter
	KeysFound       prometheus.Counter
	Buckets         prometheus.Counter
	StatesTested    prometheus.Counter
	SessionDuration prometheus.Histogram
}

// NewMetrics registers the search metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sessions_total",
				Help:      "Captured sessions processed, by result.",
			},
			[]string{"result"},
		),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parse_errors_total",
			Help:      "Capture lines that could not be parsed.",
		}),
		KeysFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "keys_found_total",
			Help:      "Distinct keys added to the registry.",
		}),
		Buckets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "buckets_searched_total",
			Help:      "MSB buckets searched to completion.",
		}),
		StatesTested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "states_tested_total",
			Help:      "Candidate cipher states checked against the second trace.",
		}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "session_duration_seconds",
			Help:      "Time spent recovering one session.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	m.Registry.MustRegister(
		m.Sessions,
		m.ParseErrors,
		m.KeysFound,
		m.Buckets,
		m.StatesTested,
		m.SessionDuration,
	)
	return m
}
