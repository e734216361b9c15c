package probe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the prober.
type Metrics struct {
	Registry          *prometheus.Registry
	CandidatesTotal   *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	RecordsTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	StrategyHitsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	candidates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probe_candidates_total",
			Help: "Candidates tried by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "probe_request_duration_seconds",
			Help:    "HTTP request latency for probe candidates.",
			Buckets: prometheus.DefBuckets,
		},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "probe_records_normalized_total",
			Help: "Total number of product records normalized.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probe_errors_total",
			Help: "Total number of candidate failures by type.",
		},
		[]string{"error_type"},
	)
	strategyHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probe_strategy_hits_total",
			Help: "Extraction strategies that located products.",
		},
		[]string{"strategy"},
	)

	registry.MustRegister(candidates, requestDuration, records, errorsTotal, strategyHits)

	return &Metrics{
		Registry:          registry,
		CandidatesTotal:   candidates,
		RequestDuration:   requestDuration,
		RecordsTotal:      records,
		ErrorsTotal:       errorsTotal,
		StrategyHitsTotal: strategyHits,
	}
}

// IncCandidate increments the candidates counter for an outcome.
func (m *Metrics) IncCandidate(outcome string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddRecords adds n normalized records.
func (m *Metrics) AddRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncStrategy increments the hits for an extraction strategy.
func (m *Metrics) IncStrategy(strategy string) {
	if m == nil {
		return
	}
	m.StrategyHitsTotal.WithLabelValues(strategy).Inc()
}
