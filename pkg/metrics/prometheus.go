package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	staleDrops      *prometheus.CounterVec
	patchesApplied  *prometheus.CounterVec
	mutationsTotal  *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	refreshCycle    prometheus.Histogram
	scopeSwitches   prometheus.Counter
	activeSessions  prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desksync_fetches_total",
				Help: "Total number of domain fetches by result",
			},
			[]string{"domain", "result"},
		),
		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desksync_fetch_duration_seconds",
				Help:    "Duration of domain fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"domain"},
		),
		staleDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desksync_stale_responses_dropped_total",
				Help: "Responses discarded for arriving behind a newer sequence or epoch",
			},
			[]string{"domain"},
		),
		patchesApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desksync_patches_applied_total",
				Help: "Push-event patches applied to the snapshot",
			},
			[]string{"topic"},
		),
		mutationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desksync_mutations_total",
				Help: "Mutations by kind and terminal status",
			},
			[]string{"kind", "status"},
		),
		mutationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desksync_mutation_duration_seconds",
				Help:    "Duration from submission to resolution in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		refreshCycle: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "desksync_refresh_cycle_duration_seconds",
				Help:    "Duration of full refresh cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		scopeSwitches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "desksync_scope_switches_total",
				Help: "View scope changes including inspection clears",
			},
		),
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "desksync_active_sessions",
				Help: "Sessions currently held by the manager",
			},
		),
	}
}

// RecordFetch records one settled domain fetch.
func (r *Recorder) RecordFetch(domain, result string, seconds float64) {
	r.fetchesTotal.WithLabelValues(domain, result).Inc()
	r.fetchDuration.WithLabelValues(domain).Observe(seconds)
}

// RecordStaleDrop records a response discarded by sequence or epoch checks.
func (r *Recorder) RecordStaleDrop(domain string) {
	r.staleDrops.WithLabelValues(domain).Inc()
}

// RecordPatch records a push-event patch applied to the snapshot.
func (r *Recorder) RecordPatch(topic string) {
	r.patchesApplied.WithLabelValues(topic).Inc()
}

// RecordMutation records a mutation reaching a terminal status.
func (r *Recorder) RecordMutation(kind, status string, seconds float64) {
	r.mutationsTotal.WithLabelValues(kind, status).Inc()
	r.mutationLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordRefreshCycle records the duration of a full refresh cycle.
func (r *Recorder) RecordRefreshCycle(seconds float64) {
	r.refreshCycle.Observe(seconds)
}

// RecordScopeSwitch records a view scope change.
func (r *Recorder) RecordScopeSwitch() {
	r.scopeSwitches.Inc()
}

// SetActiveSessions records the current session count.
func (r *Recorder) SetActiveSessions(n int) {
	r.activeSessions.Set(float64(n))
}
