// Package metrics holds the Prometheus collectors for the drop-in engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dropin"

// Recorder owns a private registry so tests and multiple engines never collide.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	sessionsCreated    prometheus.Counter
	joins              *prometheus.CounterVec
	leaves             *prometheus.CounterVec
	settlements        *prometheus.CounterVec
	settlementDuration prometheus.Histogram
	externalCalls      *prometheus.CounterVec
	externalDuration   *prometheus.HistogramVec
	storeErrors        prometheus.Counter
	storeConflicts     prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of drop-in sessions created.",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Join attempts by result.",
		}, []string{"result"}),
		leaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaves_total",
			Help:      "Leave attempts by result.",
		}, []string{"result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settled sessions by final status.",
		}, []string{"outcome"}),
		settlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Wall time of a settlement including external calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to the court backend by call and result.",
		}, []string{"call", "result"}),
		externalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Duration of calls to the court backend.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"call"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Session snapshot writes that failed.",
		}),
		storeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_conflicts_total",
			Help:      "Session snapshot writes rejected because another writer saved first.",
		}),
	}

	r.registry.MustRegister(
		r.sessionsCreated,
		r.joins,
		r.leaves,
		r.settlements,
		r.settlementDuration,
		r.externalCalls,
		r.externalDuration,
		r.storeErrors,
		r.storeConflicts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return r
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SessionCreated() {
	if r == nil {
		return
	}
	r.sessionsCreated.Inc()
}

func (r *Recorder) Join(result string) {
	if r == nil {
		return
	}
	r.joins.WithLabelValues(result).Inc()
}

func (r *Recorder) Leave(result string) {
	if r == nil {
		return
	}
	r.leaves.WithLabelValues(result).Inc()
}

func (r *Recorder) Settlement(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.settlements.WithLabelValues(outcome).Inc()
	r.settlementDuration.Observe(duration.Seconds())
}

func (r *Recorder) ExternalCall(call, result string, duration time.Duration) {
	if r == nil {
		return
	}
	r.externalCalls.WithLabelValues(call, result).Inc()
	r.externalDuration.WithLabelValues(call).Observe(duration.Seconds())
}

func (r *Recorder) StoreError() {
	if r == nil {
		return
	}
	r.storeErrors.Inc()
}

func (r *Recorder) StoreConflict() {
	if r == nil {
		return
	}
	r.storeConflicts.Inc()
}
