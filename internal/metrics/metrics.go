// Package metrics exposes lifecycle counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultApplied = "applied"
)

type Recorder struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	sweep       prometheus.Histogram
	expired     prometheus.Counter
}

// New builds a recorder on its own registry, with Go runtime and process
// collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hustle",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "State transitions attempted, by entity, edge and outcome.",
		}, []string{"entity", "from", "to", "result"}),
		sweep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hustle",
			Name:      "expiry_sweep_duration_seconds",
			Help:      "Wall time of one overdue-task sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hustle",
			Name:      "expired_tasks_total",
			Help:      "Tasks moved to EXPIRED by the sweeper.",
		}),
	}
	reg.MustRegister(
		r.transitions,
		r.sweep,
		r.expired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Transition counts one attempt. result is ResultApplied or an error kind.
func (r *Recorder) Transition(entity, from, to, result string) {
	r.transitions.WithLabelValues(entity, from, to, result).Inc()
}

func (r *Recorder) ObserveSweep(d time.Duration, expired int) {
	r.sweep.Observe(d.Seconds())
	r.expired.Add(float64(expired))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
