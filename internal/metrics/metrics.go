// Package metrics exposes pipeline counters and timings to Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "apkclone"

// Metrics records the outcome of pipeline runs and their stages.
type Metrics interface {
	IncRunsStarted()
	IncRunsCompleted(status string)
	ObserveStageDuration(stage string, durationSeconds float64)
	IncStageFailed(stage, kind string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncRunsStarted()                      {}
func (Noop) IncRunsCompleted(string)              {}
func (Noop) ObserveStageDuration(string, float64) {}
func (Noop) IncStageFailed(string, string)        {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailed   *prometheus.CounterVec
	once          sync.Once
}

// NewProm registers the pipeline collectors on the default registerer.
func NewProm(namespace string) *Prom {
	p := &Prom{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Pipeline runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Pipeline runs completed by status",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency by stage",
			// decompile and build of large APKs take minutes
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		stageFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Pipeline stage failures by stage and failure kind",
		}, []string{"stage", "kind"}),
	}
	p.once.Do(func() {
		prometheus.MustRegister(p.runsStarted, p.runsCompleted, p.stageDuration, p.stageFailed)
	})
	return p
}

func (p *Prom) IncRunsStarted() {
	p.runsStarted.Inc()
}

func (p *Prom) IncRunsCompleted(status string) {
	p.runsCompleted.WithLabelValues(status).Inc()
}

func (p *Prom) ObserveStageDuration(stage string, durationSeconds float64) {
	p.stageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

func (p *Prom) IncStageFailed(stage, kind string) {
	p.stageFailed.WithLabelValues(stage, kind).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
