// Package metrics exposes pipeline activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"analisis-mcp/internal/analysis"
)

const Namespace = "analisis"

// Recorder implements analysis.Observer.
type Recorder struct {
	StageDuration  *prometheus.HistogramVec
	StageFailures  *prometheus.CounterVec
	CasesTotal     *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram

	gatherer prometheus.Gatherer
}

var _ analysis.Observer = (*Recorder)(nil)

// NewRecorder registers the pipeline metrics on reg. A nil reg uses a fresh
// private registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Recorder{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"stage"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "stage",
			Name:      "failures_total",
			Help:      "Pipeline stages that returned an error",
		}, []string{"stage"}),
		CasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cases_generated_total",
			Help:      "Case instances generated per topic module",
		}, []string{"modulo"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Finished analysis runs by state and semaforo",
		}, []string{"estado", "semaforo"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of analysis runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		gatherer: reg,
	}
}

func (r *Recorder) StageFinished(stage string, d time.Duration, err error) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		r.StageFailures.WithLabelValues(stage).Inc()
	}
}

func (r *Recorder) CasesGenerated(module string, n int) {
	r.CasesTotal.WithLabelValues(module).Add(float64(n))
}

func (r *Recorder) RunFinished(state analysis.RunState, semaforo string, d time.Duration) {
	if semaforo == "" {
		semaforo = "ninguno"
	}
	r.RunsTotal.WithLabelValues(string(state), semaforo).Inc()
	r.RunDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
