// Package observability exports Prometheus metrics for sweeps. Metrics are
// registered with the default registry and can be written to a
// node-exporter textfile at the end of a run.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/glidesim/internal/sim"
	"github.com/san-kum/glidesim/internal/sweep"
)

// StepBuckets spans the step sizes a sweep actually takes, from the first
// cautious 1e-6 step up to steps of several time units.
var StepBuckets = prometheus.ExponentialBuckets(1e-7, 10, 9)

var (
	StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glidesim_steps_total",
			Help: "Step attempts by outcome",
		},
		[]string{"outcome"},
	)

	StepSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glidesim_step_size",
			Help:    "Size of accepted steps",
			Buckets: StepBuckets,
		},
	)

	IterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glidesim_iterations_total",
			Help: "Finished iterations by terminal status",
		},
		[]string{"status"},
	)

	IterationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glidesim_iteration_duration_seconds",
			Help:    "Wall-clock time per iteration",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
		},
	)

	EvaluationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "glidesim_derivative_evaluations_total",
			Help: "Derivative evaluations across all iterations",
		},
	)
)

func init() {
	prometheus.MustRegister(
		StepsTotal,
		StepSize,
		IterationsTotal,
		IterationDuration,
		EvaluationsTotal,
	)
}

// StepObserver counts every attempted step. It holds no state, so one value
// can be shared by all iterations.
var StepObserver sim.Observer = sim.ObserverFunc(func(ev sim.StepEvent) {
	if !ev.Accepted {
		StepsTotal.WithLabelValues("rejected").Inc()
		return
	}
	StepsTotal.WithLabelValues("accepted").Inc()
	StepSize.Observe(ev.Step)
})

// RecordIteration is meant for sweep.Options.OnRecord.
func RecordIteration(rec sweep.Record) {
	IterationsTotal.WithLabelValues(rec.Status.String()).Inc()
	IterationDuration.Observe(rec.Elapsed.Seconds())
	EvaluationsTotal.Add(float64(rec.Evaluations))
}

func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
