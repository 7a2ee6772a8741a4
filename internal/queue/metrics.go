package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the worker's counters. They register on the registerer the
// worker was built with, so only processes that run a Worker expose them.
type metrics struct {
	processed    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered prometheus.Counter
	reclaimed    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountd_jobs_processed_total",
			Help: "Jobs handled to completion, by type.",
		}, []string{"type"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accountd_jobs_failed_total",
			Help: "Job executions that returned an error, by type.",
		}, []string{"type"}),
		deadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountd_jobs_dead_lettered_total",
			Help: "Jobs parked on the dead-letter stream after exhausting retries.",
		}),
		reclaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: "accountd_jobs_reclaimed_total",
			Help: "Pending entries reclaimed from stalled consumers.",
		}),
	}
}
