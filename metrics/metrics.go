// Package metrics provides Prometheus instrumentation for session
// handlers. It counts handler operations by outcome, records their
// latency and tracks how many records garbage collection removed.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector holds the session handler metrics.
type Collector struct {
	// Operations counts handler operations, labeled by op and result
	// ("ok" or "error").
	Operations *prometheus.CounterVec

	// Duration records handler operation latency in seconds, labeled by op.
	Duration *prometheus.HistogramVec

	// GCRemoved counts records removed by garbage collection.
	GCRemoved prometheus.Counter
}

// NewCollector creates the session metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpstate_session_operations_total",
			Help: "Total number of session handler operations",
		}, []string{"op", "result"}),

		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "httpstate_session_operation_duration_seconds",
			Help:    "Session handler operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),

		GCRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpstate_session_gc_removed_total",
			Help: "Total number of session records removed by garbage collection",
		}),
	}

	reg.MustRegister(c.Operations, c.Duration, c.GCRemoved)
	return c
}

// Handler returns the Prometheus metrics HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (c *Collector) observe(op string, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	c.Operations.WithLabelValues(op, result).Inc()
	c.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
