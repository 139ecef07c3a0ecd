// Package metrics exports resolver dispatch activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conduit-lang/typegraph/runtime/dispatch"
)

// Observer records dispatch transitions and batch flushes.
type Observer struct {
	Invocations  *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	BatchFlushes *prometheus.CounterVec
	BatchSize    *prometheus.HistogramVec
}

// NewObserver creates the metrics and registers them on registry
func NewObserver(registry prometheus.Registerer) *Observer {
	o := &Observer{
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "typegraph_field_invocations_total",
				Help: "Field invocations by dispatch state",
			},
			[]string{"group", "field", "state"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "typegraph_field_duration_seconds",
				Help:    "Field resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"group", "field"},
		),
		BatchFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "typegraph_batch_flushes_total",
				Help: "Batch loader flushes",
			},
			[]string{"field"},
		),
		BatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "typegraph_batch_size",
				Help:    "Parents resolved per batch flush",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"field"},
		),
	}

	registry.MustRegister(o.Invocations, o.Duration, o.BatchFlushes, o.BatchSize)
	return o
}

func group(inv *dispatch.Invocation) string {
	if inv.Group == "" {
		return "models"
	}
	return string(inv.Group)
}

// Transition implements dispatch.Observer
func (o *Observer) Transition(inv *dispatch.Invocation, state dispatch.State) {
	o.Invocations.WithLabelValues(group(inv), inv.Coordinate(), state.String()).Inc()
}

// Finish implements dispatch.Observer
func (o *Observer) Finish(inv *dispatch.Invocation, _ dispatch.State, elapsed time.Duration) {
	o.Duration.WithLabelValues(group(inv), inv.Coordinate()).Observe(elapsed.Seconds())
}

// Flushed implements dispatch.FlushObserver
func (o *Observer) Flushed(loader string, size int) {
	o.BatchFlushes.WithLabelValues(loader).Inc()
	o.BatchSize.WithLabelValues(loader).Observe(float64(size))
}
