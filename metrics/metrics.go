// Package metrics exposes the buffer allocator and pipeline as
// Prometheus collectors, registered via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector netpipe registers.
type Metrics struct {
	BufferPoolHits    *prometheus.CounterVec
	BufferPoolMisses  *prometheus.CounterVec
	BufferLiveBytes   prometheus.Gauge
	BufferAllocations prometheus.Counter

	ContextsAdded       prometheus.Counter
	ContextsRemoved     prometheus.Counter
	ExceptionsCaught    *prometheus.CounterVec
	ExceptionsUnhandled prometheus.Counter

	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
}

// AllocationHit implements buffer's poolMetrics, recording an Allocate
// call satisfied from a pooled size class.
func (m *Metrics) AllocationHit(tier string) { m.BufferPoolHits.WithLabelValues(tier).Inc() }

// AllocationMiss implements buffer's poolMetrics, recording an Allocate
// call that required a fresh make([]byte).
func (m *Metrics) AllocationMiss(tier string) { m.BufferPoolMisses.WithLabelValues(tier).Inc() }

// AllocationTotal implements buffer's poolMetrics.
func (m *Metrics) AllocationTotal() { m.BufferAllocations.Inc() }

// LiveBytesAdd implements buffer's poolMetrics, adjusting the gauge of
// bytes currently held by outstanding buffers; n is negative on Free.
func (m *Metrics) LiveBytesAdd(n float64) { m.BufferLiveBytes.Add(n) }

// ContextAdded implements pipeline's Metrics.
func (m *Metrics) ContextAdded() { m.ContextsAdded.Inc() }

// ContextRemoved implements pipeline's Metrics.
func (m *Metrics) ContextRemoved() { m.ContextsRemoved.Inc() }

// ExceptionCaught implements pipeline's Metrics.
func (m *Metrics) ExceptionCaught(context string) { m.ExceptionsCaught.WithLabelValues(context).Inc() }

// ExceptionUnhandled implements pipeline's Metrics.
func (m *Metrics) ExceptionUnhandled() { m.ExceptionsUnhandled.Inc() }

// New registers every collector against reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BufferPoolHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpipe_buffer_pool_hits_total",
				Help: "Allocations satisfied from a pooled size class.",
			},
			[]string{"tier"},
		),
		BufferPoolMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpipe_buffer_pool_misses_total",
				Help: "Allocations that required a fresh make([]byte).",
			},
			[]string{"tier"},
		),
		BufferLiveBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netpipe_buffer_live_bytes",
			Help: "Bytes currently held by outstanding, unreleased buffers.",
		}),
		BufferAllocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "netpipe_buffer_allocations_total",
			Help: "Total buffer allocations across all size classes.",
		}),
		ContextsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "netpipe_pipeline_contexts_added_total",
			Help: "Handler contexts added to any pipeline.",
		}),
		ContextsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "netpipe_pipeline_contexts_removed_total",
			Help: "Handler contexts removed from any pipeline.",
		}),
		ExceptionsCaught: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpipe_pipeline_exceptions_caught_total",
				Help: "exception_caught events fired, by originating context.",
			},
			[]string{"context"},
		),
		ExceptionsUnhandled: factory.NewCounter(prometheus.CounterOpts{
			Name: "netpipe_pipeline_exceptions_unhandled_total",
			Help: "Exceptions that reached Tail without being claimed by a handler.",
		}),
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "netpipe_connections_accepted_total",
			Help: "TCP connections accepted.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netpipe_connections_active",
			Help: "Currently open connections.",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "netpipe_bytes_read_total",
			Help: "Bytes read from the network across all connections.",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "netpipe_bytes_written_total",
			Help: "Bytes written to the network across all connections.",
		}),
	}
}
