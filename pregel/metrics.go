package pregel

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics exposes graph execution metrics under the "pregel"
// namespace:
//
//  1. inflight_tasks (gauge): tasks currently executing within a superstep.
//  2. queue_depth (gauge): tasks planned but not yet dispatched.
//  3. task_latency_ms (histogram): per-task execution duration, labeled by
//     run_id, node_name, status.
//  4. retries_total (counter): task retry attempts, labeled by run_id,
//     node_name, reason.
//  5. reducer_errors_total (counter): reducer failures during write
//     application, labeled by run_id, channel.
//  6. backpressure_events_total (counter): labeled by run_id, reason; the
//     engine increments it only with reason checkpoint_write_failed.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := pregel.NewPrometheusMetrics(registry)
//	g, err := pregel.NewGraph(persist.NewMemorySaver(), pregel.WithMetrics(metrics))
type PrometheusMetrics struct {
	inflightTasks prometheus.Gauge
	queueDepth    prometheus.Gauge

	taskLatency *prometheus.HistogramVec

	retries       *prometheus.CounterVec
	reducerErrors *prometheus.CounterVec
	backpressure  *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics registers all pregel metrics with registry. Pass nil
// to use prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.inflightTasks = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "pregel",
		Name:      "inflight_tasks",
		Help:      "Current number of tasks executing concurrently within a superstep",
	})

	pm.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "pregel",
		Name:      "queue_depth",
		Help:      "Number of planned tasks waiting for dispatch in the current superstep",
	})

	pm.taskLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pregel",
		Name:      "task_latency_ms",
		Help:      "Task execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"run_id", "node_name", "status"})

	pm.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pregel",
		Name:      "retries_total",
		Help:      "Cumulative count of task retry attempts",
	}, []string{"run_id", "node_name", "reason"})

	pm.reducerErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pregel",
		Name:      "reducer_errors_total",
		Help:      "Reducer failures while applying a superstep's writes",
	}, []string{"run_id", "channel"})

	pm.backpressure = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pregel",
		Name:      "backpressure_events_total",
		Help:      "Engine backpressure events by reason (the engine reports checkpoint_write_failed)",
	}, []string{"run_id", "reason"})

	return pm
}

func (pm *PrometheusMetrics) RecordTaskLatency(runID, nodeName string, latency time.Duration, status string) {
	if !pm.enabled {
		return
	}
	pm.taskLatency.WithLabelValues(runID, nodeName, status).Observe(float64(latency.Milliseconds()))
}

func (pm *PrometheusMetrics) IncrementRetries(runID, nodeName, reason string) {
	if !pm.enabled {
		return
	}
	pm.retries.WithLabelValues(runID, nodeName, reason).Inc()
}

func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if !pm.enabled {
		return
	}
	pm.queueDepth.Set(float64(depth))
}

func (pm *PrometheusMetrics) UpdateInflightTasks(count int) {
	if !pm.enabled {
		return
	}
	pm.inflightTasks.Set(float64(count))
}

func (pm *PrometheusMetrics) IncrementReducerErrors(runID, channel string) {
	if !pm.enabled {
		return
	}
	pm.reducerErrors.WithLabelValues(runID, channel).Inc()
}

func (pm *PrometheusMetrics) IncrementBackpressure(runID, reason string) {
	if !pm.enabled {
		return
	}
	pm.backpressure.WithLabelValues(runID, reason).Inc()
}

// Disable stops metric recording without unregistering collectors; useful
// in tests that share a registry across cases.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
