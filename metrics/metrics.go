// Package metrics exposes connection pool statistics and operation counters
// to prometheus.
package metrics

import (
	"time"

	"github.com/influx6/mgoquery/db/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "mgoquery"

//==============================================================================

// StatsSource defines a pool that reports its statistics.
type StatsSource interface {
	Stats() pool.Stats
}

// PoolCollector reads a pool snapshot on every scrape.
type PoolCollector struct {
	name string
	src  StatsSource

	total        *prometheus.Desc
	idle         *prometheus.Desc
	acquired     *prometheus.Desc
	constructing *prometheus.Desc
	max          *prometheus.Desc
	draining     *prometheus.Desc
	acquires     *prometheus.Desc
	timeouts     *prometheus.Desc
}

// NewPoolCollector returns a collector for src labelled with name.
func NewPoolCollector(name string, src StatsSource) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "pool", metric), help, nil, labels)
	}

	return &PoolCollector{
		name:         name,
		src:          src,
		total:        desc("connections", "Connections currently owned by the pool."),
		idle:         desc("idle_connections", "Connections waiting in the idle set."),
		acquired:     desc("acquired_connections", "Connections currently leased."),
		constructing: desc("constructing_connections", "Connections being dialed."),
		max:          desc("max_connections", "Configured maximum pool size."),
		draining:     desc("draining", "1 while the pool is draining."),
		acquires:     desc("acquires_total", "Successful acquisitions."),
		timeouts:     desc("acquire_timeouts_total", "Acquisitions that exceeded the configured wait."),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.constructing
	ch <- c.max
	ch <- c.draining
	ch <- c.acquires
	ch <- c.timeouts
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	var draining float64
	if st.Draining {
		draining = 1
	}

	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(st.Total))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(st.Idle))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(st.Acquired))
	ch <- prometheus.MustNewConstMetric(c.constructing, prometheus.GaugeValue, float64(st.Constructing))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(st.Max))
	ch <- prometheus.MustNewConstMetric(c.draining, prometheus.GaugeValue, draining)
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(st.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(st.Timeouts))
}

//==============================================================================

// Operations counts and times execution layer operations.
type Operations struct {
	Total    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewOperations registers the operation metrics with reg. A nil reg uses the
// default registerer.
func NewOperations(reg prometheus.Registerer) *Operations {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Operations{
		Total: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Total number of operations by name and outcome.",
			},
			[]string{"operation", "status"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Operation latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Observe records one finished operation. status is usually "ok" or an
// error class such as "validation" or "timeout".
func (o *Operations) Observe(operation, status string, took time.Duration) {
	if o == nil {
		return
	}

	o.Total.WithLabelValues(operation, status).Inc()
	o.Duration.WithLabelValues(operation).Observe(took.Seconds())
}
