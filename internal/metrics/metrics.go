// Package metrics counts what a pool run did and writes the counts in the
// Prometheus text format, for batch jobs picked up by a textfile collector.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utkarsh5026/shardpool/pool"
)

// Collector holds the metrics of one run on a private registry.
type Collector struct {
	registry *prometheus.Registry
	channels []string

	UnitsFed       prometheus.Counter
	UnitsProcessed prometheus.Counter
	UnitsFailed    prometheus.Counter
	RecordsMerged  *prometheus.CounterVec
	RecordsLost    *prometheus.CounterVec
	Workers        prometheus.Gauge
	Duration       prometheus.Gauge
}

// New creates a collector. channels names the output channels, in order;
// they become the channel label of the record metrics.
func New(channels []string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		channels: channels,
		UnitsFed: factory.NewCounter(prometheus.CounterOpts{
			Name: "shardpool_units_fed_total",
			Help: "Work units accepted by the pool",
		}),
		UnitsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "shardpool_units_processed_total",
			Help: "Work units transformed successfully",
		}),
		UnitsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "shardpool_units_failed_total",
			Help: "Work units dropped after a transform error",
		}),
		RecordsMerged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardpool_records_merged_total",
			Help: "Records carried into the final output",
		}, []string{"channel"}),
		RecordsLost: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shardpool_records_lost_total",
			Help: "Records that failed to reach the final output",
		}, []string{"channel"}),
		Workers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shardpool_workers",
			Help: "Workers in the pool",
		}),
		Duration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shardpool_run_duration_seconds",
			Help: "Wall time from Start to the end of Close",
		}),
	}
}

// Options returns the pool hooks that feed this collector.
func (c *Collector) Options() []pool.Option {
	return []pool.Option{
		pool.WithOnUnitEnd(c.UnitEnded),
		pool.WithOnRecordMerged(c.RecordMerged),
	}
}

// Fed counts one accepted unit.
func (c *Collector) Fed() {
	c.UnitsFed.Inc()
}

// UnitEnded counts a finished unit.
func (c *Collector) UnitEnded(_ int, err error) {
	if err != nil {
		c.UnitsFailed.Inc()
		return
	}
	c.UnitsProcessed.Inc()
}

// RecordMerged counts one record of the merge.
func (c *Collector) RecordMerged(channel int, err error) {
	if err != nil {
		c.RecordsLost.WithLabelValues(c.label(channel)).Inc()
		return
	}
	c.RecordsMerged.WithLabelValues(c.label(channel)).Inc()
}

// Observe records the pool size and how long the run took.
func (c *Collector) Observe(workers int, elapsed time.Duration) {
	c.Workers.Set(float64(workers))
	c.Duration.Set(elapsed.Seconds())
}

// WriteFile writes every metric to path in the text exposition format.
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) label(channel int) string {
	if channel >= 0 && channel < len(c.channels) {
		return c.channels[channel]
	}
	return strconv.Itoa(channel)
}
