// Package metrics exposes bifrost and storage activity as Prometheus
// collectors on a registry owned by the node.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/bifrost/internal/logs"
)

const namespace = "bifrost"

// Metrics implements bifrost.Metrics and pebblestore.MetricsHook.
type Metrics struct {
	reg *prometheus.Registry

	appends         *prometheus.CounterVec
	appendErrors    *prometheus.CounterVec
	appendDuration  prometheus.Histogram
	recordsRead     *prometheus.CounterVec
	trims           *prometheus.CounterVec
	reconfigs       *prometheus.CounterVec
	storeWrite      prometheus.Histogram
	storeRead       prometheus.Histogram
	storeCommit     prometheus.Histogram
	storeCommitOps  prometheus.Counter
	storeBytesWrite prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appends_total",
			Help:      "Records appended, partitioned by log",
		}, []string{"log_id"}),
		appendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_errors_total",
			Help:      "Failed appends, partitioned by error kind",
		}, []string{"kind"}),
		appendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_duration_seconds",
			Help:      "Latency of successful appends including retries",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		recordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Records returned to readers, partitioned by log",
		}, []string{"log_id"}),
		trims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trims_total",
			Help:      "Effective trims, partitioned by log",
		}, []string{"log_id"}),
		reconfigs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconfigurations_total",
			Help:      "Segment reconfigurations, partitioned by log",
		}, []string{"log_id"}),
		storeWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_duration_seconds",
			Help:      "Latency of single-key Pebble writes",
		}),
		storeRead: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "read_duration_seconds",
			Help:      "Latency of Pebble point reads",
		}),
		storeCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "batch_commit_duration_seconds",
			Help:      "Latency of Pebble batch commits",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		storeCommitOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "batch_ops_total",
			Help:      "Operations committed through Pebble batches",
		}),
		storeBytesWrite: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "batch_bytes_total",
			Help:      "Bytes committed through Pebble batches",
		}),
	}
	m.reg.MustRegister(
		m.appends, m.appendErrors, m.appendDuration, m.recordsRead, m.trims, m.reconfigs,
		m.storeWrite, m.storeRead, m.storeCommit, m.storeCommitOps, m.storeBytesWrite,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// TrackMetadataVersion exports the value of version as bifrost_metadata_version.
func (m *Metrics) TrackMetadataVersion(version func() logs.Version) error {
	return m.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "metadata_version",
		Help:      "Log metadata version observed by this node",
	}, func() float64 { return float64(version()) }))
}

// TrackDiskUsage exports the bytes the store occupies on disk.
func (m *Metrics) TrackDiskUsage(usage func() uint64) error {
	return m.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "disk_usage_bytes",
		Help:      "Bytes used by the Pebble store on disk",
	}, func() float64 { return float64(usage()) }))
}

func label(id logs.LogID) string { return strconv.FormatUint(uint64(id), 10) }

func (m *Metrics) ObserveAppend(logID logs.LogID, records int, elapsed time.Duration) {
	m.appends.WithLabelValues(label(logID)).Add(float64(records))
	m.appendDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) AppendFailed(kind string) { m.appendErrors.WithLabelValues(kind).Inc() }

func (m *Metrics) RecordsRead(logID logs.LogID, n int) {
	m.recordsRead.WithLabelValues(label(logID)).Add(float64(n))
}

func (m *Metrics) Trimmed(logID logs.LogID) { m.trims.WithLabelValues(label(logID)).Inc() }

func (m *Metrics) Reconfigured(logID logs.LogID) { m.reconfigs.WithLabelValues(label(logID)).Inc() }

func (m *Metrics) ObserveWrite(elapsed time.Duration, _ int) { m.storeWrite.Observe(elapsed.Seconds()) }

func (m *Metrics) ObserveRead(elapsed time.Duration, _ int) { m.storeRead.Observe(elapsed.Seconds()) }

func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.storeCommit.Observe(elapsed.Seconds())
	m.storeCommitOps.Add(float64(numOps))
	m.storeBytesWrite.Add(float64(bytes))
}
