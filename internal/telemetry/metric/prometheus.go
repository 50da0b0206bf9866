package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "wasmsnap"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Registry holds all snapshot metrics.
type Registry struct {
	registry *prometheus.Registry

	SavesTotal   *prometheus.CounterVec
	LoadsTotal   *prometheus.CounterVec
	SaveDuration *prometheus.HistogramVec
	LoadDuration *prometheus.HistogramVec

	ArtifactBytes *prometheus.CounterVec
	DiffRecords   *prometheus.CounterVec
	RLERecords    *prometheus.CounterVec

	ValuesTruncated  prometheus.Counter
	CompactionsTotal prometheus.Counter
}

// NewRegistry creates a registry with the snapshot metrics and the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		SavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Snapshot saves by strategy and result",
		}, []string{"strategy", "result"}),
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Snapshot loads by strategy and result",
		}, []string{"strategy", "result"}),
		SaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Snapshot save latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"strategy"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Snapshot load latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"strategy"}),
		ArtifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_written_total",
			Help:      "Bytes written to snapshot artifacts by kind",
		}, []string{"kind"}),
		DiffRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "difflog",
			Name:      "records_total",
			Help:      "Diff log records by operation (written, replayed, skipped)",
		}, []string{"op"}),
		RLERecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rle",
			Name:      "records_total",
			Help:      "RLE records written by type (run, literal)",
		}, []string{"type"}),
		ValuesTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_truncated_total",
			Help:      "Operand values whose high 64 bits were dropped on save",
		}),
		CompactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "difflog",
			Name:      "compactions_total",
			Help:      "Diff log chain compactions",
		}),
	}

	reg.MustRegister(
		r.SavesTotal,
		r.LoadsTotal,
		r.SaveDuration,
		r.LoadDuration,
		r.ArtifactBytes,
		r.DiffRecords,
		r.RLERecords,
		r.ValuesTruncated,
		r.CompactionsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registerer exposes the underlying registry for additional collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for export.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the registry to path in the text exposition format,
// for the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveSave records one save attempt.
func (r *Registry) ObserveSave(strategy string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.SavesTotal.WithLabelValues(strategy, result(err)).Inc()
	r.SaveDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// ObserveLoad records one load attempt.
func (r *Registry) ObserveLoad(strategy string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.LoadsTotal.WithLabelValues(strategy, result(err)).Inc()
	r.LoadDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// AddArtifactBytes counts bytes written to an artifact of kind.
func (r *Registry) AddArtifactBytes(kind string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.ArtifactBytes.WithLabelValues(kind).Add(float64(n))
}

// AddDiffRecords counts diff log records for op.
func (r *Registry) AddDiffRecords(op string, n uint64) {
	if r == nil || n == 0 {
		return
	}
	r.DiffRecords.WithLabelValues(op).Add(float64(n))
}

// AddRLERecords counts RLE runs and literals written.
func (r *Registry) AddRLERecords(runs, literals uint64) {
	if r == nil {
		return
	}
	if runs > 0 {
		r.RLERecords.WithLabelValues("run").Add(float64(runs))
	}
	if literals > 0 {
		r.RLERecords.WithLabelValues("literal").Add(float64(literals))
	}
}

// AddTruncated counts operand values that lost their high bits.
func (r *Registry) AddTruncated(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ValuesTruncated.Add(float64(n))
}

// IncCompactions counts one chain compaction.
func (r *Registry) IncCompactions() {
	if r == nil {
		return
	}
	r.CompactionsTotal.Inc()
}
