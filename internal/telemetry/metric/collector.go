package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/wasmsnap-go/internal/storage"
)

// StoreCollector reports the artifacts held by a store at scrape time.
type StoreCollector struct {
	store storage.Store

	artifacts *prometheus.Desc
	bytes     *prometheus.Desc
	snapshots *prometheus.Desc
}

// NewStoreCollector creates a collector over store. backend labels the
// series so file and badger stores can be told apart.
func NewStoreCollector(store storage.Store, backend string) *StoreCollector {
	labels := prometheus.Labels{"backend": backend}
	return &StoreCollector{
		store: store,
		artifacts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "artifacts"),
			"Artifacts held by the store by kind",
			[]string{"kind"}, labels),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "bytes"),
			"Bytes held by the store by artifact kind",
			[]string{"kind"}, labels),
		snapshots: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "snapshots"),
			"Snapshots with a control artifact in the store",
			nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.artifacts
	ch <- c.bytes
	ch <- c.snapshots
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	infos, err := c.store.List()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.artifacts, err)
		return
	}

	counts := map[storage.Kind]int{}
	sizes := map[storage.Kind]int64{}
	for _, info := range infos {
		_, kind, ok := storage.ParseArtifact(info.Name)
		if !ok {
			continue
		}
		counts[kind]++
		sizes[kind] += info.Size
	}

	for _, kind := range []storage.Kind{storage.KindSnap, storage.KindBin, storage.KindMeta} {
		ch <- prometheus.MustNewConstMetric(c.artifacts, prometheus.GaugeValue, float64(counts[kind]), string(kind))
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(sizes[kind]), string(kind))
	}
	ch <- prometheus.MustNewConstMetric(c.snapshots, prometheus.GaugeValue, float64(counts[storage.KindSnap]))
}
