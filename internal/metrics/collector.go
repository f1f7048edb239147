package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is the cache state exported on each scrape.
type Snapshot struct {
	// Listings is the number of cached listing entries
	Listings int
	// StaleListings is the number of listing entries marked stale
	StaleListings int
	// DetailCached reports whether a file detail entry is held
	DetailCached bool

	// StatsCached reports whether the fields below come from a cached response
	StatsCached     bool
	TotalFiles      int
	UniqueFiles     int
	TotalSize       int64
	ActualSize      int64
	SpaceSaved      int64
	PercentageSaved float64
}

// SnapshotSource provides the state read by StoreCollector. It must not block
// on the network.
type SnapshotSource interface {
	MetricsSnapshot() Snapshot
}

// StoreCollector exports cache occupancy and the last known storage statistics on each scrape
type StoreCollector struct {
	source SnapshotSource

	// Metric descriptors
	cachedListings   *prometheus.Desc
	staleListings    *prometheus.Desc
	detailCached     *prometheus.Desc
	storageTotal     *prometheus.Desc
	storageActual    *prometheus.Desc
	storageSaved     *prometheus.Desc
	storageSavedPct  *prometheus.Desc
	filesTotal       *prometheus.Desc
	filesUniqueTotal *prometheus.Desc
}

// NewStoreCollector creates a new collector
func NewStoreCollector(source SnapshotSource) *StoreCollector {
	return &StoreCollector{
		source: source,
		cachedListings: prometheus.NewDesc(
			"filevault_client_cached_listings",
			"Number of cached file listings",
			nil, nil,
		),
		staleListings: prometheus.NewDesc(
			"filevault_client_stale_listings",
			"Number of cached file listings marked stale",
			nil, nil,
		),
		detailCached: prometheus.NewDesc(
			"filevault_client_detail_cached",
			"Whether a file detail entry is cached (0 or 1)",
			nil, nil,
		),
		storageTotal: prometheus.NewDesc(
			"filevault_storage_total_bytes",
			"Logical size of all stored files in bytes, as last reported by the server",
			nil, nil,
		),
		storageActual: prometheus.NewDesc(
			"filevault_storage_actual_bytes",
			"Physical size of stored content in bytes, as last reported by the server",
			nil, nil,
		),
		storageSaved: prometheus.NewDesc(
			"filevault_storage_saved_bytes",
			"Bytes saved by deduplication, as last reported by the server",
			nil, nil,
		),
		storageSavedPct: prometheus.NewDesc(
			"filevault_storage_saved_percent",
			"Percentage of logical size saved by deduplication (0-100)",
			nil, nil,
		),
		filesTotal: prometheus.NewDesc(
			"filevault_files",
			"Number of files, as last reported by the server",
			nil, nil,
		),
		filesUniqueTotal: prometheus.NewDesc(
			"filevault_unique_files",
			"Number of physically distinct files, as last reported by the server",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cachedListings
	ch <- c.staleListings
	ch <- c.detailCached
	ch <- c.storageTotal
	ch <- c.storageActual
	ch <- c.storageSaved
	ch <- c.storageSavedPct
	ch <- c.filesTotal
	ch <- c.filesUniqueTotal
}

// Collect reads the current snapshot and sends it to Prometheus.
// Storage gauges are omitted until statistics have been fetched once.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.MetricsSnapshot()

	detail := 0.0
	if s.DetailCached {
		detail = 1
	}

	ch <- prometheus.MustNewConstMetric(c.cachedListings, prometheus.GaugeValue, float64(s.Listings))
	ch <- prometheus.MustNewConstMetric(c.staleListings, prometheus.GaugeValue, float64(s.StaleListings))
	ch <- prometheus.MustNewConstMetric(c.detailCached, prometheus.GaugeValue, detail)

	if !s.StatsCached {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.storageTotal, prometheus.GaugeValue, float64(s.TotalSize))
	ch <- prometheus.MustNewConstMetric(c.storageActual, prometheus.GaugeValue, float64(s.ActualSize))
	ch <- prometheus.MustNewConstMetric(c.storageSaved, prometheus.GaugeValue, float64(s.SpaceSaved))
	ch <- prometheus.MustNewConstMetric(c.storageSavedPct, prometheus.GaugeValue, s.PercentageSaved)
	ch <- prometheus.MustNewConstMetric(c.filesTotal, prometheus.GaugeValue, float64(s.TotalFiles))
	ch <- prometheus.MustNewConstMetric(c.filesUniqueTotal, prometheus.GaugeValue, float64(s.UniqueFiles))
}
