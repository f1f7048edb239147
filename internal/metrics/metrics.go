package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// APIRequestsTotal counts backend requests by method, normalized path and status code
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_client_api_requests_total",
			Help: "Total number of requests sent to the FileVault API",
		},
		[]string{"method", "path", "status"},
	)

	// CacheLookupsTotal counts cache reads by cache (listing, details, stats) and result (hit, miss)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_client_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"cache", "result"},
	)

	// FetchesTotal counts completed fetches by cache and outcome (applied, discarded, error)
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_client_fetches_total",
			Help: "Total number of cache fetches by outcome",
		},
		[]string{"cache", "outcome"},
	)

	// MutationsTotal counts mutations by operation (delete, upload) and final state
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_client_mutations_total",
			Help: "Total number of mutations by final state",
		},
		[]string{"operation", "state"},
	)

	// InvalidationsTotal counts cache invalidations by prefix
	InvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_client_invalidations_total",
			Help: "Total number of cache invalidations",
		},
		[]string{"prefix"},
	)

	// DebounceCommitsTotal counts debounced view changes that produced a request
	DebounceCommitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filevault_client_debounce_commits_total",
			Help: "Total number of debounced search/filter commits",
		},
	)

	// WatchUploadsTotal counts uploads triggered by the directory watcher by status
	WatchUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_client_watch_uploads_total",
			Help: "Total number of uploads triggered by the directory watcher",
		},
		[]string{"status"},
	)
)

// Histogram metrics (distributions)
var (
	// APIRequestDuration tracks backend request latency by method and path
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filevault_client_api_request_duration_seconds",
			Help:    "FileVault API request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// UploadSizeBytes tracks distribution of uploaded file sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "filevault_client_upload_size_bytes",
			Help: "Distribution of uploaded file sizes in bytes",
			Buckets: []float64{
				1024,         // 1 KB
				10240,        // 10 KB
				102400,       // 100 KB
				1048576,      // 1 MB
				10485760,     // 10 MB
				104857600,    // 100 MB
				1073741824,   // 1 GB
				10737418240,  // 10 GB
				107374182400, // 100 GB
			},
		},
	)
)

// Gauge metrics
var (
	// APIRequestsInFlight is the number of backend requests currently outstanding
	APIRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filevault_client_api_requests_in_flight",
			Help: "Number of FileVault API requests in flight",
		},
	)
)

// Storage and cache gauges are defined in collector.go as they are read from the store on scrape
