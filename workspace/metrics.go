package workspace

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsxc_scans_total",
			Help: "Total number of index+rank passes",
		},
		[]string{"result"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vsxc_scan_duration_seconds",
			Help:    "Time to index and rank the workspace",
			Buckets: prometheus.DefBuckets,
		},
	)

	indexedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vsxc_indexed_files",
			Help: "Number of files in the last published ranked list",
		},
	)

	debounceFires = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsxc_debounce_fires_total",
			Help: "Refreshes triggered by the change debouncer",
		},
	)

	archivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsxc_archives_total",
			Help: "Archive jobs by mode and result",
		},
		[]string{"mode", "result"},
	)

	archiveBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vsxc_archive_bytes_total",
			Help: "Bytes written to completed archives",
		},
	)
)

func recordScan(start time.Time, files int, err error) {
	scanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		scansTotal.WithLabelValues("error").Inc()
		return
	}
	scansTotal.WithLabelValues("ok").Inc()
	indexedFiles.Set(float64(files))
}

func recordArchive(mode ArchiveMode, size int64, err error) {
	if err != nil {
		archivesTotal.WithLabelValues(mode.String(), "error").Inc()
		return
	}
	archivesTotal.WithLabelValues(mode.String(), "ok").Inc()
	archiveBytes.Add(float64(size))
}

// MetricsHandler returns the Prometheus exposition handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
