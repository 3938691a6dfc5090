// Package metrics provides Prometheus metrics for report evaluation and
// snapshot loading.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReportRunsTotal counts report evaluations by outcome.
	ReportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "careinsights",
			Subsystem: "report",
			Name:      "runs_total",
			Help:      "Total number of report evaluations by status",
		},
		[]string{"report", "status"},
	)

	// ReportDuration tracks report evaluation time in seconds.
	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "careinsights",
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Duration of report evaluations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"report"},
	)

	// ReportRows tracks how many rows the last evaluation of a report produced.
	ReportRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "careinsights",
			Subsystem: "report",
			Name:      "rows",
			Help:      "Number of rows produced by the most recent evaluation",
		},
		[]string{"report"},
	)

	// SnapshotLoadDuration tracks snapshot load time in seconds.
	SnapshotLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "careinsights",
			Subsystem: "snapshot",
			Name:      "load_duration_seconds",
			Help:      "Duration of snapshot loads in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source", "status"},
	)

	// SnapshotRecords tracks the record count of each table in the last snapshot.
	SnapshotRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "careinsights",
			Subsystem: "snapshot",
			Name:      "records",
			Help:      "Number of records per table in the most recent snapshot",
		},
		[]string{"table"},
	)

	// DataQualityFindings tracks findings from the most recent integrity check
	// of each snapshot source.
	DataQualityFindings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "careinsights",
			Subsystem: "data_quality",
			Name:      "findings",
			Help:      "Number of data-quality findings by type in the most recent check of each source",
		},
		[]string{"source", "type"},
	)
)

// ObserveReport records one report evaluation.
func ObserveReport(report string, started time.Time, rows int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ReportRunsTotal.WithLabelValues(report, status).Inc()
	ReportDuration.WithLabelValues(report).Observe(time.Since(started).Seconds())
	if err == nil {
		ReportRows.WithLabelValues(report).Set(float64(rows))
	}
}

// ObserveSnapshot records one snapshot load and its table sizes.
func ObserveSnapshot(source string, started time.Time, counts map[string]int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SnapshotLoadDuration.WithLabelValues(source, status).Observe(time.Since(started).Seconds())
	for table, n := range counts {
		SnapshotRecords.WithLabelValues(table).Set(float64(n))
	}
}

// Handler exposes the default registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
