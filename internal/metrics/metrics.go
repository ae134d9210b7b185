// Package metrics exposes Prometheus instruments for scan runs.
package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	Scans         *prometheus.CounterVec
	Findings      *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec
	CheckFindings *prometheus.CounterVec
	ArchiveBytes  prometheus.Histogram
	ScanDuration  prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all metrics registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Scans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vtx_security_scans_total",
				Help: "Total number of package scans by outcome",
			},
			[]string{"result"},
		),
		Findings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vtx_security_findings_total",
				Help: "Total number of reported findings",
			},
			[]string{"severity", "category"},
		),
		CheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vtx_security_check_duration_seconds",
				Help:    "Duration of individual checks in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"check"},
		),
		CheckFindings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vtx_security_check_findings_total",
				Help: "Findings emitted per check before deduplication",
			},
			[]string{"check"},
		),
		ArchiveBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vtx_security_archive_bytes",
				Help:    "Size of scanned archives in bytes",
				Buckets: prometheus.ExponentialBuckets(1<<10, 4, 10),
			},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vtx_security_scan_duration_seconds",
				Help:    "End-to-end scan duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// NewRegistry creates a fresh registry with metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// ObserveCheck records one check run. A nil receiver is a no-op.
func (m *Metrics) ObserveCheck(check string, d time.Duration, findings int) {
	if m == nil {
		return
	}
	m.CheckDuration.WithLabelValues(check).Observe(d.Seconds())
	m.CheckFindings.WithLabelValues(check).Add(float64(findings))
}

// ObserveReport records a completed scan.
func (m *Metrics) ObserveReport(r *types.Report, archiveSize int64, d time.Duration) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(ResultLabel(r, nil)).Inc()
	m.ArchiveBytes.Observe(float64(archiveSize))
	m.ScanDuration.Observe(d.Seconds())
	for _, f := range r.Findings {
		m.Findings.WithLabelValues(f.Severity.String(), f.Category).Inc()
	}
}

// ObserveError records a scan that produced no report.
func (m *Metrics) ObserveError(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(ResultLabel(nil, err)).Inc()
	m.ScanDuration.Observe(d.Seconds())
}

// ResultLabel maps a scan outcome to the "result" label value.
func ResultLabel(r *types.Report, err error) string {
	switch {
	case errors.Is(err, types.ErrMalformedArchive):
		return "malformed_archive"
	case errors.Is(err, types.ErrInvalidManifest):
		return "invalid_manifest"
	case errors.Is(err, types.ErrInternal):
		return "internal_error"
	case err != nil:
		return "error"
	case r == nil || len(r.Findings) == 0:
		return "clean"
	default:
		return "findings_" + strings.ToLower(r.MaxSeverity.String())
	}
}

// WriteTextfile writes everything gathered by g in the node_exporter
// textfile collector format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
