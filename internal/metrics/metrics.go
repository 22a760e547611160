// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the service. Collectors
// are package vars registered with the default registry through promauto.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "anieflix"

var (
	// IngestTotal counts ingest attempts by outcome (published, unsupported_format,
	// storage_error, transcode_error, busy).
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_total",
		Help:      "Total ingest attempts by outcome",
	}, []string{"outcome"})

	// IngestInFlight is the number of ingests holding a transcode slot.
	IngestInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingest_in_flight",
		Help:      "Ingests currently transcoding",
	})

	// TranscodeDuration tracks wall time of encoder runs.
	TranscodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcode_duration_seconds",
		Help:      "Duration of encoder runs by outcome",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600},
	}, []string{"outcome"})

	// PlaybackResolveTotal counts playback lookups by asset kind and result
	// (ok, no_record, file_missing, invalid_path, error).
	PlaybackResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_resolve_total",
		Help:      "Playback resolutions by kind and result",
	}, []string{"kind", "result"})

	// ProcTerminateTotal counts signals delivered to encoder process groups.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proc_terminate_total",
		Help:      "Signals sent to child process groups by signal and result",
	}, []string{"signal", "result"})

	// ProcWaitTotal counts how terminated children exited.
	ProcWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proc_wait_total",
		Help:      "Exit results of terminated child processes",
	}, []string{"result"})

	// CatalogCompensationsTotal counts rollbacks after a failed catalog write.
	CatalogCompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_compensations_total",
		Help:      "Rollbacks of published media after catalog write failures",
	}, []string{"result"})
)

// IncIngest records one ingest outcome.
func IncIngest(outcome string) {
	IngestTotal.WithLabelValues(outcome).Inc()
}

// ObserveTranscode records an encoder run.
func ObserveTranscode(outcome string, d time.Duration) {
	TranscodeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncPlaybackResolve records one playback lookup.
func IncPlaybackResolve(kind, result string) {
	PlaybackResolveTotal.WithLabelValues(kind, result).Inc()
}

// IncProcTerminate records a signal delivery attempt.
func IncProcTerminate(signal, result string) {
	ProcTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated process exited.
func IncProcWait(result string) {
	ProcWaitTotal.WithLabelValues(result).Inc()
}

// IncCatalogCompensation records a compensation attempt.
func IncCatalogCompensation(result string) {
	CatalogCompensationsTotal.WithLabelValues(result).Inc()
}
