// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang counter and summary collectors.
//   - Mapping the pipeline labels (job, phase, status) onto Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint (a dedup run is a batch job; there
//     is nothing to scrape once it exits).
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends without changes to the core pipeline.
package prompush

import (
	"fmt"

	"github.com/torqspark/dedupe-massive-wordlists/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Phase-level metrics
	phaseCounter  *prometheus.CounterVec // "dedupe_phase_total"
	phaseDuration *prometheus.SummaryVec // "dedupe_phase_duration_seconds"

	// Line-level metrics
	lineCounter  *prometheus.CounterVec // "dedupe_lines_total"
	batchCounter prometheus.Counter     // "dedupe_batches_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often derived from the input file).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "dedupe"
	}

	reg := prometheus.NewRegistry()

	// phase and status are dynamic labels; job is the Pushgateway grouping key.
	phaseCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedupe_phase_total",
			Help: "Total number of pipeline phase executions, partitioned by phase and status.",
		},
		[]string{"phase", "status"},
	)
	phaseDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "dedupe_phase_duration_seconds",
			Help:       "Duration of pipeline phases in seconds, partitioned by phase and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"phase", "status"},
	)

	// LINE metrics: kind (scanned, distinct, duplicate_entries, written, ...).
	lineCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedupe_lines_total",
			Help: "Line-level counts per kind (scanned, distinct, duplicate_entries, written, etc.).",
		},
		[]string{"kind"},
	)

	// BATCH metrics: simple counter per job (job is grouping label via Pushgateway).
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dedupe_batches_total",
			Help: "Total number of upsert batches flushed for this run.",
		},
	)

	if err := reg.Register(phaseCounter); err != nil {
		return nil, fmt.Errorf("prompush: register phase counter: %w", err)
	}
	if err := reg.Register(phaseDuration); err != nil {
		return nil, fmt.Errorf("prompush: register phase summary: %w", err)
	}
	if err := reg.Register(lineCounter); err != nil {
		return nil, fmt.Errorf("prompush: register line counter: %w", err)
	}
	if err := reg.Register(batchCounter); err != nil {
		return nil, fmt.Errorf("prompush: register batch counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		phaseCounter:  phaseCounter,
		phaseDuration: phaseDuration,
		lineCounter:   lineCounter,
		batchCounter:  batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "dedupe_phase_total":
		if b.phaseCounter == nil {
			return
		}
		phase := labels["phase"]
		status := labels["status"]
		b.phaseCounter.WithLabelValues(phase, status).Add(delta)

	case "dedupe_lines_total":
		if b.lineCounter == nil {
			return
		}
		kind := labels["kind"]
		b.lineCounter.WithLabelValues(kind).Add(delta)

	case "dedupe_batches_total":
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "dedupe_phase_duration_seconds" || b.phaseDuration == nil {
		return
	}
	phase := labels["phase"]
	status := labels["status"]
	b.phaseDuration.WithLabelValues(phase, status).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
