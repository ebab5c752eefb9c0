// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "maskbid"

// Metrics holds all metrics for MaskBid on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Synchronizer metrics
	EventsApplied *prometheus.CounterVec

	// Solver metrics
	Resolutions        *prometheus.CounterVec
	BidsDropped        *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram

	// Bid intake
	BidsSubmitted prometheus.Counter

	// Relay metrics
	ReportsSubmitted *prometheus.CounterVec
	PollerHeight     prometheus.Gauge

	// API metrics
	RequestsProcessed *prometheus.CounterVec
	RequestLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers a new metrics instance.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.EventsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "events_applied_total",
		Help:      "Decoded events applied to the store by event and outcome",
	}, []string{"event", "outcome"})

	m.Resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "solver",
		Name:      "resolutions_total",
		Help:      "Resolution requests by outcome tag",
	}, []string{"outcome"})

	m.BidsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "solver",
		Name:      "bids_dropped_total",
		Help:      "Sealed bids excluded from winner selection by reason",
	}, []string{"reason"})

	m.ResolutionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "solver",
		Name:      "resolution_duration_seconds",
		Help:      "Time to resolve an auction",
		Buckets:   prometheus.DefBuckets,
	})

	m.BidsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "bids_submitted_total",
		Help:      "Sealed bids accepted",
	})

	m.ReportsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "reports_submitted_total",
		Help:      "Settlement reports delivered on-chain by status",
	}, []string{"status"})

	m.PollerHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "poller_block_height",
		Help:      "Last block scanned by the log poller",
	})

	m.RequestsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_processed_total",
		Help:      "Total number of API requests processed",
	}, []string{"method", "route", "status"})

	m.RequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_latency_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	for _, c := range []prometheus.Collector{
		m.EventsApplied,
		m.Resolutions,
		m.BidsDropped,
		m.ResolutionDuration,
		m.BidsSubmitted,
		m.ReportsSubmitted,
		m.PollerHeight,
		m.RequestsProcessed,
		m.RequestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is NewMetrics for wiring and tests.
func MustNew() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		panic(err)
	}
	return m
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	return m.registry
}

// GetRegisterer returns the prometheus registerer
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	return m.registry
}
