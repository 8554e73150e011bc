// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects engine telemetry on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	quotesServed     *prometheus.CounterVec
	quoteFailures    *prometheus.CounterVec
	swapsExecuted    *prometheus.CounterVec
	swapFailures     *prometheus.CounterVec
	protectionRounds prometheus.Histogram
	commitmentsUsed  prometheus.Counter
}

// NewMetrics creates the engine collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "aggregator"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.quotesServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "served_total",
			Help:      "Total number of venue quotes returned",
		},
		[]string{"venue"},
	)

	m.quoteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "failures_total",
			Help:      "Total number of venue quotes that failed and were replaced by an inactive quote",
		},
		[]string{"venue"},
	)

	m.swapsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "executed_total",
			Help:      "Total number of swaps executed",
		},
		[]string{"venue", "entry"},
	)

	m.swapFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "failures_total",
			Help:      "Total number of reverted mutating calls by error category",
		},
		[]string{"entry", "category"},
	)

	m.protectionRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "rounds",
			Help:      "Protection rounds derived for protected swaps",
			Buckets:   []float64{1, 2, 3},
		},
	)

	m.commitmentsUsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protection",
			Name:      "commitments_used_total",
			Help:      "Total number of commitments consumed",
		},
	)

	m.registry.MustRegister(
		m.quotesServed,
		m.quoteFailures,
		m.swapsExecuted,
		m.swapFailures,
		m.protectionRounds,
		m.commitmentsUsed,
	)

	return m
}

// Registry returns the registry holding the engine collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) recordQuote(venue string, err error) {
	if err != nil {
		m.quoteFailures.WithLabelValues(venue).Inc()
		return
	}
	m.quotesServed.WithLabelValues(venue).Inc()
}

func (m *Metrics) recordSwap(venue, entry string) {
	m.swapsExecuted.WithLabelValues(venue, entry).Inc()
}

func (m *Metrics) recordFailure(entry string, err error) {
	category := "other"
	if c := Category(err); c != nil {
		category = c.Error()
	} else if errors.Is(err, ErrReentrant) {
		category = "reentrant"
	}
	m.swapFailures.WithLabelValues(entry, category).Inc()
}

func (m *Metrics) recordProtection(rounds uint64) {
	m.protectionRounds.Observe(float64(rounds))
}

func (m *Metrics) recordCommitment() {
	m.commitmentsUsed.Inc()
}
