// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Claims counts claim attempts by outcome (confirmed|waitlist|<error kind>).
	Claims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seats_claims_total",
			Help: "Total number of seat claims by outcome",
		},
		[]string{"result"},
	)

	// Releases counts release attempts by outcome (released|promoted|<error kind>).
	Releases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seats_releases_total",
			Help: "Total number of seat releases by outcome",
		},
		[]string{"result"},
	)

	// TxRetries counts membership transactions rerun after a conflict.
	TxRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seats_tx_retries_total",
			Help: "Membership transactions retried after a conflict",
		},
		[]string{"op"},
	)

	// Throttled counts requests rejected by the claim/leave throttle.
	Throttled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seats_throttled_total",
			Help: "Requests rejected by the per-user throttle",
		},
		[]string{"action"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seats_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
