// Package metrics holds the prometheus collectors shared across the
// service. Registration happens at import time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed scans by verdict status.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecheck_scans_total",
		Help: "Total completed scans by verdict status.",
	}, []string{"status"})

	// ScanErrorsTotal counts scans that ended in a terminal error, by code.
	ScanErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecheck_scan_errors_total",
		Help: "Total scans that ended in an error, by error code.",
	}, []string{"code"})

	// CollectorDuration observes per-collector call latency.
	CollectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safecheck_collector_duration_seconds",
		Help:    "Signal collector call duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collector"})

	// CacheEventsTotal counts cache hits, misses, and evictions.
	CacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecheck_cache_events_total",
		Help: "Cache events by type (hit, miss, eviction).",
	}, []string{"event"})

	// RateLimitDenialsTotal counts denied rate-limiter acquires, both
	// for upstream collectors and for inbound HTTP clients.
	RateLimitDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecheck_rate_limit_denials_total",
		Help: "Denied rate-limiter acquires by source.",
	}, []string{"source"})

	// RequestsTotal counts HTTP requests by method, path, and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecheck_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safecheck_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
