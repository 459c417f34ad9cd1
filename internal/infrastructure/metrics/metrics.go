// Package metrics provides Prometheus metrics for the partcompat service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal tracks engine operations by operation, part type and outcome
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcompat",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of compatibility engine operations",
		},
		[]string{"op", "part_type", "outcome"},
	)

	// OperationDuration tracks engine operation latency in seconds
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partcompat",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of compatibility engine operations in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"op"},
	)

	// GroupsMergedTotal counts groups absorbed into a primary group by links
	GroupsMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcompat",
			Subsystem: "engine",
			Name:      "groups_merged_total",
			Help:      "Total number of compatibility groups merged away by link operations",
		},
		[]string{"part_type"},
	)

	// CacheLookupsTotal tracks phone cache hits and misses
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcompat",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of phone cache lookups by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal tracks API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcompat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partcompat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// EventsPublishedTotal tracks MQTT change events by outcome
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcompat",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of change events published to MQTT",
		},
		[]string{"type", "outcome"},
	)
)

// RecordOperation records one engine call.
func RecordOperation(op, partType string, elapsed time.Duration, merged int, failed bool) {
	if partType == "" {
		partType = "none"
	}
	OperationsTotal.WithLabelValues(op, partType, outcome(failed)).Inc()
	OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if merged > 0 {
		GroupsMergedTotal.WithLabelValues(partType).Add(float64(merged))
	}
}

// RecordCacheLookup records a phone cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one API request. route is the matched pattern,
// not the raw path.
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordEventPublished records an MQTT publish attempt.
func RecordEventPublished(eventType string, failed bool) {
	EventsPublishedTotal.WithLabelValues(eventType, outcome(failed)).Inc()
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
