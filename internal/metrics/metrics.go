// Package metrics exposes Prometheus collectors for the lock core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "applock"

var (
	// PINAttempts counts PIN verifications by result (success, failure, lockdown, not_configured).
	PINAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_attempts_total",
			Help:      "PIN verification attempts by result",
		},
		[]string{"result"},
	)

	LockdownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockdowns_total",
		Help:      "Security lockdowns triggered",
	})

	// BlocksShown counts block presentations by target kind (app, website).
	BlocksShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_shown_total",
			Help:      "Block challenges presented",
		},
		[]string{"kind"},
	)

	UnlocksGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlocks_granted_total",
			Help:      "Temporary unlocks granted",
		},
		[]string{"kind"},
	)

	MonitoringActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "monitoring_active",
		Help:      "1 while the foreground monitor is running",
	})

	ActiveUnlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "temporary_unlocks",
		Help:      "Entries in the temporary-unlock registry after the last sweep",
	})

	ForegroundQueryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "foreground_query_errors_total",
		Help:      "Failed or timed out foreground process queries",
	})
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
