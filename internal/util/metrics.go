package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LocksAcquiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "locks_acquired_total",
		Help: "Total number of unit locks acquired",
	})

	LockAcquireFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lock_acquire_failed_total",
		Help: "Total number of rejected lock attempts",
	}, []string{"reason"})

	LocksReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locks_released_total",
		Help: "Total number of locks released, by trigger (user or sweep)",
	}, []string{"trigger"})

	LockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lock_contention_total",
		Help: "Total number of operations aborted after compare-and-set retries",
	})

	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_confirmed_total",
		Help: "Total number of reservations confirmed",
	})

	ReservationsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_closed_total",
		Help: "Total number of reservations cancelled or completed",
	}, []string{"outcome"})

	SweepCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_cycles_total",
		Help: "Total number of completed expiration sweep cycles",
	})

	SweepCycleFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_cycle_failures_total",
		Help: "Total number of sweep cycles that failed outright",
	})

	SweepLockFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_lock_failures_total",
		Help: "Total number of individual locks the sweeper failed to release",
	})

	SweepCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_cycle_duration_seconds",
		Help:    "Duration of expiration sweep cycles",
		Buckets: prometheus.DefBuckets,
	})

	ActivityPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "activity_publish_failed_total",
		Help: "Total number of activity events that failed to publish",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
