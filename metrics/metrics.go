// Package metrics holds the Prometheus collectors and the small HTTP server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal counts inbound chat events by input kind.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of inbound chat events",
		},
		[]string{"kind"},
	)

	// UpdateDuration tracks how long the kernel takes per event.
	UpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Time spent handling one inbound chat event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// DialogSteps counts step inputs by flow and outcome (advanced, invalid, aborted, committed).
	DialogSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_steps_total",
			Help: "Dialog step inputs by flow and result",
		},
		[]string{"flow", "result"},
	)

	// OrdersTotal counts order commits by result.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order placement attempts by result",
		},
		[]string{"result"},
	)

	// NotificationsTotal counts outbound notifications by result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound notifications by result",
		},
		[]string{"result"},
	)

	// CircuitBreakerState tracks breaker state (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit_name"},
	)

	// AuthorizationDenied counts rejected entries (not admin, banned, paused).
	AuthorizationDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_denied_total",
			Help: "Requests rejected before any state change",
		},
		[]string{"reason"},
	)
)
