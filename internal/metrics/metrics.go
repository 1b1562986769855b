// Package metrics exposes Prometheus instruments for the delivery pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeliveriesTotal counts adapter delivery attempts by outcome.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nudge_deliveries_total",
		Help: "Adapter delivery attempts by adapter and outcome.",
	}, []string{"adapter", "status"})

	// DeliveryDuration observes per-adapter delivery latency.
	DeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nudge_delivery_duration_seconds",
		Help:    "Per-adapter delivery latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"adapter"})

	// EventsEmitted counts bridge emissions by event name and path
	// ("engine" = handed to the workflow engine, "fallback" = delivered
	// in-process, "dropped" = push failed with no fallback).
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nudge_events_emitted_total",
		Help: "Workflow bridge emissions by event name and dispatch path.",
	}, []string{"event", "path"})
)
