// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics holds the Prometheus collectors shared by the scheduling
// engine, the job worker and the HTTP layer. Collectors register with the
// default registry on package init.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reviewd"

// Trigger labels for ItemsRecomputed.
const (
	TriggerSave    = "save"
	TriggerCascade = "cascade"
)

var (
	// ItemsRecomputed counts next_review_date writes by kind and trigger.
	ItemsRecomputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_recomputed_total",
			Help:      "Number of items whose next review date was recomputed.",
		},
		[]string{"kind", "trigger"},
	)

	// CascadeDuration observes one bulk recompute of a (site, kind) batch.
	CascadeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_duration_seconds",
			Help:      "Duration of a bulk next review date recompute.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// AggregatorFallbacks counts cross-kind queries retried without review
	// annotations after a field resolution failure.
	AggregatorFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregator_fallbacks_total",
		Help:      "Cross-kind queries that fell back to the unannotated collection.",
	})

	// JobsProcessed counts rule-set jobs drained from the queue by outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Rule-set save jobs processed by the worker.",
		},
		[]string{"status"},
	)

	// QueueDepth is the number of rule-set jobs waiting, sampled while the
	// worker is idle.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "job_queue_depth",
		Help:      "Rule-set save jobs waiting in the queue.",
	})

	// HTTPRequests counts HTTP requests by route pattern.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes HTTP request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
