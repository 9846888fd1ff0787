// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ochio_api_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ochio_api_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ochio_orders_placed_total",
			Help: "Order placement attempts by result",
		},
		[]string{"result"}, // accepted, duplicate, sold_out, error
	)

	OrdersPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ochio_orders_persisted_total",
			Help: "Queued orders written by workers, by result",
		},
		[]string{"result"}, // saved, rejected
	)

	OrderQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ochio_order_queue_depth",
			Help: "Orders waiting for a worker",
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ochio_cache_requests_total",
			Help: "Read-through cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // hit, miss, error
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ochio_ws_connections",
			Help: "Currently connected WebSocket clients",
		},
	)

	WSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ochio_ws_messages_total",
			Help: "WebSocket messages by direction and type",
		},
		[]string{"direction", "type"},
	)

	WSDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ochio_ws_dropped_clients_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)

	LocationUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ochio_location_updates_total",
			Help: "Fan location updates accepted",
		},
	)

	CheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ochio_checkins_total",
			Help: "Event check-ins by outcome",
		},
		[]string{"outcome"}, // new, repeat
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ochio_job_runs_total",
			Help: "Scheduled job executions by job and result",
		},
		[]string{"job", "result"},
	)
)

func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func RecordCache(cache, result string) {
	CacheRequests.WithLabelValues(cache, result).Inc()
}

func RecordJob(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobRuns.WithLabelValues(job, result).Inc()
}
