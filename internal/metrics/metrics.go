package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/syntrixbase/daybook/pkg/model"
)

const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultCanceled = "canceled"
)

var (
	// Stores
	StoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_store_operations_total",
		Help: "The total number of store operations by entity, operation and result",
	}, []string{"entity", "op", "result"})

	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "daybook_store_operation_duration_seconds",
		Help:    "The latency of store operations including the remote round trip",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity", "op"})

	CachedItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "daybook_cached_items",
		Help: "The number of items held in store caches",
	}, []string{"entity"})

	// Confirmations
	ConfirmationsRequested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daybook_confirmations_requested_total",
		Help: "The total number of confirmation prompts raised",
	})

	ConfirmationsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_confirmations_resolved_total",
		Help: "The total number of confirmation prompts resolved",
	}, []string{"outcome"})

	// Changes
	ChangesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_changes_published_total",
		Help: "The total number of change events published",
	}, []string{"result"})

	// Realtime
	RealtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daybook_realtime_clients",
		Help: "The number of connected realtime clients",
	})

	RealtimeDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daybook_realtime_dropped_total",
		Help: "The total number of change events dropped for slow consumers",
	})

	// HTTP
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_http_requests_total",
		Help: "The total number of HTTP requests",
	}, []string{"method", "status"})

	HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "daybook_http_request_duration_seconds",
		Help:    "The latency of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(StoreOperations)
	prometheus.MustRegister(StoreLatency)
	prometheus.MustRegister(CachedItems)
	prometheus.MustRegister(ConfirmationsRequested)
	prometheus.MustRegister(ConfirmationsResolved)
	prometheus.MustRegister(ChangesPublished)
	prometheus.MustRegister(RealtimeClients)
	prometheus.MustRegister(RealtimeDropped)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPLatency)
}

// Result classifies an operation error into a result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, model.ErrNotFound):
		return ResultNotFound
	case model.IsCanceled(err):
		return ResultCanceled
	default:
		return ResultError
	}
}

// ObserveStore records one store operation started at start.
func ObserveStore(entity, op string, start time.Time, err error) {
	StoreOperations.WithLabelValues(entity, op, Result(err)).Inc()
	StoreLatency.WithLabelValues(entity, op).Observe(time.Since(start).Seconds())
}
