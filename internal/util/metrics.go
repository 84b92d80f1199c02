package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products created",
	})

	ProductsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "products_updated_total",
		Help: "Total number of product attribute updates",
	}, []string{"action"})

	ProductsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_deleted_total",
		Help: "Total number of products deleted",
	})

	ProductWritesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_writes_failed_total",
		Help: "Total number of rejected or failed product writes",
	}, []string{"reason"})

	RelationMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_relation_mutations_total",
		Help: "Total number of relation mutations that changed state",
	}, []string{"relation", "operation"})

	RelationMutationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_relation_mutations_rejected_total",
		Help: "Total number of rejected relation mutations",
	}, []string{"relation", "reason"})

	ProductCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_cache_requests_total",
		Help: "Product cache lookups by result",
	}, []string{"result"})

	CacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "product_cache_invalidations_total",
		Help: "Total number of cache entries invalidated from product events",
	})

	LockAcquireFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "product_lock_acquire_failures_total",
		Help: "Total number of product locks that could not be acquired",
	})

	ProductOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "product_operation_latency_seconds",
		Help:    "Latency of catalog operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

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
