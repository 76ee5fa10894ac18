package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	storeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teststate",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Document store operations by collection, operation and outcome.",
		}, []string{"collection", "operation", "outcome"},
	)
	storeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "teststate",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of document store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "operation"},
	)
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teststate",
			Subsystem: "context_cache",
			Name:      "lookups_total",
			Help:      "LLM context cache lookups by backend and result (hit|miss|error).",
		}, []string{"backend", "result"},
	)
	cacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "teststate",
			Subsystem: "context_cache",
			Name:      "entries",
			Help:      "Entries held by in-process context caches, summed over tenants.",
		}, []string{"backend"},
	)
	selfHealApprovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teststate",
			Subsystem: "self_heal",
			Name:      "approvals_total",
			Help:      "Approval attempts by result (approved|noop).",
		}, []string{"result"},
	)
	ledgerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teststate",
			Subsystem: "ledger",
			Name:      "executions_total",
			Help:      "Executions appended to the ledger by status.",
		}, []string{"status"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{storeOperations, storeOperationDuration, cacheLookups, cacheEntries, selfHealApprovals, ledgerExecutions, hostInfo}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	recordHostInfo()
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has succeeded.

func ObserveStoreOp(collection, operation, outcome string, start time.Time) {
	if !regOK.Load() {
		return
	}
	storeOperations.WithLabelValues(collection, operation, outcome).Inc()
	storeOperationDuration.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
}

func ObserveCacheLookup(backend, result string) {
	if regOK.Load() {
		cacheLookups.WithLabelValues(backend, result).Inc()
	}
}

// AddCacheEntries moves the entry gauge of an in-process cache backend.
func AddCacheEntries(backend string, delta int) {
	if regOK.Load() && delta != 0 {
		cacheEntries.WithLabelValues(backend).Add(float64(delta))
	}
}

func IncApproval(approved bool) {
	if !regOK.Load() {
		return
	}
	if approved {
		selfHealApprovals.WithLabelValues("approved").Inc()
		return
	}
	selfHealApprovals.WithLabelValues("noop").Inc()
}

func IncExecution(status string) {
	if regOK.Load() {
		ledgerExecutions.WithLabelValues(status).Inc()
	}
}
