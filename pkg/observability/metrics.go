package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Global metrics instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the store
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Version store metrics
	CommitsTotal    prometheus.Counter
	CheckoutsTotal  prometheus.Counter
	BranchesCreated prometheus.Counter
	BranchesDeleted prometheus.Counter

	// Migration metrics
	MigrationsApplied *prometheus.CounterVec

	// Concurrency guard metrics
	GuardWaitSeconds prometheus.Histogram

	// Document cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	// Use singleton pattern to avoid duplicate registration in tests
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	commitsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Total number of versions committed",
		},
	)

	checkoutsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Total number of version checkouts",
		},
	)

	branchesCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branches_created_total",
			Help:      "Total number of branches created",
		},
	)

	branchesDeleted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branches_deleted_total",
			Help:      "Total number of branches deleted",
		},
	)

	migrationsApplied := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_applied_total",
			Help:      "Total number of schema migration steps applied at load time",
		},
		[]string{"step"},
	)

	guardWaitSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guard_wait_seconds",
			Help:      "Time spent queued behind prior operations for the same story",
			Buckets:   prometheus.DefBuckets,
		},
	)

	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_hits_total",
			Help:      "Total number of document cache hits",
		},
	)

	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_misses_total",
			Help:      "Total number of document cache misses",
		},
	)

	registry.MustRegister(
		commitsTotal,
		checkoutsTotal,
		branchesCreated,
		branchesDeleted,
		migrationsApplied,
		guardWaitSeconds,
		cacheHits,
		cacheMisses,
	)

	globalCollector = &Collector{
		registry:          registry,
		CommitsTotal:      commitsTotal,
		CheckoutsTotal:    checkoutsTotal,
		BranchesCreated:   branchesCreated,
		BranchesDeleted:   branchesDeleted,
		MigrationsApplied: migrationsApplied,
		GuardWaitSeconds:  guardWaitSeconds,
		CacheHits:         cacheHits,
		CacheMisses:       cacheMisses,
	}

	return globalCollector
}

// Registry returns the Prometheus registry backing this collector so callers
// can expose or scrape it
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
