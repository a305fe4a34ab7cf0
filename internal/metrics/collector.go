package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides simple built-in metrics collection with no external dependencies
type Collector struct {
	syncMetrics       *SyncMetrics
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// SyncMetrics tracks structural sync activity
type SyncMetrics struct {
	// Update cycles
	FullRebuilds       int64 `json:"full_rebuilds"`
	IncrementalUpdates int64 `json:"incremental_updates"`
	ParseFailures      int64 `json:"parse_failures"`
	GraftFailures      int64 `json:"graft_failures"`

	// Edit lists
	EditsGenerated int64 `json:"edits_generated"`
	LargestEditSet int64 `json:"largest_edit_set"`

	// Instrumentation
	DocumentsInstrumented int64 `json:"documents_instrumented"`
	MissingMarkers        int64 `json:"missing_markers"`

	// Scan cache
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	Reconciliations int64 `json:"reconciliations"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		syncMetrics: &SyncMetrics{
			StartTime: time.Now(),
		},
		operationCounters: make(map[string]*int64),
		startTime:         time.Now(),
	}
}

// IncrementFullRebuild records a full re-parse of a document
func (c *Collector) IncrementFullRebuild() {
	atomic.AddInt64(&c.syncMetrics.FullRebuilds, 1)
}

// IncrementIncrementalUpdate records a successful partial re-parse and graft
func (c *Collector) IncrementIncrementalUpdate() {
	atomic.AddInt64(&c.syncMetrics.IncrementalUpdates, 1)
}

// IncrementParseFailure records markup that was not well formed
func (c *Collector) IncrementParseFailure() {
	atomic.AddInt64(&c.syncMetrics.ParseFailures, 1)
}

// IncrementGraftFailure records a subtree that could not be grafted
func (c *Collector) IncrementGraftFailure() {
	atomic.AddInt64(&c.syncMetrics.GraftFailures, 1)
}

// RecordEdits records the size of one generated edit list
func (c *Collector) RecordEdits(n int) {
	count := int64(n)
	atomic.AddInt64(&c.syncMetrics.EditsGenerated, count)

	// Update largest if needed
	for {
		largest := atomic.LoadInt64(&c.syncMetrics.LargestEditSet)
		if count <= largest {
			break
		}
		if atomic.CompareAndSwapInt64(&c.syncMetrics.LargestEditSet, largest, count) {
			break
		}
	}
}

// IncrementInstrumented records one instrumented document
func (c *Collector) IncrementInstrumented() {
	atomic.AddInt64(&c.syncMetrics.DocumentsInstrumented, 1)
}

// IncrementMissingMarker records an element whose marker could not be found
func (c *Collector) IncrementMissingMarker() {
	atomic.AddInt64(&c.syncMetrics.MissingMarkers, 1)
}

// IncrementCacheHit records a scan served from the snapshot cache
func (c *Collector) IncrementCacheHit() {
	atomic.AddInt64(&c.syncMetrics.CacheHits, 1)
}

// IncrementCacheMiss records a scan that had to parse
func (c *Collector) IncrementCacheMiss() {
	atomic.AddInt64(&c.syncMetrics.CacheMisses, 1)
}

// IncrementReconciliation records a remote tree reconciliation
func (c *Collector) IncrementReconciliation() {
	atomic.AddInt64(&c.syncMetrics.Reconciliations, 1)
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns current sync metrics
func (c *Collector) GetMetrics() SyncMetrics {
	c.mu.RLock()
	start := c.startTime
	c.mu.RUnlock()

	// Return a copy with current atomic values
	return SyncMetrics{
		FullRebuilds:          atomic.LoadInt64(&c.syncMetrics.FullRebuilds),
		IncrementalUpdates:    atomic.LoadInt64(&c.syncMetrics.IncrementalUpdates),
		ParseFailures:         atomic.LoadInt64(&c.syncMetrics.ParseFailures),
		GraftFailures:         atomic.LoadInt64(&c.syncMetrics.GraftFailures),
		EditsGenerated:        atomic.LoadInt64(&c.syncMetrics.EditsGenerated),
		LargestEditSet:        atomic.LoadInt64(&c.syncMetrics.LargestEditSet),
		DocumentsInstrumented: atomic.LoadInt64(&c.syncMetrics.DocumentsInstrumented),
		MissingMarkers:        atomic.LoadInt64(&c.syncMetrics.MissingMarkers),
		CacheHits:             atomic.LoadInt64(&c.syncMetrics.CacheHits),
		CacheMisses:           atomic.LoadInt64(&c.syncMetrics.CacheMisses),
		Reconciliations:       atomic.LoadInt64(&c.syncMetrics.Reconciliations),
		StartTime:             start,
		Uptime:                time.Since(start),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.syncMetrics.FullRebuilds, 0)
	atomic.StoreInt64(&c.syncMetrics.IncrementalUpdates, 0)
	atomic.StoreInt64(&c.syncMetrics.ParseFailures, 0)
	atomic.StoreInt64(&c.syncMetrics.GraftFailures, 0)
	atomic.StoreInt64(&c.syncMetrics.EditsGenerated, 0)
	atomic.StoreInt64(&c.syncMetrics.LargestEditSet, 0)
	atomic.StoreInt64(&c.syncMetrics.DocumentsInstrumented, 0)
	atomic.StoreInt64(&c.syncMetrics.MissingMarkers, 0)
	atomic.StoreInt64(&c.syncMetrics.CacheHits, 0)
	atomic.StoreInt64(&c.syncMetrics.CacheMisses, 0)
	atomic.StoreInt64(&c.syncMetrics.Reconciliations, 0)

	// Reset custom counters
	c.operationCounters = make(map[string]*int64)

	// Reset start time
	c.startTime = time.Now()
	c.syncMetrics.StartTime = c.startTime
}

// GetIncrementalRate returns the share of update cycles, in percent, that
// avoided a full re-parse
func (c *Collector) GetIncrementalRate() float64 {
	incremental := atomic.LoadInt64(&c.syncMetrics.IncrementalUpdates)
	full := atomic.LoadInt64(&c.syncMetrics.FullRebuilds)

	total := incremental + full
	if total == 0 {
		return 0.0
	}

	return float64(incremental) / float64(total) * 100.0
}

// GetCacheHitRate returns the scan cache hit rate in percent
func (c *Collector) GetCacheHitRate() float64 {
	hits := atomic.LoadInt64(&c.syncMetrics.CacheHits)
	misses := atomic.LoadInt64(&c.syncMetrics.CacheMisses)

	total := hits + misses
	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total) * 100.0
}
