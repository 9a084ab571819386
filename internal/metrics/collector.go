// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the collected statistics at a point in time.
type Snapshot struct {
	UptimeSeconds  float64
	FetchHistory   *OperationSnapshot
	PersistMessage *OperationSnapshot
	PushEmit       *OperationSnapshot
	PushReceive    *OperationSnapshot
	StoreQuery     *OperationSnapshot

	// Relay requests keyed by route.
	Requests map[string]*OperationSnapshot
}

// Operation names for the collector.
const (
	OpFetchHistory   = "fetch_history"
	OpPersistMessage = "persist_message"
	OpPushEmit       = "push_emit"
	OpPushReceive    = "push_receive"
	OpStoreQuery     = "store_query"

	// requestPrefix marks per-route relay timings.
	requestPrefix = "request "
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.record(op, duration, false)
}

// RecordResult records timing for an operation and counts it as a failure
// when err is non-nil.
func (c *Collector) RecordResult(op string, duration time.Duration, err error) {
	c.record(op, duration, err != nil)
}

// RecordRequest records the timing of one relay request for route.
func (c *Collector) RecordRequest(route string, duration time.Duration, failed bool) {
	c.record(requestPrefix+route, duration, failed)
}

func (c *Collector) record(op string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if failed {
		m.Failures++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds:  time.Since(c.startTime).Seconds(),
		FetchHistory:   snapshotOp(c.ops[OpFetchHistory]),
		PersistMessage: snapshotOp(c.ops[OpPersistMessage]),
		PushEmit:       snapshotOp(c.ops[OpPushEmit]),
		PushReceive:    snapshotOp(c.ops[OpPushReceive]),
		StoreQuery:     snapshotOp(c.ops[OpStoreQuery]),
	}

	for op, m := range c.ops {
		route, ok := strings.CutPrefix(op, requestPrefix)
		if !ok {
			continue
		}
		if snap.Requests == nil {
			snap.Requests = make(map[string]*OperationSnapshot)
		}
		snap.Requests[route] = snapshotOp(m)
	}
	return snap
}

// Routes returns the relay routes with recorded requests, sorted.
func (s Snapshot) Routes() []string {
	routes := make([]string, 0, len(s.Requests))
	for r := range s.Requests {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}
