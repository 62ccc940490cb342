// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated timings for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`
}

// Snapshot represents the full runtime statistics at a point in time.
// It is served as JSON by the server's metrics endpoint.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptimeSeconds"`
	Gateway       *OperationSnapshot `json:"gateway,omitempty"`
	Classify      *OperationSnapshot `json:"classify,omitempty"`
	Handle        *OperationSnapshot `json:"handle,omitempty"`
	DBRead        *OperationSnapshot `json:"dbRead,omitempty"`
	DBWrite       *OperationSnapshot `json:"dbWrite,omitempty"`

	ParseRetries     int64 `json:"parseRetries"`
	FailOpenClassify int64 `json:"failOpenClassify"`
	DefaultEnvelopes int64 `json:"defaultEnvelopes"`
}

// Operation names for the collector.
const (
	OpGateway  = "gateway"
	OpClassify = "classify"
	OpHandle   = "handle"
	OpDBRead   = "db_read"
	OpDBWrite  = "db_write"
)

// Counter names for the collector.
const (
	CounterParseRetries     = "parse_retries"
	CounterFailOpenClassify = "fail_open_classify"
	CounterDefaultEnvelopes = "default_envelopes"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	counters  map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		counters:  make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// Increment bumps a named counter by one.
func (c *Collector) Increment(counter string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[counter]++
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
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

	return Snapshot{
		UptimeSeconds:    time.Since(c.startTime).Seconds(),
		Gateway:          snapshotOp(c.ops[OpGateway]),
		Classify:         snapshotOp(c.ops[OpClassify]),
		Handle:           snapshotOp(c.ops[OpHandle]),
		DBRead:           snapshotOp(c.ops[OpDBRead]),
		DBWrite:          snapshotOp(c.ops[OpDBWrite]),
		ParseRetries:     c.counters[CounterParseRetries],
		FailOpenClassify: c.counters[CounterFailOpenClassify],
		DefaultEnvelopes: c.counters[CounterDefaultEnvelopes],
	}
}
