// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector. Engines publish flattened counter snapshots
// under their own prefix.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry holds the last published value of every metric key.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Publish stores every value of m as prefix.key in one update.
func (mr *MetricsRegistry) Publish(prefix string, m map[string]any) {
	mr.mu.Lock()
	for k, v := range m {
		mr.metrics[prefix+"."+k] = v
	}
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Updated returns the time of the last write, zero if none.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return cloneMap(mr.metrics)
}
