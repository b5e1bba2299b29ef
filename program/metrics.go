package main

import (
	"sync/atomic"
	"time"

	"github.com/keilerkonzept/objtop/snapshot"
)

type durationRing struct {
	buf   []time.Duration
	idx   int
	count int
}

func newDurationRing(n int) *durationRing {
	if n < 1 {
		n = 1
	}
	return &durationRing{buf: make([]time.Duration, n)}
}

func (r *durationRing) add(d time.Duration) {
	r.buf[r.idx] = d
	r.idx++
	if r.idx >= len(r.buf) {
		r.idx = 0
	}
	if r.count < len(r.buf) {
		r.count++
	}
}

type durationStats struct {
	last time.Duration
	max  time.Duration
	avg  time.Duration
	n    int
}

func (r *durationRing) snapshot() durationStats {
	if r.count == 0 {
		return durationStats{}
	}
	var sum, longest time.Duration
	for i := 0; i < r.count; i++ {
		d := r.buf[i]
		sum += d
		longest = max(longest, d)
	}

	lastIdx := r.idx - 1
	if lastIdx < 0 {
		lastIdx = len(r.buf) - 1
	}
	return durationStats{
		last: r.buf[lastIdx],
		max:  longest,
		avg:  sum / time.Duration(r.count),
		n:    r.count,
	}
}

// rebuildMetrics accumulates what the inventory rebuilds cost and skipped.
type rebuildMetrics struct {
	enabled atomic.Bool

	rebuilds    atomic.Uint64
	failures    atomic.Uint64
	scanned     atomic.Uint64
	hidden      atomic.Uint64
	unavailable atomic.Uint64

	lastRows  atomic.Int64
	lastBytes atomic.Int64

	latency *durationRing
}

func newRebuildMetrics(window int) *rebuildMetrics {
	return &rebuildMetrics{latency: newDurationRing(window)}
}

func (m *rebuildMetrics) setEnabled(v bool) { m.enabled.Store(v) }
func (m *rebuildMetrics) isEnabled() bool   { return m.enabled.Load() }

func (m *rebuildMetrics) observeRebuild(stats snapshot.Stats, err error) {
	if !m.isEnabled() {
		return
	}
	m.rebuilds.Add(1)
	if err != nil {
		m.failures.Add(1)
		return
	}
	m.latency.add(stats.Took)
	m.scanned.Add(uint64(stats.Scanned))
	m.hidden.Add(uint64(stats.Hidden))
	m.unavailable.Add(uint64(stats.Unavailable))
	m.lastRows.Store(int64(stats.Rows))
	m.lastBytes.Store(stats.TotalBytes)
}

type metricsSnapshot struct {
	rebuilds    uint64
	failures    uint64
	scanned     uint64
	hidden      uint64
	unavailable uint64
	rows        int64
	bytes       int64
	latency     durationStats
}

func (m *rebuildMetrics) snapshot() metricsSnapshot {
	if !m.isEnabled() {
		return metricsSnapshot{}
	}
	return metricsSnapshot{
		rebuilds:    m.rebuilds.Load(),
		failures:    m.failures.Load(),
		scanned:     m.scanned.Load(),
		hidden:      m.hidden.Load(),
		unavailable: m.unavailable.Load(),
		rows:        m.lastRows.Load(),
		bytes:       m.lastBytes.Load(),
		latency:     m.latency.snapshot(),
	}
}
