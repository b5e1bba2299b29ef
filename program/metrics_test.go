package main

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/keilerkonzept/objtop/snapshot"
)

func TestDurationRing(t *testing.T) {
	r := newDurationRing(3)
	assert.Equal(t, durationStats{}, r.snapshot())

	for _, d := range []time.Duration{1, 5, 3, 7} {
		r.add(d * time.Millisecond)
	}
	s := r.snapshot()
	assert.Equal(t, 7*time.Millisecond, s.last)
	assert.Equal(t, 7*time.Millisecond, s.max)
	assert.Equal(t, 5*time.Millisecond, s.avg)
	assert.Equal(t, 3, s.n)
}

func TestRebuildMetrics(t *testing.T) {
	m := newRebuildMetrics(16)
	m.observeRebuild(snapshot.Stats{Scanned: 4}, nil)
	assert.Equal(t, metricsSnapshot{}, m.snapshot(), "disabled metrics record nothing")

	m.setEnabled(true)
	m.observeRebuild(snapshot.Stats{Scanned: 4, Hidden: 1, Unavailable: 1, Rows: 2, TotalBytes: 3 << 20, Took: time.Millisecond}, nil)
	m.observeRebuild(snapshot.Stats{}, errors.New("boom"))

	s := m.snapshot()
	assert.Equal(t, uint64(2), s.rebuilds)
	assert.Equal(t, uint64(1), s.failures)
	assert.Equal(t, uint64(4), s.scanned)
	assert.Equal(t, uint64(1), s.hidden)
	assert.Equal(t, uint64(1), s.unavailable)
	assert.Equal(t, int64(2), s.rows)
	assert.Equal(t, int64(3<<20), s.bytes)
	assert.Equal(t, time.Millisecond, s.latency.last)
}

func TestFormatMetricDuration(t *testing.T) {
	assert.Equal(t, "0.000ms", formatMetricDuration(0))
	assert.Equal(t, "1.500ms", formatMetricDuration(1500*time.Microsecond))
}

func TestComputePaneWidths(t *testing.T) {
	left, right := computePaneWidths(100, 60)
	assert.Equal(t, 60, left)
	assert.Equal(t, 40, right)

	left, right = computePaneWidths(40, 20)
	assert.Equal(t, 18, left)
	assert.Equal(t, 22, right)

	left, right = computePaneWidths(1, 50)
	assert.Equal(t, 1, left)
	assert.Equal(t, 1, right)
}
