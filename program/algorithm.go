package main

import (
	"math"
	"sort"
	"time"

	"github.com/keilerkonzept/topk/heap"
	"github.com/keilerkonzept/topk/sliding"

	"github.com/keilerkonzept/objtop/snapshot"
)

// LeaderRanker tracks which objects stay large across recent rebuilds. Every
// rebuild adds each row's size in KiB to a sliding-window sketch that spans
// the last `window` rebuilds.
type LeaderRanker struct {
	k      int
	sketch *sliding.Sketch
	items  []heap.Item
}

func NewLeaderRanker(k, window, width, depth int, decay float64) *LeaderRanker {
	if k < 1 {
		k = 1
	}
	if window < 1 {
		window = 1
	}
	return &LeaderRanker{
		k: k,
		sketch: sliding.New(k, window,
			sliding.WithWidth(width),
			sliding.WithDepth(depth),
			sliding.WithDecay(float32(decay)),
		),
	}
}

// Observe feeds one rebuild's rows into the window and returns the current
// leaders, largest first.
func (r *LeaderRanker) Observe(rows []snapshot.Row) []heap.Item {
	r.sketch.Ticks(1)
	for _, row := range rows {
		kib := row.Bytes >> 10
		if kib <= 0 {
			continue
		}
		r.sketch.Add(row.Name, uint32(min(kib, math.MaxUint32)))
	}

	r.items = r.sketch.SortedSlice()
	if len(r.items) > r.k {
		r.items = r.items[:r.k]
	}
	sort.SliceStable(r.items, func(i, j int) bool {
		li := r.items[i]
		lj := r.items[j]
		if li.Count != lj.Count {
			return li.Count > lj.Count
		}
		return li.Item < lj.Item
	})
	return cloneItems(r.items)
}

// Leaders returns the leaders computed by the last Observe.
func (r *LeaderRanker) Leaders() []heap.Item { return cloneItems(r.items) }

func cloneItems(in []heap.Item) []heap.Item {
	out := make([]heap.Item, len(in))
	copy(out, in)
	return out
}

// refreshSchedule decides when the periodic refresh should rebuild.
type refreshSchedule struct {
	every       time.Duration
	lastRefresh time.Time
}

func newRefreshSchedule(every time.Duration) *refreshSchedule {
	if every < 0 {
		every = 0
	}
	return &refreshSchedule{every: every}
}

// due reports whether a periodic rebuild is owed at now. A zero interval
// disables periodic rebuilds.
func (s *refreshSchedule) due(now time.Time) bool {
	if s.every == 0 {
		return false
	}
	if s.lastRefresh.IsZero() {
		return true
	}
	return now.Sub(s.lastRefresh) >= s.every
}

func (s *refreshSchedule) markRefreshed(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	s.lastRefresh = now
}
