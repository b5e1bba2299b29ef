package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/objtop/snapshot"
)

func TestLeaderRanker_RanksBySustainedSize(t *testing.T) {
	r := NewLeaderRanker(5, 10, 1024, 3, 0.9)
	rows := []snapshot.Row{
		{Name: "Tex1", Bytes: 2 << 20},
		{Name: "Tex2", Bytes: 1 << 20},
	}

	items := r.Observe(rows)
	require.Len(t, items, 2)
	assert.Equal(t, "Tex1", items[0].Item)
	assert.Equal(t, uint32(2048), items[0].Count)
	assert.Equal(t, "Tex2", items[1].Item)

	// Tex2 grows past Tex1 over the next rebuilds.
	for i := 0; i < 3; i++ {
		items = r.Observe([]snapshot.Row{
			{Name: "Tex1", Bytes: 1 << 20},
			{Name: "Tex2", Bytes: 4 << 20},
		})
	}
	require.Len(t, items, 2)
	assert.Equal(t, "Tex2", items[0].Item)
	assert.GreaterOrEqual(t, items[0].Count, items[1].Count)
	assert.Equal(t, items, r.Leaders())
}

func TestLeaderRanker_LimitsToK(t *testing.T) {
	r := NewLeaderRanker(2, 10, 1024, 3, 0.9)
	items := r.Observe([]snapshot.Row{
		{Name: "a", Bytes: 3 << 20},
		{Name: "b", Bytes: 2 << 20},
		{Name: "c", Bytes: 1 << 20},
		{Name: "tiny", Bytes: 100},
	})
	assert.LessOrEqual(t, len(items), 2)
	for _, item := range items {
		assert.NotEqual(t, "tiny", item.Item)
	}
}

func TestLeaderRanker_IgnoresSubKilobyteRows(t *testing.T) {
	r := NewLeaderRanker(3, 4, 64, 2, 0.9)
	assert.Empty(t, r.Observe([]snapshot.Row{{Name: "tiny", Bytes: 1023}}))
}

func TestRefreshSchedule(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s := newRefreshSchedule(2 * time.Second)
	assert.True(t, s.due(now))
	s.markRefreshed(now)
	assert.False(t, s.due(now.Add(time.Second)))
	assert.True(t, s.due(now.Add(2*time.Second)))

	manual := newRefreshSchedule(0)
	assert.False(t, manual.due(now))
	assert.False(t, newRefreshSchedule(-time.Second).due(now))
}
