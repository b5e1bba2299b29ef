package source

import (
	"bytes"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/objtop/snapshot"
)

func testHeapProfile() *profile.Profile {
	game := &profile.Mapping{ID: 1, File: "/opt/game/bin/game", Start: 0x1000, Limit: 0x9000}
	decode := &profile.Function{ID: 1, Name: "main.decode", SystemName: "main.decode", Filename: "decode.go"}
	load := &profile.Function{ID: 2, Name: "main.loadTextures", SystemName: "main.loadTextures", Filename: "load.go"}
	malg := &profile.Function{ID: 3, Name: "runtime.malg", SystemName: "runtime.malg", Filename: "proc.go"}
	freed := &profile.Function{ID: 4, Name: "main.scratch", SystemName: "main.scratch", Filename: "scratch.go"}

	locDecode := &profile.Location{ID: 1, Mapping: game, Address: 0x1100, Line: []profile.Line{{Function: decode, Line: 10}}}
	locLoad := &profile.Location{ID: 2, Mapping: game, Address: 0x1200, Line: []profile.Line{{Function: load, Line: 20}}}
	locMalg := &profile.Location{ID: 3, Address: 0x5, Line: []profile.Line{{Function: malg, Line: 30}}}
	locFreed := &profile.Location{ID: 4, Mapping: game, Address: 0x1300, Line: []profile.Line{{Function: freed, Line: 40}}}

	value := func(inuse int64) []int64 { return []int64{1, inuse, 1, inuse} }
	return &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "alloc_objects", Unit: "count"},
			{Type: "alloc_space", Unit: "bytes"},
			{Type: "inuse_objects", Unit: "count"},
			{Type: "inuse_space", Unit: "bytes"},
		},
		DefaultSampleType: "inuse_space",
		Sample: []*profile.Sample{
			{Location: []*profile.Location{locDecode, locLoad}, Value: value(3 << 20)},
			{Location: []*profile.Location{locLoad}, Value: value(1 << 20)},
			{Location: []*profile.Location{locMalg}, Value: value(2 << 20)},
			{Location: []*profile.Location{locDecode}, Value: value(1 << 20)},
			{Location: []*profile.Location{locFreed, locLoad}, Value: value(0)},
		},
		Mapping:  []*profile.Mapping{game},
		Location: []*profile.Location{locDecode, locLoad, locMalg, locFreed},
		Function: []*profile.Function{decode, load, malg, freed},
	}
}

func siteNames(sites []*Site) []string {
	out := make([]string, len(sites))
	for i, s := range sites {
		out[i] = s.Name()
	}
	return out
}

func TestHeapProfile_GroupByFunction(t *testing.T) {
	h, err := NewHeapProfile(testHeapProfile())
	require.NoError(t, err)

	sites, err := h.Sites(GroupByFunction)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.decode", "main.loadTextures", "runtime.malg"}, siteNames(sites))
	assert.Equal(t, int64(4<<20), sites[0].Bytes())
	assert.Equal(t, snapshot.NotEditable, sites[2].HideFlags())

	l := snapshot.New[*Site](h.Source(GroupByFunction), h.Sizer())
	_, err = l.Rebuild(snapshot.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"4.00 MB    main.decode",
		"1.00 MB    main.loadTextures",
	}, l.Snapshot().Labels())
}

func TestHeapProfile_ShowRuntime(t *testing.T) {
	h, err := NewHeapProfile(testHeapProfile())
	require.NoError(t, err)
	h.ShowRuntime = true

	l := snapshot.New[*Site](h.Source(GroupByFunction), h.Sizer())
	_, err = l.Rebuild(snapshot.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"4.00 MB    main.decode",
		"2.00 MB    runtime.malg",
		"1.00 MB    main.loadTextures",
	}, l.Snapshot().Labels())
}

func TestHeapProfile_GroupByStackAndMapping(t *testing.T) {
	h, err := NewHeapProfile(testHeapProfile())
	require.NoError(t, err)

	sites, err := h.Sites(GroupByStack)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"main.decode < main.loadTextures",
		"main.loadTextures",
		"runtime.malg",
		"main.decode",
	}, siteNames(sites))

	sites, err = h.Sites(GroupByMapping)
	require.NoError(t, err)
	require.Equal(t, []string{"game", "[unknown]"}, siteNames(sites))
	assert.Equal(t, int64(5<<20), sites[0].Bytes())
	assert.Equal(t, snapshot.NotEditable, sites[1].HideFlags())
}

func TestHeapProfile_MappingWithRuntimeFirst(t *testing.T) {
	game := &profile.Mapping{ID: 1, File: "/opt/game/bin/game", Start: 0x1000, Limit: 0x9000}
	libc := &profile.Mapping{ID: 2, File: "/lib/libc.so.6", Start: 0xa000, Limit: 0xb000}
	malg := &profile.Function{ID: 1, Name: "runtime.malg", SystemName: "runtime.malg"}
	load := &profile.Function{ID: 2, Name: "main.loadTextures", SystemName: "main.loadTextures"}
	sysAlloc := &profile.Function{ID: 3, Name: "runtime.sysAlloc", SystemName: "runtime.sysAlloc"}
	locMalg := &profile.Location{ID: 1, Mapping: game, Address: 0x1100, Line: []profile.Line{{Function: malg}}}
	locLoad := &profile.Location{ID: 2, Mapping: game, Address: 0x1200, Line: []profile.Line{{Function: load}}}
	locSys := &profile.Location{ID: 3, Mapping: libc, Address: 0xa100, Line: []profile.Line{{Function: sysAlloc}}}

	h, err := NewHeapProfile(&profile.Profile{
		SampleType: []*profile.ValueType{{Type: "inuse_space", Unit: "bytes"}},
		Sample: []*profile.Sample{
			{Location: []*profile.Location{locMalg}, Value: []int64{1 << 20}},
			{Location: []*profile.Location{locLoad}, Value: []int64{64 << 20}},
			{Location: []*profile.Location{locSys}, Value: []int64{2 << 20}},
		},
		Mapping:  []*profile.Mapping{game, libc},
		Location: []*profile.Location{locMalg, locLoad, locSys},
		Function: []*profile.Function{malg, load, sysAlloc},
	})
	require.NoError(t, err)

	l := snapshot.New[*Site](h.Source(GroupByMapping), h.Sizer())
	_, err = l.Rebuild(snapshot.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"65.00 MB    game"}, l.Snapshot().Labels())
}

func TestHeapProfile_ReadWritten(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testHeapProfile().Write(&buf))

	h, err := ReadHeapProfile(&buf)
	require.NoError(t, err)
	sites, err := h.Sites(GroupByFunction)
	require.NoError(t, err)
	assert.Len(t, sites, 3)
}

func TestHeapProfile_Errors(t *testing.T) {
	_, err := NewHeapProfile(&profile.Profile{
		SampleType: []*profile.ValueType{{Type: "cpu", Unit: "nanoseconds"}},
	})
	require.Error(t, err)

	_, err = ParseGrouping("package")
	require.ErrorIs(t, err, ErrUnknownGrouping)

	g, err := ParseGrouping("")
	require.NoError(t, err)
	assert.Equal(t, GroupByFunction, g)

	h, err := NewHeapProfile(testHeapProfile())
	require.NoError(t, err)
	_, err = h.Sites(Grouping("bogus"))
	require.ErrorIs(t, err, ErrUnknownGrouping)

	_, err = LoadHeapProfile("does-not-exist.pb.gz")
	require.Error(t, err)
}

func TestLiveHeapProfile(t *testing.T) {
	h := LiveHeapProfile()
	l := snapshot.New[*Site](h.Source(GroupByFunction), h.Sizer())
	_, err := l.Rebuild(snapshot.Request{})
	require.NoError(t, err)
	assert.True(t, l.Ready())
}
