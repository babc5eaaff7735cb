package rewriter

import (
	"net/url"
	"testing"

	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestRewriteAssignsSequencedFilenamesAndOriginalURI(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/variant0/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		MediaSequence: 10,
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "segA.ts"},
			{URI: "segB.ts"},
		},
	}
	st := NewState()
	require.NoError(t, Rewrite(p, base, st))

	assert.Equal(t, "segment-10.ts", p.Segments[0].URI)
	assert.Equal(t, "segment-11.ts", p.Segments[1].URI)

	orig, ok := p.Segments[0].GetTag(tagOriginalURI)
	require.True(t, ok)
	assert.Equal(t, `"https://cdn.example.com/live/variant0/segA.ts"`, orig)
}

func TestRewriteStickyExtension(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "seg0.m4s"},
			{URI: "seg1"}, // extensionless, should reuse "m4s"
		},
	}
	st := NewState()
	require.NoError(t, Rewrite(p, base, st))
	assert.Equal(t, "segment-0.m4s", p.Segments[0].URI)
	assert.Equal(t, "segment-1.m4s", p.Segments[1].URI)
}

func TestRewriteDefaultExtensionIsTS(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{{URI: "seg-no-ext"}},
	}
	require.NoError(t, Rewrite(p, base, NewState()))
	assert.Equal(t, "segment-0.ts", p.Segments[0].URI)
}

func TestByteRangeChainLaw(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	offset := uint64(500)
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "a.ts", Range: &hlsplaylist.ByteRangeRaw{Length: 1000, Offset: &offset}},
			{URI: "b.ts", Range: &hlsplaylist.ByteRangeRaw{Length: 800}},
		},
	}
	require.NoError(t, Rewrite(p, base, NewState()))

	a, ok := p.Segments[0].GetTag(tagOriginalByteRange)
	require.True(t, ok)
	assert.Equal(t, "1000@500", a)

	b, ok := p.Segments[1].GetTag(tagOriginalByteRange)
	require.True(t, ok)
	assert.Equal(t, "800@1500", b)
}

func TestByteRangeResetsBetweenNonContiguousSegments(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "a.ts", Range: &hlsplaylist.ByteRangeRaw{Length: 1000}},
			{URI: "plain.ts"}, // no range: cursor resets
			{URI: "b.ts", Range: &hlsplaylist.ByteRangeRaw{Length: 500}},
		},
	}
	require.NoError(t, Rewrite(p, base, NewState()))
	b, ok := p.Segments[2].GetTag(tagOriginalByteRange)
	require.True(t, ok)
	assert.Equal(t, "500@0", b)
}

func TestRewriteAES128KeyIsRewrittenDeterministically(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "a.ts", Key: &hlsplaylist.Key{Method: "AES-128", URI: "https://keys.example.com/k1"}},
			{URI: "b.ts", Key: &hlsplaylist.Key{Method: "AES-128", URI: "https://keys.example.com/k1"}},
		},
	}
	require.NoError(t, Rewrite(p, base, NewState()))
	assert.Equal(t, p.Segments[0].Key.URI, p.Segments[1].Key.URI)
	assert.Regexp(t, `^key-[0-9a-f]{40}\.bin$`, p.Segments[0].Key.URI)

	origKeyURI, ok := p.Segments[0].GetTag(tagOriginalKeyURI)
	require.True(t, ok)
	assert.Equal(t, `"https://keys.example.com/k1"`, origKeyURI)
}

func TestRewriteNonAES128KeyLeftUntouched(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "a.ts", Key: &hlsplaylist.Key{Method: "NONE"}},
		},
	}
	require.NoError(t, Rewrite(p, base, NewState()))
	assert.Equal(t, "NONE", p.Segments[0].Key.Method)
	_, ok := p.Segments[0].GetTag(tagOriginalKeyURI)
	assert.False(t, ok)
}

func TestRewriteMap(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "a.ts", Map: &hlsplaylist.Map{URI: "init.mp4"}},
		},
	}
	require.NoError(t, Rewrite(p, base, NewState()))
	assert.Regexp(t, `^init-[0-9a-f]{40}\.mp4$`, p.Segments[0].Map.URI)
	origMapURI, ok := p.Segments[0].GetTag(tagOriginalMapURI)
	require.True(t, ok)
	assert.Equal(t, `"https://cdn.example.com/live/init.mp4"`, origMapURI)
}

func TestStripLLHLSTags(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	p := &hlsplaylist.MediaPlaylist{
		Tags: []hlsplaylist.Tag{{Name: "X-SERVER-CONTROL"}, {Name: "X-KEPT"}},
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "a.ts", Tags: []hlsplaylist.Tag{{Name: "X-PRELOAD-HINT"}, {Name: "X-ORIGINAL-URI"}}},
		},
	}
	require.NoError(t, Rewrite(p, base, NewState()))
	_, hasServerControl := p.GetTag("X-SERVER-CONTROL")
	assert.False(t, hasServerControl)
	_, hasKept := p.GetTag("X-KEPT")
	assert.True(t, hasKept)
	_, hasPreload := p.Segments[0].GetTag("X-PRELOAD-HINT")
	assert.False(t, hasPreload)
}

func TestRemoveSegmentsFromStartPreservesKeyAndMap(t *testing.T) {
	key := &hlsplaylist.Key{Method: "AES-128", URI: "k"}
	p := &hlsplaylist.MediaPlaylist{
		MediaSequence: 0,
		Segments: []*hlsplaylist.MediaSegment{
			{SeqID: 0, Key: key},
			{SeqID: 1},
			{SeqID: 2},
		},
	}
	RemoveSegmentsFromStart(p, 2)
	require.Len(t, p.Segments, 1)
	assert.Equal(t, uint64(2), p.MediaSequence)
	assert.Equal(t, key, p.Segments[0].Key)
}

func TestRemoveSegmentsFromStartNoOpWhenAlreadyAtOrPastLo(t *testing.T) {
	p := &hlsplaylist.MediaPlaylist{
		MediaSequence: 5,
		Segments:      []*hlsplaylist.MediaSegment{{SeqID: 5}, {SeqID: 6}},
	}
	RemoveSegmentsFromStart(p, 3)
	assert.Len(t, p.Segments, 2)
	assert.Equal(t, uint64(5), p.MediaSequence)
}

func TestRemoveSegmentsFromEndSetsEndList(t *testing.T) {
	p := &hlsplaylist.MediaPlaylist{
		MediaSequence: 100,
		Segments:      []*hlsplaylist.MediaSegment{{SeqID: 100}, {SeqID: 101}, {SeqID: 102}, {SeqID: 103}, {SeqID: 104}},
	}
	RemoveSegmentsFromEnd(p, 102)
	require.Len(t, p.Segments, 3)
	assert.True(t, p.EndList)
}

func TestLiveRefreshClipScenarioE2(t *testing.T) {
	p := &hlsplaylist.MediaPlaylist{
		MediaSequence: 100,
		Segments: []*hlsplaylist.MediaSegment{
			{SeqID: 100}, {SeqID: 101}, {SeqID: 102}, {SeqID: 103}, {SeqID: 104},
		},
	}
	RemoveSegmentsFromStart(p, 102)
	RemoveSegmentsFromEnd(p, 104)
	require.Len(t, p.Segments, 3)
	assert.Equal(t, uint64(102), p.MediaSequence)
	assert.True(t, p.EndList)
}

func TestDownloadTasksDedupsRepeatedKeyAndMap(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	offset := uint64(0)
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{
				URI:   "a.ts",
				Range: &hlsplaylist.ByteRangeRaw{Length: 1000, Offset: &offset},
				Key:   &hlsplaylist.Key{Method: "AES-128", URI: "https://keys.example.com/k1"},
				Map:   &hlsplaylist.Map{URI: "init.mp4"},
			},
			{
				URI: "b.ts",
				Key: &hlsplaylist.Key{Method: "AES-128", URI: "https://keys.example.com/k1"},
				Map: &hlsplaylist.Map{URI: "init.mp4"},
			},
		},
	}
	require.NoError(t, Rewrite(p, base, NewState()))

	tasks := DownloadTasks(p)
	// 2 segments + 1 deduped key + 1 deduped map = 4 tasks.
	require.Len(t, tasks, 4)

	byName := make(map[string]Task)
	for _, tk := range tasks {
		byName[tk.Name] = tk
	}
	seg0, ok := byName[p.Segments[0].URI]
	require.True(t, ok)
	require.NotNil(t, seg0.Range)
	assert.Equal(t, uint64(1000), seg0.Range.Length)
	assert.Equal(t, uint64(0), seg0.Range.Offset)

	keyTask, ok := byName[p.Segments[0].Key.URI]
	require.True(t, ok)
	assert.Equal(t, "https://keys.example.com/k1", keyTask.URL)
}

func TestRewriteSharedKeyAndMapPointerIsIdempotent(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	raw := []byte(`#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/k1"
#EXT-X-MAP:URI="init.mp4"
#EXTINF:6.000,
a.m4s
#EXTINF:6.000,
b.m4s
#EXTINF:6.000,
c.m4s
`)
	_, p, err := hlsplaylist.Decode(raw)
	require.NoError(t, err)
	require.Len(t, p.Segments, 3)

	// The reader hands every segment the same *Key/*Map until a new
	// EXT-X-KEY/EXT-X-MAP tag appears in source.
	require.Same(t, p.Segments[0].Key, p.Segments[1].Key)
	require.Same(t, p.Segments[0].Key, p.Segments[2].Key)
	require.Same(t, p.Segments[0].Map, p.Segments[1].Map)
	require.Same(t, p.Segments[0].Map, p.Segments[2].Map)

	require.NoError(t, Rewrite(p, base, NewState()))

	wantKeyURI := p.Segments[0].Key.URI
	wantMapURI := p.Segments[0].Map.URI
	assert.Regexp(t, `^key-[0-9a-f]{40}\.bin$`, wantKeyURI)
	assert.Regexp(t, `^init-[0-9a-f]{40}\.mp4$`, wantMapURI)

	for i, seg := range p.Segments {
		assert.Equalf(t, wantKeyURI, seg.Key.URI, "segment %d key URI", i)
		assert.Equalf(t, wantMapURI, seg.Map.URI, "segment %d map URI", i)

		origKeyURI, ok := seg.GetTag(tagOriginalKeyURI)
		require.Truef(t, ok, "segment %d missing %s", i, tagOriginalKeyURI)
		assert.Equalf(t, `"https://keys.example.com/k1"`, origKeyURI, "segment %d original key URI", i)

		origMapURI, ok := seg.GetTag(tagOriginalMapURI)
		require.Truef(t, ok, "segment %d missing %s", i, tagOriginalMapURI)
		assert.Equalf(t, `"https://cdn.example.com/live/init.mp4"`, origMapURI, "segment %d original map URI", i)
	}
}

func TestRewriteSharedMapByteRangeClearedAndChained(t *testing.T) {
	base := mustURL(t, "https://cdn.example.com/live/index.m3u8")
	raw := []byte(`#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-MAP:URI="init.mp4",BYTERANGE="500@0"
#EXTINF:6.000,
#EXT-X-BYTERANGE:1000@500
a.m4s
#EXTINF:6.000,
b.m4s
`)
	_, p, err := hlsplaylist.Decode(raw)
	require.NoError(t, err)
	require.Len(t, p.Segments, 2)
	require.Same(t, p.Segments[0].Map, p.Segments[1].Map)

	require.NoError(t, Rewrite(p, base, NewState()))

	// The local init file holds only the requested sub-range, so
	// BYTERANGE must not survive on the rewritten Map.
	assert.Nil(t, p.Segments[0].Map.Range)
	assert.Nil(t, p.Segments[1].Map.Range)

	rangeAttr, ok := p.Segments[0].Map.GetOtherAttribute(tagOriginalByteRange)
	require.True(t, ok)
	assert.Equal(t, "500@0", rangeAttr)

	tasks := DownloadTasks(p)
	var mapTask *Task
	for i := range tasks {
		if tasks[i].Name == p.Segments[0].Map.URI {
			mapTask = &tasks[i]
		}
	}
	require.NotNil(t, mapTask)
	require.NotNil(t, mapTask.Range)
	assert.Equal(t, uint64(500), mapTask.Range.Length)
	assert.Equal(t, uint64(0), mapTask.Range.Offset)
}

func TestStripRemovesBookkeepingButKeepsKeyMapTags(t *testing.T) {
	p := &hlsplaylist.MediaPlaylist{
		Tags: []hlsplaylist.Tag{{Name: "X-ORIGINAL-SERVER-CONTROL"}},
		Segments: []*hlsplaylist.MediaSegment{
			{
				URI: "segment-0.ts",
				Tags: []hlsplaylist.Tag{
					{Name: "X-ORIGINAL-URI", Value: `"http://a/b.ts"`},
					{Name: "X-ORIGINAL-BYTE-RANGE", Value: "1000@0"},
					{Name: "X-ORIGINAL-KEY-URI", Value: `"http://a/key"`},
				},
			},
		},
	}
	Strip(p)
	_, hasSC := p.GetTag("X-ORIGINAL-SERVER-CONTROL")
	assert.False(t, hasSC)
	_, hasURI := p.Segments[0].GetTag("X-ORIGINAL-URI")
	assert.False(t, hasURI)
	_, hasRange := p.Segments[0].GetTag("X-ORIGINAL-BYTE-RANGE")
	assert.False(t, hasRange)
	_, hasKeyURI := p.Segments[0].GetTag("X-ORIGINAL-KEY-URI")
	assert.True(t, hasKeyURI)
}
