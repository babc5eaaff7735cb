// Package rewriter implements the pure, non-I/O transformation of a
// parsed media playlist described in §4.1: assigning stable local
// filenames to segments/keys/maps, recording original URIs in custom
// X-ORIGINAL-* tags, normalizing byte ranges, and dropping LL-HLS tags.
// It also implements the sequence-number clipping helpers and the
// replay-side Strip operation.
package rewriter

import (
	"crypto/sha1" //nolint:gosec // naming only, not a security boundary; see urlutil.Hex doc.
	"fmt"
	"net/url"
	"strconv"

	"github.com/jmylchreest/hlsarchiver/internal/byterange"
	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/jmylchreest/hlsarchiver/internal/urlutil"
)

const (
	tagOriginalURI             = "X-ORIGINAL-URI"
	tagOriginalByteRange       = "X-ORIGINAL-BYTE-RANGE"
	tagOriginalKeyURI          = "X-ORIGINAL-KEY-URI"
	tagOriginalMapURI          = "X-ORIGINAL-MAP-URI"
	tagOriginalServerControl   = "X-ORIGINAL-SERVER-CONTROL"
	tagOriginalPreloadHint     = "X-ORIGINAL-PRELOAD-HINT"
	tagOriginalRenditionReport = "X-ORIGINAL-RENDITION-REPORT"
)

// State carries the sticky extension and byte-range cursor across
// playlist refresh iterations of one media-playlist recording task; it
// must be constructed once per task and reused on every Rewrite call
// for that task (§4.1: "extension policy... once observed, remembered
// and reused for extensionless successors").
type State struct {
	lastSegmentExt string
	cursor         uint64
}

// NewState returns a fresh State for a new recording task.
func NewState() *State {
	return &State{}
}

// Rewrite transforms p in place: segment filenames, byte ranges, key/
// map rewriting, and LL-HLS tag stripping. playlistURL is the absolute
// URL the playlist itself was fetched from, used to resolve every
// relative child URI.
func Rewrite(p *hlsplaylist.MediaPlaylist, playlistURL *url.URL, st *State) error {
	// Keyed by pointer identity: the reader hands every segment covered
	// by one EXT-X-KEY/EXT-X-MAP the same *Key/*Map until a new tag
	// appears in source (reader.go's curKey/curMap persist across
	// segments), so rewriting must run once per distinct object, not
	// once per segment, or the second pass re-resolves and re-hashes
	// the already-rewritten local name.
	seenKeys := make(map[*hlsplaylist.Key]string)
	seenMaps := make(map[*hlsplaylist.Map]mapRewrite)
	for i, seg := range p.Segments {
		seq := p.MediaSequence + uint64(i)
		if err := rewriteSegmentURI(seg, seq, playlistURL, st); err != nil {
			return fmt.Errorf("rewriter: segment %d: %w", seq, err)
		}
		if err := rewriteByteRange(seg, st); err != nil {
			return fmt.Errorf("rewriter: segment %d: %w", seq, err)
		}
		if err := rewriteKey(seg, playlistURL, seenKeys); err != nil {
			return fmt.Errorf("rewriter: segment %d: %w", seq, err)
		}
		if err := rewriteMap(seg, playlistURL, seenMaps, st); err != nil {
			return fmt.Errorf("rewriter: segment %d: %w", seq, err)
		}
		stripLLHLSTags(&seg.Tags)
	}
	stripLLHLSTags(&p.Tags)
	return nil
}

func rewriteSegmentURI(seg *hlsplaylist.MediaSegment, seq uint64, base *url.URL, st *State) error {
	abs, err := urlutil.Resolve(base, seg.URI)
	if err != nil {
		return fmt.Errorf("resolving segment URI %q: %w", seg.URI, err)
	}
	ext := urlutil.Extension(seg.URI)
	if ext != "" {
		st.lastSegmentExt = ext
	} else if st.lastSegmentExt != "" {
		ext = st.lastSegmentExt
	} else {
		ext = "ts"
	}
	seg.SetTag(tagOriginalURI, quote(abs.String()))
	seg.URI = fmt.Sprintf("segment-%d.%s", seq, ext)
	return nil
}

// rewriteByteRange normalizes the segment's byte range against the
// running cursor (filling a missing offset), emits the original value
// as a tag, and advances or resets the cursor (§4.1 step 2, the "byte-
// range cursor law" of invariant 2).
func rewriteByteRange(seg *hlsplaylist.MediaSegment, st *State) error {
	if seg.Range == nil {
		st.cursor = 0
		return nil
	}
	resolved, next := byterange.FromRaw(seg.Range, st.cursor)
	st.cursor = next
	seg.SetTag(tagOriginalByteRange, resolved.String())
	// The on-disk file holds only the fetched sub-range, starting at
	// file offset 0 — the absolute range now lives solely in
	// X-ORIGINAL-BYTE-RANGE, so the segment's own BYTERANGE must not
	// be re-emitted against it on encode.
	seg.Range = nil
	return nil
}

// rewriteKey rewrites an AES-128 key fetched over HTTP(S) to a
// deterministic key-<sha1>.bin name, recording the original URL. Non-
// AES-128 or non-HTTP(S) keys (e.g. METHOD=NONE, or a DRM keyformat
// with no directly fetchable URI) are left untouched — a legitimate
// no-op per §7's propagation policy.
//
// seen caches the original absolute URL already resolved for a given
// *Key pointer: one EXT-X-KEY tag covers every segment up to the next
// one, so the reader hands them all the same object, and a second pass
// over an already-rewritten k.URI would resolve the local filename
// against base and hash that instead of the true original.
func rewriteKey(seg *hlsplaylist.MediaSegment, base *url.URL, seen map[*hlsplaylist.Key]string) error {
	k := seg.Key
	if k == nil || k.Method != "AES-128" || k.URI == "" {
		return nil
	}
	if quoted, ok := seen[k]; ok {
		seg.SetTag(tagOriginalKeyURI, quoted)
		return nil
	}
	abs, err := urlutil.Resolve(base, k.URI)
	if err != nil {
		return fmt.Errorf("resolving key URI %q: %w", k.URI, err)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil
	}
	quoted := quote(abs.String())
	seg.SetTag(tagOriginalKeyURI, quoted)
	k.URI = fmt.Sprintf("key-%s.bin", sha1Hex(abs.String()))
	seen[k] = quoted
	return nil
}

// mapRewrite is what's cached per distinct *Map so a later segment
// sharing the pointer can replay its effects without re-resolving or
// re-hashing an already-rewritten URI.
type mapRewrite struct {
	originalURI string // quoted, for X-ORIGINAL-MAP-URI
	hasRange    bool
	cursorAfter uint64
}

// rewriteMap rewrites the segment's MAP child, if any, to a
// deterministic init-<sha1>.<ext> name, recording the original URL and
// normalizing any BYTERANGE attribute via the same cursor rule used for
// segments, chained from the segment's own byte range (the original's
// rewrite_map/rewrite_byte_range_in_attribute thread one running cursor
// through both the segment and its map, in that order — a map with no
// BYTERANGE of its own resets the cursor, same as a range-less segment).
//
// seen caches that chaining effect, and the original absolute URL, per
// distinct *Map pointer: one EXT-X-MAP covers every segment up to the
// next one, so the reader hands them all the same object, and a second
// pass over an already-rewritten m.URI would resolve the local
// filename against base and hash that instead of the true original.
func rewriteMap(seg *hlsplaylist.MediaSegment, base *url.URL, seen map[*hlsplaylist.Map]mapRewrite, st *State) error {
	m := seg.Map
	if m == nil {
		return nil
	}
	if rw, ok := seen[m]; ok {
		if rw.hasRange {
			st.cursor = rw.cursorAfter
		} else {
			st.cursor = 0
		}
		seg.SetTag(tagOriginalMapURI, rw.originalURI)
		return nil
	}
	abs, err := urlutil.Resolve(base, m.URI)
	if err != nil {
		return fmt.Errorf("resolving map URI %q: %w", m.URI, err)
	}
	ext := urlutil.Extension(m.URI)
	if ext == "" {
		ext = "mp4"
	}
	rw := mapRewrite{originalURI: quote(abs.String())}
	if m.Range != nil {
		resolved, next := byterange.FromRaw(m.Range, st.cursor)
		st.cursor = next
		rw.hasRange = true
		rw.cursorAfter = next
		// The file fetched for this map holds only the requested
		// sub-range starting at local offset 0, so the absolute range
		// lives solely in the X-ORIGINAL-BYTE-RANGE attribute on the
		// EXT-X-MAP line itself (per the map's own attribute set, not
		// a segment tag — a segment can carry both its own range and
		// its map's simultaneously) and BYTERANGE must not be
		// re-emitted against the local file on encode.
		m.SetOtherAttribute(tagOriginalByteRange, resolved.String())
		m.Range = nil
	} else {
		st.cursor = 0
	}
	seg.SetTag(tagOriginalMapURI, rw.originalURI)
	m.URI = fmt.Sprintf("init-%s.%s", sha1Hex(abs.String()), ext)
	seen[m] = rw
	return nil
}

func stripLLHLSTags(tags *[]hlsplaylist.Tag) {
	out := (*tags)[:0]
	for _, t := range *tags {
		if !hlsplaylist.IsLLHLSTag(t.Name) {
			out = append(out, t)
		}
	}
	*tags = out
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // naming only
	return urlutil.Hex(sum[:])
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

// RemoveSegmentsFromStart drains segments with sequence number below
// lo, remembering the last KEY/MAP seen among removed segments so the
// surviving first segment can inherit them if it has none of its own
// (§4.1, invariant 3).
func RemoveSegmentsFromStart(p *hlsplaylist.MediaPlaylist, lo uint64) {
	if p.MediaSequence >= lo {
		return
	}
	drop := int(lo - p.MediaSequence)
	if drop > len(p.Segments) {
		drop = len(p.Segments)
	}

	var lastKey *hlsplaylist.Key
	var lastMap *hlsplaylist.Map
	for _, seg := range p.Segments[:drop] {
		if seg.Key != nil {
			lastKey = seg.Key
		}
		if seg.Map != nil {
			lastMap = seg.Map
		}
	}

	p.Segments = p.Segments[drop:]
	p.MediaSequence = lo

	if len(p.Segments) > 0 {
		first := p.Segments[0]
		if first.Key == nil {
			first.Key = lastKey
		}
		if first.Map == nil {
			first.Map = lastMap
		}
	}
}

// RemoveSegmentsFromEnd truncates the playlist after the segment whose
// sequence number equals hi, and sets EndList so no further refresh is
// attempted (§4.1, invariant 4).
func RemoveSegmentsFromEnd(p *hlsplaylist.MediaPlaylist, hi uint64) {
	for i, seg := range p.Segments {
		seq := p.MediaSequence + uint64(i)
		_ = seg
		if seq == hi {
			p.Segments = p.Segments[:i+1]
			break
		}
	}
	p.EndList = true
}

// Task describes one file the recorder's download pipeline must fetch:
// the original absolute URL, the local name it was rewritten to, and an
// optional byte range to request (§4.3.5).
type Task struct {
	URL   string
	Name  string
	Range *byterange.ByteRange
}

// DownloadTasks flattens a rewritten media playlist into the segment/
// key/map download tasks §4.3.4 dispatches through the bounded
// pipeline, reading back the X-ORIGINAL-* bookkeeping Rewrite recorded.
func DownloadTasks(p *hlsplaylist.MediaPlaylist) []Task {
	var tasks []Task
	seenKeys := make(map[string]bool)
	seenMaps := make(map[string]bool)

	for _, seg := range p.Segments {
		if origURI, ok := seg.GetTag(tagOriginalURI); ok {
			task := Task{URL: unquote(origURI), Name: seg.URI}
			if rangeTag, ok := seg.GetTag(tagOriginalByteRange); ok {
				if br, err := byterange.Parse(rangeTag); err == nil {
					task.Range = &br
				}
			}
			tasks = append(tasks, task)
		}

		if seg.Key != nil {
			if origURI, ok := seg.GetTag(tagOriginalKeyURI); ok && !seenKeys[seg.Key.URI] {
				seenKeys[seg.Key.URI] = true
				tasks = append(tasks, Task{URL: unquote(origURI), Name: seg.Key.URI})
			}
		}

		if seg.Map != nil {
			if origURI, ok := seg.GetTag(tagOriginalMapURI); ok && !seenMaps[seg.Map.URI] {
				seenMaps[seg.Map.URI] = true
				task := Task{URL: unquote(origURI), Name: seg.Map.URI}
				if rangeAttr, ok := seg.Map.GetOtherAttribute(tagOriginalByteRange); ok {
					if br, err := byterange.Parse(rangeAttr); err == nil {
						task.Range = &br
					}
				}
				tasks = append(tasks, task)
			}
		}
	}
	return tasks
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}

// Strip removes recorder bookkeeping tags before serving a media
// playlist to a replay client (§4.1 "Strip (replay side)"). Original
// key/map tags are intentionally left in place, mirroring source
// behavior — harmless to clients, useful for debugging.
func Strip(p *hlsplaylist.MediaPlaylist) {
	p.RemoveTag(tagOriginalServerControl)
	p.RemoveTag(tagOriginalPreloadHint)
	p.RemoveTag(tagOriginalRenditionReport)
	for _, seg := range p.Segments {
		seg.RemoveTag(tagOriginalURI)
		seg.RemoveTag(tagOriginalByteRange)
	}
}
