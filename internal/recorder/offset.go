package recorder

import "github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"

// FindSegmentIndexByOffset implements §4.3.3: converts a user-supplied
// seconds offset into a segment index. A non-negative offset walks
// forward from the playlist start accumulating durations; a negative
// offset walks backward from the end using |offset|. Returns false if
// the offset lies outside the playlist's span.
func FindSegmentIndexByOffset(segments []*hlsplaylist.MediaSegment, offset float64) (int, bool) {
	if offset >= 0 {
		var start float64
		for i, seg := range segments {
			if offset >= start && offset < start+seg.Duration {
				return i, true
			}
			start += seg.Duration
		}
		return 0, false
	}

	target := -offset
	var start float64
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if target >= start && target < start+seg.Duration {
			return i, true
		}
		start += seg.Duration
	}
	return 0, false
}
