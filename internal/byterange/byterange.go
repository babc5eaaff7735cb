// Package byterange implements the resolved byte-range value type used
// throughout the rewriter and downloader: a length and an always-present
// offset, in contrast to hlsplaylist.ByteRangeRaw where the offset is
// optional and chains from a running cursor.
package byterange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
)

// ByteRange is a resolved sub-resource range: Length bytes starting at
// Offset, inclusive of Offset, exclusive of Offset+Length.
type ByteRange struct {
	Length uint64
	Offset uint64
}

// String renders the range in the on-disk/tag form "<length>@<offset>".
func (r ByteRange) String() string {
	return fmt.Sprintf("%d@%d", r.Length, r.Offset)
}

// End returns the inclusive last byte index covered by the range, for
// use in an HTTP Range header end (which is inclusive, unlike this
// struct's own half-open convention — see Cursor).
func (r ByteRange) End() uint64 {
	if r.Length == 0 {
		return r.Offset
	}
	return r.Offset + r.Length - 1
}

// Cursor returns the offset immediately following this range, i.e. the
// value a subsequent offset-less range should chain from.
func (r ByteRange) Cursor() uint64 {
	return r.Offset + r.Length
}

// Parse parses the "<length>@<offset>" form produced by String.
func Parse(s string) (ByteRange, error) {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 {
		return ByteRange{}, fmt.Errorf("byterange: malformed value %q", s)
	}
	length, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return ByteRange{}, fmt.Errorf("byterange: invalid length in %q: %w", s, err)
	}
	offset, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return ByteRange{}, fmt.Errorf("byterange: invalid offset in %q: %w", s, err)
	}
	return ByteRange{Length: length, Offset: offset}, nil
}

// FromRaw resolves an hlsplaylist.ByteRangeRaw against a running cursor:
// when the raw value has no offset, cursor supplies it. The returned
// cursor is the value to pass for the next range in the same chain; a
// caller starting a new, non-contiguous chain should reset it to 0
// first (per spec §3: "reset to 0 between non-contiguous segments").
func FromRaw(raw *hlsplaylist.ByteRangeRaw, cursor uint64) (ByteRange, uint64) {
	offset := cursor
	if raw.Offset != nil {
		offset = *raw.Offset
	}
	r := ByteRange{Length: raw.Length, Offset: offset}
	return r, r.Cursor()
}

// ToRaw converts a resolved ByteRange back into the parser's optional-
// offset shape, always including the offset explicitly.
func (r ByteRange) ToRaw() *hlsplaylist.ByteRangeRaw {
	offset := r.Offset
	return &hlsplaylist.ByteRangeRaw{Length: r.Length, Offset: &offset}
}
