// Package hlsplaylist models HLS master and media playlists as mutable
// trees: URIs, tags, key/map children, byte-range fields, and
// alternative-media/variant arrays. It is adapted from the structure and
// writer logic of a standalone m3u8 library, trimmed to the subset this
// module needs — SCTE-35, DateRange, and the LL-HLS partial-segment /
// preload-hint / server-control objects are recognized only by tag name
// (for stripping), never modeled as structured types.
package hlsplaylist

// Attribute is one key=value pair as it appeared on a tag line. As
// returned by decodeAttributes the value is verbatim, including
// surrounding quotes if present; values kept in OtherAttributes are
// stored unquoted and quoted again by the writer.
type Attribute struct {
	Key string
	Val string
}

// Tag is a custom (unrecognized, or deliberately opaque) tag line kept
// verbatim so it can be round-tripped or stripped by name. Name excludes
// the leading "#EXT-" prefix (e.g. "X-FOO"); Value is everything after the colon, or
// empty for tags with no attributes.
type Tag struct {
	Name  string
	Value string
}

// ByteRangeRaw is a BYTERANGE value as it appears in source playlists,
// where the offset is optional (absent means "chained from the previous
// sub-resource"). See internal/byterange for the resolved value type.
type ByteRangeRaw struct {
	Length uint64
	Offset *uint64
}

// Key models an EXT-X-KEY tag.
type Key struct {
	Method            string
	URI               string
	IV                string
	Keyformat         string
	Keyformatversions string
}

// Map models an EXT-X-MAP tag.
type Map struct {
	URI   string
	Range *ByteRangeRaw

	// OtherAttributes are emitted verbatim (quoted) alongside URI/
	// BYTERANGE when this map is encoded; used to record
	// X-ORIGINAL-BYTE-RANGE inside the EXT-X-MAP line itself once
	// BYTERANGE is rewritten to a local, file-relative range.
	OtherAttributes []Attribute
}

// SetOtherAttribute sets (replacing any existing) a quoted attribute in
// OtherAttributes.
func (m *Map) SetOtherAttribute(key, value string) {
	m.OtherAttributes = setAttribute(m.OtherAttributes, key, value)
}

// GetOtherAttribute returns the value of a previously-set attribute.
func (m *Map) GetOtherAttribute(key string) (string, bool) {
	for _, a := range m.OtherAttributes {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// MediaSegment is one segment line group in a media playlist.
type MediaSegment struct {
	SeqID           uint64
	URI             string
	Duration        float64
	Title           string
	Range           *ByteRangeRaw
	Key             *Key
	Map             *Map
	Discontinuity   bool
	ProgramDateTime string

	// Tags holds any custom/unrecognized tags attached to this segment,
	// in source order; used to carry X-ORIGINAL-* bookkeeping.
	Tags []Tag
}

// GetTag returns the value of the first tag with the given name, if any.
func (s *MediaSegment) GetTag(name string) (string, bool) {
	return getTag(s.Tags, name)
}

// SetTag sets (replacing any existing) the tag with the given name.
func (s *MediaSegment) SetTag(name, value string) {
	s.Tags = setTag(s.Tags, name, value)
}

// RemoveTag removes any tag with the given name.
func (s *MediaSegment) RemoveTag(name string) {
	s.Tags = removeTag(s.Tags, name)
}

// MediaPlaylist is a parsed #EXTM3U media playlist.
type MediaPlaylist struct {
	TargetDuration   int
	MediaSequence    uint64
	DiscontinuitySeq uint64
	Version          int
	EndList          bool
	Iframe           bool
	Independent      bool

	Segments []*MediaSegment

	// Tags holds custom/unrecognized playlist-level tags, in source
	// order; used to carry LL-HLS placeholders and X-ORIGINAL-* markers.
	Tags []Tag
}

func (p *MediaPlaylist) GetTag(name string) (string, bool) {
	return getTag(p.Tags, name)
}

func (p *MediaPlaylist) SetTag(name, value string) {
	p.Tags = setTag(p.Tags, name, value)
}

func (p *MediaPlaylist) RemoveTag(name string) {
	p.Tags = removeTag(p.Tags, name)
}

// Alternative models an EXT-X-MEDIA tag (an alternative rendition).
type Alternative struct {
	Type       string // AUDIO, VIDEO, SUBTITLES, CLOSED-CAPTIONS
	URI        string
	GroupID    string
	Language   string
	Name       string
	Default    bool
	Autoselect bool
	Forced     bool
	InstreamID string

	// OtherAttributes are emitted verbatim (quoted) alongside the known
	// attributes when this alternative is encoded; used to record
	// X-ORIGINAL-URI inside the EXT-X-MEDIA line itself.
	OtherAttributes []Attribute
}

// SetOtherAttribute sets (replacing any existing) a quoted attribute in
// OtherAttributes.
func (a *Alternative) SetOtherAttribute(key, value string) {
	a.OtherAttributes = setAttribute(a.OtherAttributes, key, value)
}

// Variant models an EXT-X-STREAM-INF tag and its URI line.
type Variant struct {
	URI              string
	Bandwidth        uint64
	AverageBandwidth uint64
	Codecs           string
	Resolution       string
	FrameRate        float64
	Audio            string
	Video            string
	Subtitles        string
	ClosedCaptions   string

	// OtherAttributes are emitted verbatim (quoted) alongside the known
	// attributes; used to record X-ORIGINAL-URI inside EXT-X-STREAM-INF.
	OtherAttributes []Attribute
}

func (v *Variant) SetOtherAttribute(key, value string) {
	v.OtherAttributes = setAttribute(v.OtherAttributes, key, value)
}

// MasterPlaylist is a parsed #EXTM3U master playlist.
type MasterPlaylist struct {
	Version     int
	Independent bool

	Variants     []*Variant
	Alternatives []*Alternative

	// Tags holds custom/unrecognized playlist-level tags, in source
	// order.
	Tags []Tag
}

func (p *MasterPlaylist) GetTag(name string) (string, bool) {
	return getTag(p.Tags, name)
}

func (p *MasterPlaylist) SetTag(name, value string) {
	p.Tags = setTag(p.Tags, name, value)
}

func (p *MasterPlaylist) RemoveTag(name string) {
	p.Tags = removeTag(p.Tags, name)
}

func getTag(tags []Tag, name string) (string, bool) {
	for _, t := range tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

func setTag(tags []Tag, name, value string) []Tag {
	for i := range tags {
		if tags[i].Name == name {
			tags[i].Value = value
			return tags
		}
	}
	return append(tags, Tag{Name: name, Value: value})
}

func removeTag(tags []Tag, name string) []Tag {
	out := tags[:0]
	for _, t := range tags {
		if t.Name != name {
			out = append(out, t)
		}
	}
	return out
}

func setAttribute(attrs []Attribute, key, value string) []Attribute {
	for i := range attrs {
		if attrs[i].Key == key {
			attrs[i].Val = value
			return attrs
		}
	}
	return append(attrs, Attribute{Key: key, Val: value})
}

// llHLSTagNames are the tags stripped by the rewriter and never round
// tripped (§4.1 of the rewriter design): low-latency parts, preload
// hints, rendition reports, and server control.
var llHLSTagNames = []string{
	"X-PART",
	"X-PART-INF",
	"X-PRELOAD-HINT",
	"X-RENDITION-REPORT",
	"X-SERVER-CONTROL",
}

// IsLLHLSTag reports whether name (without the "#EXT-" prefix, e.g.
// "X-PART-INF") is one of the stripped low-latency tags.
func IsLLHLSTag(name string) bool {
	for _, n := range llHLSTagNames {
		if n == name {
			return true
		}
	}
	return false
}
