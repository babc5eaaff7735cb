package hlsplaylist

import (
	"bytes"
	"fmt"
	"strconv"
)

// Encode renders the master playlist as M3U8 text, adapted from the
// attribute-writing order used by mogiioin-hls-m3u8's writer: known
// attributes first in a fixed order, then any OtherAttributes/Tags
// verbatim.
func (p *MasterPlaylist) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	ver := p.Version
	if ver == 0 {
		ver = 7
	}
	fmt.Fprintf(&buf, "#EXT-X-VERSION:%d\n", ver)
	if p.Independent {
		buf.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	}
	for _, t := range p.Tags {
		writeCustomTag(&buf, t)
	}
	for _, alt := range p.Alternatives {
		writeAlternative(&buf, alt)
	}
	for _, v := range p.Variants {
		writeVariant(&buf, v)
	}
	return buf.Bytes()
}

func writeAlternative(buf *bytes.Buffer, a *Alternative) {
	buf.WriteString("#EXT-X-MEDIA:")
	first := true
	w := func(key, val string) {
		if val == "" {
			return
		}
		if !first {
			buf.WriteString(",")
		}
		first = false
		fmt.Fprintf(buf, "%s=%s", key, val)
	}
	wq := func(key, val string) {
		if val == "" {
			return
		}
		if !first {
			buf.WriteString(",")
		}
		first = false
		fmt.Fprintf(buf, "%s=%q", key, val)
	}
	w("TYPE", a.Type)
	wq("GROUP-ID", a.GroupID)
	wq("NAME", a.Name)
	wq("LANGUAGE", a.Language)
	if a.URI != "" {
		wq("URI", a.URI)
	}
	if a.Default {
		w("DEFAULT", "YES")
	}
	if a.Autoselect {
		w("AUTOSELECT", "YES")
	}
	if a.Forced {
		w("FORCED", "YES")
	}
	wq("INSTREAM-ID", a.InstreamID)
	for _, attr := range a.OtherAttributes {
		if !first {
			buf.WriteString(",")
		}
		first = false
		fmt.Fprintf(buf, "%s=%q", attr.Key, attr.Val)
	}
	buf.WriteString("\n")
}

func writeVariant(buf *bytes.Buffer, v *Variant) {
	buf.WriteString("#EXT-X-STREAM-INF:")
	first := true
	w := func(key, val string) {
		if val == "" {
			return
		}
		if !first {
			buf.WriteString(",")
		}
		first = false
		fmt.Fprintf(buf, "%s=%s", key, val)
	}
	wq := func(key, val string) {
		if val == "" {
			return
		}
		if !first {
			buf.WriteString(",")
		}
		first = false
		fmt.Fprintf(buf, "%s=%q", key, val)
	}
	w("BANDWIDTH", strconv.FormatUint(v.Bandwidth, 10))
	if v.AverageBandwidth > 0 {
		w("AVERAGE-BANDWIDTH", strconv.FormatUint(v.AverageBandwidth, 10))
	}
	wq("CODECS", v.Codecs)
	w("RESOLUTION", v.Resolution)
	if v.FrameRate > 0 {
		w("FRAME-RATE", strconv.FormatFloat(v.FrameRate, 'f', -1, 64))
	}
	wq("AUDIO", v.Audio)
	wq("VIDEO", v.Video)
	wq("SUBTITLES", v.Subtitles)
	if v.ClosedCaptions != "" {
		if v.ClosedCaptions == "NONE" {
			w("CLOSED-CAPTIONS", "NONE")
		} else {
			wq("CLOSED-CAPTIONS", v.ClosedCaptions)
		}
	}
	for _, attr := range v.OtherAttributes {
		if !first {
			buf.WriteString(",")
		}
		first = false
		fmt.Fprintf(buf, "%s=%q", attr.Key, attr.Val)
	}
	buf.WriteString("\n")
	buf.WriteString(v.URI)
	buf.WriteString("\n")
}

// Encode renders the media playlist as M3U8 text.
func (p *MediaPlaylist) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	ver := p.Version
	if ver == 0 {
		ver = 7
	}
	fmt.Fprintf(&buf, "#EXT-X-VERSION:%d\n", ver)
	fmt.Fprintf(&buf, "#EXT-X-TARGETDURATION:%d\n", p.TargetDuration)
	fmt.Fprintf(&buf, "#EXT-X-MEDIA-SEQUENCE:%d\n", p.MediaSequence)
	if p.DiscontinuitySeq > 0 {
		fmt.Fprintf(&buf, "#EXT-X-DISCONTINUITY-SEQUENCE:%d\n", p.DiscontinuitySeq)
	}
	if p.Independent {
		buf.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	}
	if p.Iframe {
		buf.WriteString("#EXT-X-I-FRAMES-ONLY\n")
	}
	for _, t := range p.Tags {
		writeCustomTag(&buf, t)
	}

	var lastKey *Key
	var lastMap *Map
	for _, seg := range p.Segments {
		if seg.Discontinuity {
			buf.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		if seg.Key != nil && !sameKey(seg.Key, lastKey) {
			writeKey(&buf, seg.Key)
			lastKey = seg.Key
		}
		if seg.Map != nil && !sameMap(seg.Map, lastMap) {
			writeMap(&buf, seg.Map)
			lastMap = seg.Map
		}
		if seg.ProgramDateTime != "" {
			fmt.Fprintf(&buf, "#EXT-X-PROGRAM-DATE-TIME:%s\n", seg.ProgramDateTime)
		}
		for _, t := range seg.Tags {
			writeCustomTag(&buf, t)
		}
		fmt.Fprintf(&buf, "#EXTINF:%s,%s\n", formatDuration(seg.Duration), seg.Title)
		if seg.Range != nil {
			fmt.Fprintf(&buf, "#EXT-X-BYTERANGE:%s\n", formatByteRangeRaw(seg.Range))
		}
		buf.WriteString(seg.URI)
		buf.WriteString("\n")
	}
	if p.EndList {
		buf.WriteString("#EXT-X-ENDLIST\n")
	}
	return buf.Bytes()
}

func writeCustomTag(buf *bytes.Buffer, t Tag) {
	if t.Value == "" {
		fmt.Fprintf(buf, "#EXT-%s\n", t.Name)
		return
	}
	fmt.Fprintf(buf, "#EXT-%s:%s\n", t.Name, t.Value)
}

func writeKey(buf *bytes.Buffer, k *Key) {
	buf.WriteString("#EXT-X-KEY:")
	fmt.Fprintf(buf, "METHOD=%s", k.Method)
	if k.URI != "" {
		fmt.Fprintf(buf, ",URI=%q", k.URI)
	}
	if k.IV != "" {
		fmt.Fprintf(buf, ",IV=%s", k.IV)
	}
	if k.Keyformat != "" {
		fmt.Fprintf(buf, ",KEYFORMAT=%q", k.Keyformat)
	}
	if k.Keyformatversions != "" {
		fmt.Fprintf(buf, ",KEYFORMATVERSIONS=%q", k.Keyformatversions)
	}
	buf.WriteString("\n")
}

func writeMap(buf *bytes.Buffer, m *Map) {
	buf.WriteString("#EXT-X-MAP:")
	fmt.Fprintf(buf, "URI=%q", m.URI)
	if m.Range != nil {
		fmt.Fprintf(buf, ",BYTERANGE=%q", formatByteRangeRaw(m.Range))
	}
	for _, a := range m.OtherAttributes {
		fmt.Fprintf(buf, ",%s=%q", a.Key, a.Val)
	}
	buf.WriteString("\n")
}

func formatByteRangeRaw(r *ByteRangeRaw) string {
	if r.Offset == nil {
		return strconv.FormatUint(r.Length, 10)
	}
	return fmt.Sprintf("%d@%d", r.Length, *r.Offset)
}

func formatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', 3, 64)
}

func sameKey(a, b *Key) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameMap(a, b *Map) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.URI != b.URI {
		return false
	}
	return sameByteRangeRaw(a.Range, b.Range)
}

func sameByteRangeRaw(a, b *ByteRangeRaw) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Length != b.Length {
		return false
	}
	if (a.Offset == nil) != (b.Offset == nil) {
		return false
	}
	return a.Offset == nil || *a.Offset == *b.Offset
}
