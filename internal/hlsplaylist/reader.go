package hlsplaylist

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// reKeyValue splits a comma-separated attribute list into key=value
// pairs, tolerating commas inside quoted values — adapted from
// mogiioin-hls-m3u8's decodeAttributes.
var reKeyValue = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)

// Decode parses raw M3U8 text and returns exactly one of master or
// media, based on the presence of EXT-X-STREAM-INF/EXT-X-MEDIA tags
// (master) versus EXTINF (media).
func Decode(data []byte) (master *MasterPlaylist, media *MediaPlaylist, err error) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("#EXTM3U")) {
		return nil, nil, fmt.Errorf("hlsplaylist: missing #EXTM3U header")
	}
	if bytes.Contains(data, []byte("#EXT-X-STREAM-INF")) || bytes.Contains(data, []byte("#EXT-X-MEDIA:")) {
		m, err := decodeMaster(data)
		return m, nil, err
	}
	p, err := decodeMedia(data)
	return nil, p, err
}

func decodeAttributes(line string) []Attribute {
	matches := reKeyValue.FindAllStringSubmatch(line, -1)
	attrs := make([]Attribute, 0, len(matches))
	for _, kv := range matches {
		attrs = append(attrs, Attribute{Key: kv[1], Val: kv[2]})
	}
	return attrs
}

func deQuote(s string) string {
	return strings.Trim(s, `"`)
}

func decodeMaster(data []byte) (*MasterPlaylist, error) {
	p := &MasterPlaylist{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pendingVariant *Variant
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "#EXTM3U" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			v, _ := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-VERSION:"))
			p.Version = v
		case line == "#EXT-X-INDEPENDENT-SEGMENTS":
			p.Independent = true
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			p.Alternatives = append(p.Alternatives, decodeAlternative(line))
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v, err := decodeVariant(line)
			if err != nil {
				return nil, err
			}
			pendingVariant = v
		case strings.HasPrefix(line, "#EXT-X-I-FRAME-STREAM-INF:"):
			// I-frame-only streams carry their own URI attribute and
			// have no following URI line; not needed by this module's
			// selection semantics, so only the custom tag is kept.
			p.Tags = append(p.Tags, parseCustomTag(line))
		case strings.HasPrefix(line, "#EXT-X-"):
			p.Tags = append(p.Tags, parseCustomTag(line))
		case strings.HasPrefix(line, "#"):
			// unrecognized comment-style tag, ignored
		default:
			if pendingVariant != nil {
				pendingVariant.URI = line
				p.Variants = append(p.Variants, pendingVariant)
				pendingVariant = nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("hlsplaylist: scanning master playlist: %w", err)
	}
	return p, nil
}

func decodeVariant(line string) (*Variant, error) {
	const prefix = "#EXT-X-STREAM-INF:"
	v := &Variant{}
	for _, a := range decodeAttributes(strings.TrimPrefix(line, prefix)) {
		switch a.Key {
		case "BANDWIDTH":
			n, err := strconv.ParseUint(a.Val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("hlsplaylist: invalid BANDWIDTH %q: %w", a.Val, err)
			}
			v.Bandwidth = n
		case "AVERAGE-BANDWIDTH":
			n, _ := strconv.ParseUint(a.Val, 10, 64)
			v.AverageBandwidth = n
		case "CODECS":
			v.Codecs = deQuote(a.Val)
		case "RESOLUTION":
			v.Resolution = a.Val
		case "FRAME-RATE":
			f, _ := strconv.ParseFloat(a.Val, 64)
			v.FrameRate = f
		case "AUDIO":
			v.Audio = deQuote(a.Val)
		case "VIDEO":
			v.Video = deQuote(a.Val)
		case "SUBTITLES":
			v.Subtitles = deQuote(a.Val)
		case "CLOSED-CAPTIONS":
			if a.Val == "NONE" {
				v.ClosedCaptions = "NONE"
			} else {
				v.ClosedCaptions = deQuote(a.Val)
			}
		default:
			v.OtherAttributes = append(v.OtherAttributes, Attribute{Key: a.Key, Val: deQuote(a.Val)})
		}
	}
	return v, nil
}

func decodeAlternative(line string) *Alternative {
	const prefix = "#EXT-X-MEDIA:"
	a := &Alternative{}
	for _, attr := range decodeAttributes(strings.TrimPrefix(line, prefix)) {
		switch attr.Key {
		case "TYPE":
			a.Type = attr.Val
		case "URI":
			a.URI = deQuote(attr.Val)
		case "GROUP-ID":
			a.GroupID = deQuote(attr.Val)
		case "LANGUAGE":
			a.Language = deQuote(attr.Val)
		case "NAME":
			a.Name = deQuote(attr.Val)
		case "DEFAULT":
			a.Default = attr.Val == "YES"
		case "AUTOSELECT":
			a.Autoselect = attr.Val == "YES"
		case "FORCED":
			a.Forced = attr.Val == "YES"
		case "INSTREAM-ID":
			a.InstreamID = deQuote(attr.Val)
		default:
			a.OtherAttributes = append(a.OtherAttributes, Attribute{Key: attr.Key, Val: deQuote(attr.Val)})
		}
	}
	return a
}

func decodeMedia(data []byte) (*MediaPlaylist, error) {
	p := &MediaPlaylist{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var seq uint64
	var curDuration float64
	var curTitle string
	var curDiscontinuity bool
	var curPDT string
	var curKey *Key
	var curMap *Map
	var curRange *ByteRangeRaw
	var curTags []Tag
	var rangeCursor uint64
	haveMediaSeqTag := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "#EXTM3U" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			v, _ := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-VERSION:"))
			p.Version = v
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			v, _ := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			p.TargetDuration = v
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			v, _ := strconv.ParseUint(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64)
			p.MediaSequence = v
			seq = v
			haveMediaSeqTag = true
		case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"):
			v, _ := strconv.ParseUint(strings.TrimPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"), 10, 64)
			p.DiscontinuitySeq = v
		case line == "#EXT-X-INDEPENDENT-SEGMENTS":
			p.Independent = true
		case line == "#EXT-X-I-FRAMES-ONLY":
			p.Iframe = true
		case line == "#EXT-X-ENDLIST":
			p.EndList = true
		case line == "#EXT-X-DISCONTINUITY":
			curDiscontinuity = true
		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			curPDT = strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")
		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			k, err := decodeKey(line)
			if err != nil {
				return nil, err
			}
			curKey = k
		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			m, err := decodeMap(line)
			if err != nil {
				return nil, err
			}
			curMap = m
		case strings.HasPrefix(line, "#EXT-X-BYTERANGE:"):
			r, err := parseByteRangeRawAttr(strings.TrimPrefix(line, "#EXT-X-BYTERANGE:"))
			if err != nil {
				return nil, err
			}
			curRange = r
		case strings.HasPrefix(line, "#EXTINF:"):
			d, title, err := decodeExtinf(line)
			if err != nil {
				return nil, err
			}
			curDuration = d
			curTitle = title
		case strings.HasPrefix(line, "#EXT-X-"):
			curTags = append(curTags, parseCustomTag(line))
		case strings.HasPrefix(line, "#"):
			// unrecognized comment-style tag, ignored
		default:
			if curRange != nil {
				curRange = resolveCursor(curRange, &rangeCursor)
			} else {
				rangeCursor = 0
			}
			seg := &MediaSegment{
				SeqID:           seq,
				URI:             line,
				Duration:        curDuration,
				Title:           curTitle,
				Range:           curRange,
				Key:             curKey,
				Map:             curMap,
				Discontinuity:   curDiscontinuity,
				ProgramDateTime: curPDT,
				Tags:            curTags,
			}
			p.Segments = append(p.Segments, seg)
			seq++
			curDuration, curTitle, curDiscontinuity, curPDT, curRange, curTags = 0, "", false, "", nil, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("hlsplaylist: scanning media playlist: %w", err)
	}
	if !haveMediaSeqTag {
		p.MediaSequence = 0
	}
	return p, nil
}

// resolveCursor fills in a missing offset from the running byte-range
// cursor and advances it — the reader-side half of the cursor law
// described in the rewriter's design (§4.1.2 of the spec this package
// supports).
func resolveCursor(r *ByteRangeRaw, cursor *uint64) *ByteRangeRaw {
	out := &ByteRangeRaw{Length: r.Length}
	var offset uint64
	if r.Offset != nil {
		offset = *r.Offset
	} else {
		offset = *cursor
	}
	out.Offset = &offset
	*cursor = offset + r.Length
	return out
}

func decodeExtinf(line string) (float64, string, error) {
	rest := strings.TrimPrefix(line, "#EXTINF:")
	parts := strings.SplitN(rest, ",", 2)
	d, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, "", fmt.Errorf("hlsplaylist: invalid EXTINF duration %q: %w", parts[0], err)
	}
	title := ""
	if len(parts) == 2 {
		title = parts[1]
	}
	return d, title, nil
}

func decodeKey(line string) (*Key, error) {
	const prefix = "#EXT-X-KEY:"
	k := &Key{}
	for _, a := range decodeAttributes(strings.TrimPrefix(line, prefix)) {
		switch a.Key {
		case "METHOD":
			k.Method = a.Val
		case "URI":
			k.URI = deQuote(a.Val)
		case "IV":
			k.IV = a.Val
		case "KEYFORMAT":
			k.Keyformat = deQuote(a.Val)
		case "KEYFORMATVERSIONS":
			k.Keyformatversions = deQuote(a.Val)
		}
	}
	if k.Method == "" {
		return nil, fmt.Errorf("hlsplaylist: EXT-X-KEY missing METHOD")
	}
	return k, nil
}

func decodeMap(line string) (*Map, error) {
	const prefix = "#EXT-X-MAP:"
	m := &Map{}
	for _, a := range decodeAttributes(strings.TrimPrefix(line, prefix)) {
		switch a.Key {
		case "URI":
			m.URI = deQuote(a.Val)
		case "BYTERANGE":
			r, err := parseByteRangeRawAttr(deQuote(a.Val))
			if err != nil {
				return nil, err
			}
			m.Range = r
		default:
			m.OtherAttributes = append(m.OtherAttributes, Attribute{Key: a.Key, Val: deQuote(a.Val)})
		}
	}
	if m.URI == "" {
		return nil, fmt.Errorf("hlsplaylist: EXT-X-MAP missing URI")
	}
	return m, nil
}

// parseByteRangeRawAttr parses "<length>" or "<length>@<offset>".
func parseByteRangeRawAttr(s string) (*ByteRangeRaw, error) {
	if s == "" {
		return nil, fmt.Errorf("hlsplaylist: empty byte range")
	}
	parts := strings.SplitN(s, "@", 2)
	length, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("hlsplaylist: invalid byte range length %q: %w", parts[0], err)
	}
	r := &ByteRangeRaw{Length: length}
	if len(parts) == 2 {
		offset, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("hlsplaylist: invalid byte range offset %q: %w", parts[1], err)
		}
		r.Offset = &offset
	}
	return r, nil
}

// parseCustomTag turns "#EXT-X-FOO:bar" into Tag{Name:"X-FOO", Value:"bar"},
// or "#EXT-X-FOO" into Tag{Name:"X-FOO"}.
func parseCustomTag(line string) Tag {
	body := strings.TrimPrefix(line, "#EXT-")
	if i := strings.IndexByte(body, ':'); i >= 0 {
		return Tag{Name: body[:i], Value: body[i+1:]}
	}
	return Tag{Name: body}
}
