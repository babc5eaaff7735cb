// Package selection implements the variant and alternative-media
// filters described in §4.2: VariantSelect/MediaSelect policies and
// rendition pruning by group-id reachability.
package selection

import "github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"

// VariantMode is the tagged-variant selection policy for master-
// playlist variants.
type VariantMode int

const (
	VariantFirst VariantMode = iota
	VariantLowest
	VariantHighest
	VariantAll
	VariantBandwidthCap
)

// VariantPolicy selects VariantMode, with BandwidthCap carrying its
// cap value (bytes/sec, as the playlist's BANDWIDTH attribute is
// specified).
type VariantPolicy struct {
	Mode      VariantMode
	Bandwidth uint64 // only meaningful when Mode == VariantBandwidthCap
}

// MediaMode is the selection policy for alternative media renditions.
type MediaMode int

const (
	MediaDefault MediaMode = iota
	MediaFirst
	MediaAll
)

// SelectVariants filters variants per policy, returning a slice that
// preserves source ordering (required so VariantAll mirrors the
// original list order).
func SelectVariants(variants []*hlsplaylist.Variant, policy VariantPolicy) []*hlsplaylist.Variant {
	switch policy.Mode {
	case VariantFirst:
		if len(variants) == 0 {
			return nil
		}
		return variants[:1]
	case VariantLowest:
		return extremeByBandwidth(variants, false)
	case VariantHighest:
		return extremeByBandwidth(variants, true)
	case VariantAll:
		return variants
	case VariantBandwidthCap:
		return bandwidthCap(variants, policy.Bandwidth)
	default:
		return nil
	}
}

func extremeByBandwidth(variants []*hlsplaylist.Variant, highest bool) []*hlsplaylist.Variant {
	if len(variants) == 0 {
		return nil
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if highest && v.Bandwidth > best.Bandwidth {
			best = v
		}
		if !highest && v.Bandwidth < best.Bandwidth {
			best = v
		}
	}
	return []*hlsplaylist.Variant{best}
}

// bandwidthCap returns, among variants with bandwidth <= cap, the one
// with the highest bandwidth (ties broken by first occurrence);
// falling back to the overall lowest-bandwidth variant if none fit.
func bandwidthCap(variants []*hlsplaylist.Variant, limit uint64) []*hlsplaylist.Variant {
	if len(variants) == 0 {
		return nil
	}
	var best *hlsplaylist.Variant
	for _, v := range variants {
		if v.Bandwidth <= limit && (best == nil || v.Bandwidth > best.Bandwidth) {
			best = v
		}
	}
	if best == nil {
		return extremeByBandwidth(variants, false)
	}
	return []*hlsplaylist.Variant{best}
}

// SelectMedia filters alternative media renditions of a single group
// per policy.
func SelectMedia(alts []*hlsplaylist.Alternative, mode MediaMode) []*hlsplaylist.Alternative {
	switch mode {
	case MediaDefault:
		for _, a := range alts {
			if a.Default {
				return []*hlsplaylist.Alternative{a}
			}
		}
		return nil
	case MediaFirst:
		if len(alts) == 0 {
			return nil
		}
		return alts[:1]
	case MediaAll:
		return alts
	default:
		return nil
	}
}

// mediaType categories used for partitioning and for the Audio/Video/
// Subtitles/ClosedCaptions group-id attributes a variant references.
const (
	typeAudio   = "AUDIO"
	typeVideo   = "VIDEO"
	typeSubs    = "SUBTITLES"
	typeCaption = "CLOSED-CAPTIONS"
)

// PruneAlternatives drops any alternative media whose group-id is not
// referenced by at least one of the selected variants, matched per
// media type (§4.2). Alternatives of any other Type are retained
// unfiltered.
func PruneAlternatives(alts []*hlsplaylist.Alternative, selectedVariants []*hlsplaylist.Variant) []*hlsplaylist.Alternative {
	referenced := map[string]map[string]bool{
		typeAudio:   {},
		typeVideo:   {},
		typeSubs:    {},
		typeCaption: {},
	}
	for _, v := range selectedVariants {
		addGroup(referenced[typeAudio], v.Audio)
		addGroup(referenced[typeVideo], v.Video)
		addGroup(referenced[typeSubs], v.Subtitles)
		if v.ClosedCaptions != "" && v.ClosedCaptions != "NONE" {
			addGroup(referenced[typeCaption], v.ClosedCaptions)
		}
	}

	var out []*hlsplaylist.Alternative
	for _, a := range alts {
		groups, known := referenced[a.Type]
		if !known {
			out = append(out, a)
			continue
		}
		if groups[a.GroupID] {
			out = append(out, a)
		}
	}
	return out
}

func addGroup(m map[string]bool, groupID string) {
	if groupID == "" {
		return
	}
	m[groupID] = true
}

// Partition splits alternatives (already pruned) into audio, video,
// subtitles, closed-captions, and other buckets, each preserving source
// order — used by the recorder to apply a MediaMode per type and
// reassemble in that fixed order (§4.3.1).
func Partition(alts []*hlsplaylist.Alternative) (audio, video, subtitles, captions, other []*hlsplaylist.Alternative) {
	for _, a := range alts {
		switch a.Type {
		case typeAudio:
			audio = append(audio, a)
		case typeVideo:
			video = append(video, a)
		case typeSubs:
			subtitles = append(subtitles, a)
		case typeCaption:
			captions = append(captions, a)
		default:
			other = append(other, a)
		}
	}
	return
}
