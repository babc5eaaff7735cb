package hlsplaylist

// Clone returns a deep copy of the master playlist, so the recorder can
// filter/rewrite a working copy while leaving the originally parsed tree
// untouched (spec §4.3.1: "Clone the parsed master playlist").
func (p *MasterPlaylist) Clone() *MasterPlaylist {
	if p == nil {
		return nil
	}
	out := &MasterPlaylist{
		Version:     p.Version,
		Independent: p.Independent,
		Tags:        cloneTags(p.Tags),
	}
	out.Variants = make([]*Variant, len(p.Variants))
	for i, v := range p.Variants {
		out.Variants[i] = v.clone()
	}
	out.Alternatives = make([]*Alternative, len(p.Alternatives))
	for i, a := range p.Alternatives {
		out.Alternatives[i] = a.clone()
	}
	return out
}

func (v *Variant) clone() *Variant {
	if v == nil {
		return nil
	}
	out := *v
	out.OtherAttributes = append([]Attribute(nil), v.OtherAttributes...)
	return &out
}

func (a *Alternative) clone() *Alternative {
	if a == nil {
		return nil
	}
	out := *a
	out.OtherAttributes = append([]Attribute(nil), a.OtherAttributes...)
	return &out
}

// Clone returns a deep copy of the media playlist.
func (p *MediaPlaylist) Clone() *MediaPlaylist {
	if p == nil {
		return nil
	}
	out := &MediaPlaylist{
		TargetDuration:   p.TargetDuration,
		MediaSequence:    p.MediaSequence,
		DiscontinuitySeq: p.DiscontinuitySeq,
		Version:          p.Version,
		EndList:          p.EndList,
		Iframe:           p.Iframe,
		Independent:      p.Independent,
		Tags:             cloneTags(p.Tags),
	}
	out.Segments = make([]*MediaSegment, len(p.Segments))
	for i, s := range p.Segments {
		out.Segments[i] = s.clone()
	}
	return out
}

func (s *MediaSegment) clone() *MediaSegment {
	if s == nil {
		return nil
	}
	out := *s
	out.Range = s.Range.clone()
	out.Key = s.Key.clone()
	out.Map = s.Map.clone()
	out.Tags = cloneTags(s.Tags)
	return &out
}

func (r *ByteRangeRaw) clone() *ByteRangeRaw {
	if r == nil {
		return nil
	}
	out := *r
	if r.Offset != nil {
		offset := *r.Offset
		out.Offset = &offset
	}
	return &out
}

func (k *Key) clone() *Key {
	if k == nil {
		return nil
	}
	out := *k
	return &out
}

func (m *Map) clone() *Map {
	if m == nil {
		return nil
	}
	out := *m
	out.Range = m.Range.clone()
	out.OtherAttributes = append([]Attribute(nil), m.OtherAttributes...)
	return &out
}

func cloneTags(tags []Tag) []Tag {
	if tags == nil {
		return nil
	}
	return append([]Tag(nil), tags...)
}
