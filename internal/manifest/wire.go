package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireManifest is the {"playlists": {...}} envelope. Marshaling writes
// names in the order they appear in Manifest.playlists (Go's
// json.Marshal already preserves map key order for nothing — maps have
// none — so the outer object is built manually via orderedObject
// instead of a plain map). Unmarshaling replays the token stream to
// recover the same name order, since encoding/json's Unmarshal into a
// map loses it.
type wireManifest struct {
	Playlists map[string][]Entry
	order     []string
}

func (m *Manifest) toWire() json.Marshaler {
	names := make([]string, len(m.playlists))
	entries := make([][]Entry, len(m.playlists))
	for i, p := range m.playlists {
		names[i] = p.Name
		entries[i] = p.Entries
	}
	return orderedManifest{names: names, entries: entries}
}

// orderedManifest marshals to {"playlists": {"<name>": [...], ...}}
// with names emitted in the given order.
type orderedManifest struct {
	names   []string
	entries [][]Entry
}

func (o orderedManifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"playlists":{`)
	for i, name := range o.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		nameJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(nameJSON)
		buf.WriteByte(':')
		entriesJSON, err := json.Marshal(o.entries[i])
		if err != nil {
			return nil, err
		}
		buf.Write(entriesJSON)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes {"playlists": {...}}, recovering the original
// key insertion order from the token stream.
func (w *wireManifest) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("manifest: expected object, got %v", tok)
	}

	w.Playlists = make(map[string][]Entry)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		if key != "playlists" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
			continue
		}
		if err := decodePlaylistsObject(dec, w); err != nil {
			return err
		}
	}
	return nil
}

func decodePlaylistsObject(dec *json.Decoder, w *wireManifest) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("manifest: expected playlists object, got %v", tok)
	}
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := nameTok.(string)
		var entries []Entry
		if err := dec.Decode(&entries); err != nil {
			return fmt.Errorf("manifest: decoding entries for %q: %w", name, err)
		}
		w.order = append(w.order, name)
		w.Playlists[name] = entries
	}
	_, err = dec.Token() // closing '}'
	return err
}
