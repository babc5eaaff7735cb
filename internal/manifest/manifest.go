// Package manifest implements the recording manifest: an in-memory
// index of every playlist snapshot captured during a recording, and its
// JSON persistence as recording.json. The outer map (playlist logical
// name → entries) preserves insertion order; the inner list is ordered
// by capture timestamp ascending. encoding/json's map type cannot
// express either ordering guarantee, so both are modeled with slices
// plus a name→index lookup instead of a bare map.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Entry is one captured snapshot of a playlist: the wall-clock time it
// was captured, and its path relative to the recording root.
type Entry struct {
	Time time.Time `json:"-"`
	Path string    `json:"path"`
}

// entryJSON is the wire shape: time as epoch milliseconds.
type entryJSON struct {
	TimeMS int64  `json:"time"`
	Path   string `json:"path"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{TimeMS: e.Time.UnixMilli(), Path: e.Path})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var w entryJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	e.Time = time.UnixMilli(w.TimeMS).UTC()
	e.Path = w.Path
	return nil
}

// playlist is one outer-map slot: a logical name plus its time-ordered
// entries.
type playlist struct {
	Name    string
	Entries []Entry
}

// Manifest is the in-memory recording index, safe for concurrent use.
// Every mutation passes through Append, which also persists the full
// manifest to disk under the guard of the same mutex (§5: "Manifest
// appends are totally ordered by a single mutex guarding the manifest
// plus file handle").
type Manifest struct {
	mu        sync.Mutex
	playlists []*playlist
	index     map[string]int // name -> index into playlists
	file      *os.File
	path      string
}

// New creates an empty manifest that will persist to path (typically
// "<dest>/recording.json"), truncating any prior contents at that path.
func New(path string) (*Manifest, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("manifest: opening %s: %w", path, err)
	}
	m := &Manifest{
		index: make(map[string]int),
		file:  f,
		path:  path,
	}
	if err := m.persistLocked(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return m, nil
}

// Load reads an existing recording.json for replay (read-only) use.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	var wire wireManifest
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}
	m := &Manifest{
		index: make(map[string]int),
		path:  path,
	}
	for _, name := range wire.order {
		m.index[name] = len(m.playlists)
		m.playlists = append(m.playlists, &playlist{Name: name, Entries: wire.Playlists[name]})
	}
	return m, nil
}

// Append records a new snapshot for name at time t, with the given
// relative path, then persists the full manifest to disk. Invariant:
// timestamps must strictly increase per name (the caller observes live
// wall-clock time, so this holds by construction; Append does not
// re-validate it).
func (m *Manifest) Append(name string, t time.Time, relPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.index[name]
	if !ok {
		idx = len(m.playlists)
		m.index[name] = idx
		m.playlists = append(m.playlists, &playlist{Name: name})
	}
	m.playlists[idx].Entries = append(m.playlists[idx].Entries, Entry{Time: t.UTC(), Path: relPath})
	return m.persistLocked()
}

// persistLocked rewrites the manifest file in full: rewind, write
// pretty JSON, truncate to the written length (§4.3.6). Must be called
// with mu held.
func (m *Manifest) persistLocked() error {
	if m.file == nil {
		return nil
	}
	data, err := json.MarshalIndent(m.toWire(), "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encoding: %w", err)
	}
	if _, err := m.file.Seek(0, 0); err != nil {
		return fmt.Errorf("manifest: seeking: %w", err)
	}
	n, err := m.file.Write(data)
	if err != nil {
		return fmt.Errorf("manifest: writing: %w", err)
	}
	if err := m.file.Truncate(int64(n)); err != nil {
		return fmt.Errorf("manifest: truncating: %w", err)
	}
	return nil
}

// Close closes the underlying file handle. Safe to call on a
// replay-loaded (read-only) manifest, which has none.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}

// Names returns the playlist logical names in insertion order.
func (m *Manifest) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.playlists))
	for i, p := range m.playlists {
		out[i] = p.Name
	}
	return out
}

// Entries returns a copy of the time-ordered entries for name.
func (m *Manifest) Entries(name string) ([]Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Entry, len(m.playlists[idx].Entries))
	copy(out, m.playlists[idx].Entries)
	return out, true
}

// EarliestTime returns the minimum timestamp across every entry of
// every playlist name — the replay server's recording_start, computed
// once at boot (§4.4.1).
func (m *Manifest) EarliestTime() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var earliest time.Time
	found := false
	for _, p := range m.playlists {
		for _, e := range p.Entries {
			if !found || e.Time.Before(earliest) {
				earliest = e.Time
				found = true
			}
		}
	}
	return earliest, found
}

// AtOrBefore returns the entry for name with the greatest timestamp
// strictly less than target, falling back to the earliest entry for
// that name if none qualifies (§4.4.1). ok is false only if name is
// absent from the manifest entirely.
func (m *Manifest) AtOrBefore(name string, target time.Time) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.index[name]
	if !ok {
		return Entry{}, false
	}
	entries := m.playlists[idx].Entries
	if len(entries) == 0 {
		return Entry{}, false
	}
	best := entries[0]
	haveBest := false
	for _, e := range entries {
		if e.Time.Before(target) {
			if !haveBest || e.Time.After(best.Time) {
				best = e
				haveBest = true
			}
		}
	}
	if !haveBest {
		return entries[0], true
	}
	return best, true
}
