package replay

import (
	"time"

	"github.com/jmylchreest/hlsarchiver/internal/manifest"
)

// resolveSnapshot implements §4.4.1 playlist_path_at_time: maps a
// client's session start (client_start) and the current wall clock
// onto the manifest entry for name whose timestamp is the latest one
// strictly before the corresponding point in the recording's own
// timeline, or the earliest entry for name when none is before it.
func (s *Server) resolveSnapshot(name string, clientStart time.Time) (manifest.Entry, bool) {
	offset := time.Now().UTC().Sub(clientStart)
	target := s.recordingStart.Add(offset)
	return s.manifest.AtOrBefore(name, target)
}
