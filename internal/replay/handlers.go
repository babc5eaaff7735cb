package replay

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/jmylchreest/hlsarchiver/internal/rewriter"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// handle is the single catch-all route (§4.4 Routing): playlist paths
// are resolved to a historical snapshot and rewritten on serve; every
// other path falls through to the static file route.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	if strings.HasSuffix(path, ".m3u8") {
		s.handlePlaylist(w, r, path)
		return
	}
	s.handleStatic(w, r, path)
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request, name string) {
	startParam := r.URL.Query().Get("start")
	if startParam == "" {
		q := r.URL.Query()
		q.Set("start", strconv.FormatInt(time.Now().UTC().UnixMilli(), 10))
		r.URL.RawQuery = q.Encode()
		http.Redirect(w, r, r.URL.RequestURI(), http.StatusTemporaryRedirect)
		return
	}

	startMS, err := strconv.ParseInt(startParam, 10, 64)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	clientStart := time.UnixMilli(startMS).UTC()

	entry, ok := s.resolveSnapshot(name, clientStart)
	if !ok {
		http.Error(w, "No playlist found", http.StatusInternalServerError)
		return
	}

	data, err := s.sandbox.ReadFile(entry.Path)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to load playlist snapshot", "path", entry.Path, "error", err)
		http.Error(w, "Failed to load playlist", http.StatusInternalServerError)
		return
	}

	master, media, err := hlsplaylist.Decode(data)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to parse playlist snapshot", "path", entry.Path, "error", err)
		http.Error(w, "Failed to load playlist", http.StatusInternalServerError)
		return
	}

	var body []byte
	if master != nil {
		rewriteMasterForSession(master, startMS)
		body = master.Encode()
	} else {
		rewriter.Strip(media)
		body = media.Encode()
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.Write(body)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request, path string) {
	if path == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	info, err := s.sandbox.Stat(path)
	if err != nil || info.IsDir() {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	data, err := s.sandbox.ReadFile(path)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Write(data)
}

// rewriteMasterForSession implements §4.4.2's master-playlist rewrite:
// every variant and alternative-media URI gets "?start=<ms>" appended,
// preserving any path already assigned by the recorder.
func rewriteMasterForSession(p *hlsplaylist.MasterPlaylist, startMS int64) {
	for _, v := range p.Variants {
		v.URI = appendStartParam(v.URI, startMS)
	}
	for _, a := range p.Alternatives {
		if a.URI == "" {
			continue
		}
		a.URI = appendStartParam(a.URI, startMS)
	}
}

func appendStartParam(uri string, startMS int64) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	q.Set("start", strconv.FormatInt(startMS, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
