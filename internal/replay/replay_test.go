package replay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jmylchreest/hlsarchiver/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterFixture = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=500000
variant0/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2000000
variant1/index.m3u8
`

const mediaFixture = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:6.0,
segment-0.ts
#EXT-X-ENDLIST
`

func newFixtureRecording(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "variant0"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "variant1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.m3u8"), []byte(masterFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "variant0", "index.m3u8"), []byte(mediaFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "variant1", "index.m3u8"), []byte(mediaFixture), 0o644))

	mf, err := manifest.New(filepath.Join(root, "recording.json"))
	require.NoError(t, err)

	base := time.UnixMilli(1_000_000).UTC()
	require.NoError(t, mf.Append("index.m3u8", base, "index.m3u8"))
	require.NoError(t, mf.Append("variant0/index.m3u8", base, "variant0/index.m3u8"))
	require.NoError(t, mf.Append("variant1/index.m3u8", base, "variant1/index.m3u8"))
	require.NoError(t, mf.Close())

	return root
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := newFixtureRecording(t)
	s, err := NewServer(root, DefaultServerConfig(), nil)
	require.NoError(t, err)
	return s
}

// TestE5ReplayRedirect covers scenario E5: a query-less playlist
// request redirects to itself with a start parameter bound to "now",
// and the subsequent master fetch propagates that start to every
// variant URI.
func TestE5ReplayRedirect(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(srv.URL + "/variant0/index.m3u8")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	loc, err := resp.Location()
	require.NoError(t, err)
	startParam := loc.Query().Get("start")
	require.NotEmpty(t, startParam)

	masterResp, err := http.Get(srv.URL + "/index.m3u8?start=" + startParam)
	require.NoError(t, err)
	defer masterResp.Body.Close()
	require.Equal(t, http.StatusOK, masterResp.StatusCode)
	assert.Equal(t, playlistContentType, masterResp.Header.Get("Content-Type"))
	assert.Equal(t, "*", masterResp.Header.Get("Access-Control-Allow-Origin"))

	body, err := io.ReadAll(masterResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "variant0/index.m3u8?start="+startParam)
	assert.Contains(t, string(body), "variant1/index.m3u8?start="+startParam)
}

func TestHandlePlaylistStripsMediaBookkeeping(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	startMS := time.Now().UTC().UnixMilli()
	resp, err := http.Get(srv.URL + "/variant0/index.m3u8?start=" + strconv.FormatInt(startMS, 10))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "segment-0.ts")
	assert.NotContains(t, string(body), "X-ORIGINAL")
}

func TestHandleStaticServesSegmentFile(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "variant0", "segment-0.ts"), []byte("segment-bytes"), 0o644))

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/variant0/segment-0.ts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "segment-bytes", string(body))
}

func TestHandlePlaylistManifestMissReturns500(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing.m3u8?start=1000")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleStaticUnknownPathReturns404(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/does/not/exist.ts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestResolveSnapshotInvariant covers invariant 7: resolution picks the
// entry with the greatest timestamp strictly less than the target,
// falling back to the earliest entry for that name.
func TestResolveSnapshotInvariant(t *testing.T) {
	root := t.TempDir()
	mf, err := manifest.New(filepath.Join(root, "recording.json"))
	require.NoError(t, err)

	base := time.UnixMilli(10_000).UTC()
	require.NoError(t, mf.Append("foo.m3u8", base, "snap0"))
	require.NoError(t, mf.Append("foo.m3u8", base.Add(4*time.Second), "snap1"))
	require.NoError(t, mf.Append("foo.m3u8", base.Add(8*time.Second), "snap2"))
	require.NoError(t, mf.Close())

	s := &Server{manifest: mustLoad(t, root), recordingStart: base}

	// clientStart chosen so that now-clientStart offset lands the target
	// just after snap1 (base+4s) but before snap2 (base+8s).
	clientStart := time.Now().UTC().Add(-5 * time.Second)
	entry, ok := s.resolveSnapshot("foo.m3u8", clientStart)
	require.True(t, ok)
	assert.Equal(t, "snap1", entry.Path)

	// A target before the earliest entry falls back to the earliest.
	farFuture := time.Now().UTC().Add(time.Hour)
	entry, ok = s.resolveSnapshot("foo.m3u8", farFuture)
	require.True(t, ok)
	assert.Equal(t, "snap0", entry.Path)

	_, ok = s.resolveSnapshot("absent.m3u8", clientStart)
	assert.False(t, ok)
}

func mustLoad(t *testing.T, root string) *manifest.Manifest {
	t.Helper()
	mf, err := manifest.Load(filepath.Join(root, "recording.json"))
	require.NoError(t, err)
	return mf
}
