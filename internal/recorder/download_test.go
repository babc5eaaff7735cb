package recorder

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/hlsarchiver/internal/byterange"
	"github.com/jmylchreest/hlsarchiver/internal/cancel"
	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/jmylchreest/hlsarchiver/internal/httpclient"
	"github.com/jmylchreest/hlsarchiver/internal/rewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFileIsIdempotentAcrossRestarts(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte("segment-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment-0.ts"), []byte("already here"), 0o644))

	r := New(httpclient.New(nil), 4, nil)
	task := rewriter.Task{URL: srv.URL, Name: "segment-0.ts"}

	require.NoError(t, r.downloadFile(t.Context(), cancel.New(), task, dir))
	assert.Equal(t, 0, requests)

	data, err := os.ReadFile(filepath.Join(dir, "segment-0.ts"))
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data))
}

func TestDownloadFileSetsInclusiveRangeHeader(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		_, _ = w.Write([]byte("partial"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := New(httpclient.New(nil), 4, nil)
	task := rewriter.Task{URL: srv.URL, Name: "segment-0.ts", Range: &byterange.ByteRange{Length: 1000, Offset: 500}}

	require.NoError(t, r.downloadFile(t.Context(), cancel.New(), task, dir))
	assert.Equal(t, "bytes=500-1499", gotRange)
}

func TestDownloadAllRunsThroughBoundedPipeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := New(httpclient.New(nil), 2, nil)

	base, err := url.Parse(srv.URL + "/index.m3u8")
	require.NoError(t, err)
	p := &hlsplaylist.MediaPlaylist{
		Segments: []*hlsplaylist.MediaSegment{
			{URI: "a.ts"},
			{URI: "b.ts"},
			{URI: "c.ts"},
		},
	}
	require.NoError(t, rewriter.Rewrite(p, base, rewriter.NewState()))

	tok := cancel.New()
	require.NoError(t, r.downloadAll(t.Context(), tok, p, dir))
	for _, seg := range p.Segments {
		_, err := os.Stat(filepath.Join(dir, seg.URI))
		assert.NoError(t, err)
	}
}

func TestDownloadFilePropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := New(httpclient.New(nil), 4, nil)
	task := rewriter.Task{URL: srv.URL, Name: "missing.ts"}

	err := r.downloadFile(t.Context(), cancel.New(), task, dir)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "missing.ts"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadFileChecksCancellationBeforeFetch(t *testing.T) {
	dir := t.TempDir()
	r := New(httpclient.New(nil), 4, nil)
	task := rewriter.Task{URL: "http://unused.invalid/x.ts", Name: "x.ts"}

	tok := cancel.New()
	tok.Trip()

	err := r.downloadFile(t.Context(), tok, task, dir)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "x.ts"))
	assert.True(t, os.IsNotExist(statErr))
}
