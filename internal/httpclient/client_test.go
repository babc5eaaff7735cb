package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoDecompressesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("hello brotli"))
		_ = bw.Close()
	}))
	defer srv.Close()

	c := New(nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello brotli", string(body))
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestGetSetsRangeHeader(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
	}))
	defer srv.Close()

	c := New(nil)
	resp, err := c.Get(t.Context(), srv.URL, "bytes=500-1499")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "bytes=500-1499", gotRange)
}
