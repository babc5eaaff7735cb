// Package httpclient provides the recorder/replayer's shared HTTP
// client: a thin wrapper transparently decompressing brotli responses,
// adapted from the decompression half of the teacher's
// pkg/httpclient.Client. Unlike the teacher's client, this one carries
// no circuit breaker, retries, or response-size limiting — the design
// this module implements is explicit that timeouts are not imposed
// internally and the HTTP client's defaults apply, and a single
// local-disk recorder has no fleet of upstream hosts to protect with a
// breaker.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

const (
	headerAcceptEncoding  = "Accept-Encoding"
	headerContentEncoding = "Content-Encoding"
	acceptEncodingValue   = "br, gzip"
)

// Client is a shared, cloneable HTTP client handle: stateless from the
// caller's perspective, safe for concurrent use by every media-playlist
// recording task.
type Client struct {
	http *http.Client
}

// New wraps an *http.Client, or http.DefaultClient if nil.
func New(inner *http.Client) *Client {
	if inner == nil {
		inner = http.DefaultClient
	}
	return &Client{http: inner}
}

// Do issues req, adding an Accept-Encoding header if the caller hasn't
// set one, and transparently unwraps a brotli-encoded response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get(headerAcceptEncoding) == "" {
		req.Header.Set(headerAcceptEncoding, acceptEncodingValue)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	if resp.Header.Get(headerContentEncoding) == "br" {
		resp.Body = &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
		resp.Header.Del(headerContentEncoding)
	}
	return resp, nil
}

// Get issues a GET request against url with ctx, optionally adding a
// Range header (the caller is responsible for inclusive-end
// formatting, since that convention is specific to the download path).
func (c *Client) Get(ctx context.Context, url string, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: building request for %s: %w", url, err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return c.Do(req)
}

// decompressReader pairs a decompression reader with the original
// response body's Closer, so the underlying connection is always
// released regardless of whether the decoder itself needs closing.
type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	return d.closer.Close()
}
