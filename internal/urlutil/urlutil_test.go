package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "ts", Extension("https://cdn.example.com/v0/segment-12.ts?token=abc"))
	assert.Equal(t, "", Extension("https://cdn.example.com/v0/segment-12"))
	assert.Equal(t, "mp4", Extension("init.mp4"))
}

func TestHex(t *testing.T) {
	assert.Equal(t, "deadbeef", Hex([]byte{0xde, 0xad, 0xbe, 0xef}))
}

func TestResolve(t *testing.T) {
	base, err := url.Parse("https://cdn.example.com/live/index.m3u8")
	require.NoError(t, err)

	r, err := Resolve(base, "segment-0.ts")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/live/segment-0.ts", r.String())

	r2, err := Resolve(base, "https://other.example.com/key")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/key", r2.String())
}
