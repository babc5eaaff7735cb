// Package urlutil provides small URL/path helpers used by the rewriter
// and recorder: extension extraction from a URL path, lowercase hex
// rendering of hash digests used for deterministic resource naming, and
// resolving an inbound playlist URI against its containing playlist's
// URL.
package urlutil

import (
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// Extension returns the file extension (without the leading dot) of a
// URL's path component, or "" if the path has none. Query strings and
// fragments are ignored.
func Extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return extensionOfPath(rawURL)
	}
	return extensionOfPath(u.Path)
}

func extensionOfPath(p string) string {
	ext := path.Ext(p)
	return strings.TrimPrefix(ext, ".")
}

// Hex renders b as lowercase hexadecimal. Used to name SHA-1-derived
// files (init-<hex>.<ext>, key-<hex>.bin); the hash is for stable
// deterministic naming, not security, so any digest of comparable
// length would serve equally well.
func Hex(b []byte) string {
	return hex.EncodeToString(b)
}

// Resolve resolves ref against base, absolutizing every inbound segment/
// key/map URI before the rewriter assigns it a stable local filename.
func Resolve(base *url.URL, ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(r), nil
}
