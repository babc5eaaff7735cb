package recorder

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
)

func (r *Recorder) fetchText(ctx context.Context, u *url.URL) ([]byte, error) {
	resp, err := r.client.Get(ctx, u.String(), "")
	if err != nil {
		return nil, hlserr.Wrap(hlserr.KindIO, "fetching "+u.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, hlserr.New(hlserr.KindIO, fmt.Sprintf("fetching %s: status %d", u, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, hlserr.Wrap(hlserr.KindIO, "reading response body", err)
	}
	return data, nil
}
