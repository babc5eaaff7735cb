package recorder

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/hlsarchiver/internal/cancel"
	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/jmylchreest/hlsarchiver/internal/manifest"
	"github.com/jmylchreest/hlsarchiver/internal/rewriter"
)

// mediaTask describes one media-playlist recording task: the absolute
// URL to (re)fetch, the directory it records into relative to dest
// (empty for a top-level single-variant recording), and an optional
// already-parsed playlist to use on the first iteration instead of
// refetching (§4.3 step 2).
type mediaTask struct {
	url     *url.URL
	dir     string
	initial *hlsplaylist.MediaPlaylist
}

// recordMediaPlaylist implements §4.3.2: the per-task refresh loop
// applying the clip options once, rewriting and persisting each
// snapshot, dispatching its downloads, and sleeping until the next
// refresh unless the playlist is terminal.
func (r *Recorder) recordMediaPlaylist(
	ctx context.Context,
	tok *cancel.Token,
	task mediaTask,
	dest string,
	mf *manifest.Manifest,
	opts Options,
) error {
	dirAbs := filepath.Join(dest, task.dir)
	if err := os.MkdirAll(dirAbs, 0o755); err != nil {
		return hlserr.Wrap(hlserr.KindIO, "creating directory", err)
	}

	st := rewriter.NewState()
	var lo uint64
	var hi *uint64
	optionsConsumed := false
	usedInitial := false
	first := true

	for {
		if err := tok.Check(); err != nil {
			return err
		}

		var p *hlsplaylist.MediaPlaylist
		if task.initial != nil && !usedInitial {
			p = task.initial
			usedInitial = true
		} else {
			body, err := r.fetchText(ctx, task.url)
			if err != nil {
				return err
			}
			_, parsed, err := hlsplaylist.Decode(body)
			if err != nil {
				return hlserr.Wrap(hlserr.KindParse, "decoding media playlist", err)
			}
			if parsed == nil {
				return hlserr.New(hlserr.KindParse, "expected a media playlist, got a master playlist")
			}
			p = parsed
		}

		now := time.Now()
		playlistTime := now.UTC()

		var filename string
		if first && p.EndList {
			filename = "index.m3u8"
		} else {
			filename = fmt.Sprintf("index-%s.m3u8", playlistTime.Format("20060102T150405"))
		}

		if !optionsConsumed {
			if opts.Start != nil {
				if idx, ok := FindSegmentIndexByOffset(p.Segments, *opts.Start); ok {
					if candidate := p.MediaSequence + uint64(idx); candidate > lo {
						lo = candidate
					}
				}
			}
			if opts.End != nil {
				if idx, ok := FindSegmentIndexByOffset(p.Segments, *opts.End); ok {
					candidate := p.MediaSequence + uint64(idx)
					if hi == nil || candidate < *hi {
						hi = &candidate
					}
				}
			}
			optionsConsumed = true
		}

		rewriter.RemoveSegmentsFromStart(p, lo)
		if hi != nil {
			rewriter.RemoveSegmentsFromEnd(p, *hi)
		}

		if err := rewriter.Rewrite(p, task.url, st); err != nil {
			return err
		}

		if err := os.WriteFile(filepath.Join(dirAbs, filename), p.Encode(), 0o644); err != nil {
			return hlserr.Wrap(hlserr.KindIO, "writing playlist snapshot", err)
		}
		if err := mf.Append(task.dir+"index.m3u8", playlistTime, task.dir+filename); err != nil {
			return hlserr.Wrap(hlserr.KindIO, "persisting manifest", err)
		}

		if err := r.downloadAll(ctx, tok, p, dirAbs); err != nil {
			return err
		}

		if p.EndList {
			return nil
		}

		target := now.Add(time.Duration(p.TargetDuration) * time.Second)
		select {
		case <-time.After(time.Until(target)):
		case <-ctx.Done():
			return hlserr.ErrCancelled
		case <-tok.Done():
			return hlserr.ErrCancelled
		}
		first = false
	}
}
