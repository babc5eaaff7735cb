// Package recorder implements the recorder core (§4.3): fetching a
// master or media playlist, selecting variants/renditions, rewriting
// and persisting playlist snapshots, and downloading referenced
// segments/keys/maps through a bounded pipeline.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/hlsarchiver/internal/cancel"
	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/jmylchreest/hlsarchiver/internal/httpclient"
	"github.com/jmylchreest/hlsarchiver/internal/manifest"
	"github.com/jmylchreest/hlsarchiver/internal/rewriter"
	"github.com/jmylchreest/hlsarchiver/internal/selection"
	"github.com/jmylchreest/hlsarchiver/internal/urlutil"
)

// Options carries the CLI-selectable recording options: variant/
// rendition selection policy and the one-shot start/end clip bounds
// (seconds, relative to playlist start if non-negative, relative to
// playlist end if negative).
type Options struct {
	Variant  selection.VariantPolicy
	Audio    selection.MediaMode
	Video    selection.MediaMode
	Subtitle selection.MediaMode
	Start    *float64
	End      *float64
}

// Recorder holds the shared dependencies for one or more recording
// sessions: an HTTP client, the download pipeline width, and a logger.
type Recorder struct {
	client           *httpclient.Client
	concurrencyWidth int
	logger           *slog.Logger
}

// New builds a Recorder. client defaults to httpclient.New(nil) if nil.
func New(client *httpclient.Client, concurrencyWidth int, logger *slog.Logger) *Recorder {
	if client == nil {
		client = httpclient.New(nil)
	}
	if concurrencyWidth < 1 {
		concurrencyWidth = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{client: client, concurrencyWidth: concurrencyWidth, logger: logger}
}

// Record fetches rawURL, dispatching to master or media-playlist
// recording (§4.3 step 2), writing snapshots and downloads under dest.
func (r *Recorder) Record(ctx context.Context, tok *cancel.Token, rawURL, dest string, opts Options) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return hlserr.Wrap(hlserr.KindIO, "creating destination directory", err)
	}

	mf, err := manifest.New(filepath.Join(dest, "recording.json"))
	if err != nil {
		return hlserr.Wrap(hlserr.KindIO, "initializing manifest", err)
	}
	defer mf.Close()

	base, err := url.Parse(rawURL)
	if err != nil {
		return hlserr.Wrap(hlserr.KindParse, "parsing source URL", err)
	}

	body, err := r.fetchText(ctx, base)
	if err != nil {
		return err
	}

	master, media, err := hlsplaylist.Decode(body)
	if err != nil {
		return hlserr.Wrap(hlserr.KindParse, "decoding source playlist", err)
	}

	if master != nil {
		return r.recordMaster(ctx, tok, master, base, dest, mf, opts)
	}
	return r.recordMediaPlaylist(ctx, tok, mediaTask{url: base, initial: media}, dest, mf, opts)
}

func (r *Recorder) recordMaster(
	ctx context.Context,
	tok *cancel.Token,
	master *hlsplaylist.MasterPlaylist,
	base *url.URL,
	dest string,
	mf *manifest.Manifest,
	opts Options,
) error {
	clone := master.Clone()

	variants := selection.SelectVariants(clone.Variants, opts.Variant)
	if len(variants) == 0 {
		return hlserr.New(hlserr.KindConfig, "no variants selected")
	}

	pruned := selection.PruneAlternatives(clone.Alternatives, variants)
	audio, video, subs, captions, other := selection.Partition(pruned)
	audio = selection.SelectMedia(audio, opts.Audio)
	video = selection.SelectMedia(video, opts.Video)
	subs = selection.SelectMedia(subs, opts.Subtitle)

	combined := make([]*hlsplaylist.Alternative, 0, len(audio)+len(video)+len(subs)+len(captions)+len(other))
	combined = append(combined, audio...)
	combined = append(combined, video...)
	combined = append(combined, subs...)
	combined = append(combined, captions...)
	combined = append(combined, other...)

	clone.Variants = variants
	clone.Alternatives = combined

	childCtx, cancelChildren := context.WithCancel(ctx)
	defer cancelChildren()

	var wg sync.WaitGroup
	errCh := make(chan error, len(variants)+len(combined))

	spawn := func(rawURI string, dir string) error {
		abs, err := urlutil.Resolve(base, rawURI)
		if err != nil {
			return hlserr.Wrap(hlserr.KindParse, "resolving "+rawURI, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.recordMediaPlaylist(childCtx, tok, mediaTask{url: abs, dir: dir}, dest, mf, opts); err != nil {
				select {
				case errCh <- err:
				default:
				}
				cancelChildren()
			}
		}()
		return nil
	}

	for i, v := range variants {
		abs, err := urlutil.Resolve(base, v.URI)
		if err != nil {
			return hlserr.Wrap(hlserr.KindParse, "resolving variant URI", err)
		}
		v.SetOtherAttribute("X-ORIGINAL-URI", abs.String())
		dir := fmt.Sprintf("variant%d/", i)
		v.URI = dir + "index.m3u8"
		if err := spawn(abs.String(), dir); err != nil {
			return err
		}
	}

	for i, a := range combined {
		if a.URI == "" {
			continue
		}
		abs, err := urlutil.Resolve(base, a.URI)
		if err != nil {
			return hlserr.Wrap(hlserr.KindParse, "resolving alternative URI", err)
		}
		a.SetOtherAttribute("X-ORIGINAL-URI", abs.String())
		dir := fmt.Sprintf("media-%s-%d/", a.GroupID, i)
		a.URI = dir + "index.m3u8"
		if err := spawn(abs.String(), dir); err != nil {
			return err
		}
	}

	if err := os.WriteFile(filepath.Join(dest, "index.m3u8"), clone.Encode(), 0o644); err != nil {
		return hlserr.Wrap(hlserr.KindIO, "writing master playlist", err)
	}
	if err := mf.Append("index.m3u8", time.Now().UTC(), "index.m3u8"); err != nil {
		return hlserr.Wrap(hlserr.KindIO, "persisting manifest", err)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
