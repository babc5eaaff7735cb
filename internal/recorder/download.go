package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmylchreest/hlsarchiver/internal/cancel"
	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/jmylchreest/hlsarchiver/internal/rewriter"
)

// downloadAll flattens p's segments/keys/maps into download tasks and
// runs them through the bounded pipeline (§4.3.4), grounded on the
// teacher's logocaching worker-pool shape: a job channel, a fixed
// number of workers, and a WaitGroup-closed result channel.
func (r *Recorder) downloadAll(ctx context.Context, tok *cancel.Token, p *hlsplaylist.MediaPlaylist, dir string) error {
	tasks := rewriter.DownloadTasks(p)
	if len(tasks) == 0 {
		return nil
	}

	width := r.concurrencyWidth
	if width > len(tasks) {
		width = len(tasks)
	}

	childCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	jobs := make(chan rewriter.Task, len(tasks))
	errCh := make(chan error, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-childCtx.Done():
					return
				default:
				}
				if err := r.downloadFile(childCtx, tok, job, dir); err != nil {
					select {
					case errCh <- err:
					default:
					}
					cancelAll()
					return
				}
			}
		}()
	}

	for _, t := range tasks {
		jobs <- t
	}
	close(jobs)

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// downloadFile implements §4.3.5: create-new idempotent semantics, an
// inclusive-end Range header when a byte range is given, and
// cancellation checks before sending and while streaming the body.
func (r *Recorder) downloadFile(ctx context.Context, tok *cancel.Token, task rewriter.Task, dir string) error {
	if err := tok.Check(); err != nil {
		return err
	}

	path := filepath.Join(dir, task.Name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return hlserr.Wrap(hlserr.KindIO, "creating "+task.Name, err)
	}
	defer f.Close()

	var rangeHeader string
	if task.Range != nil {
		rangeHeader = fmt.Sprintf("bytes=%d-%d", task.Range.Offset, task.Range.End())
	}

	resp, err := r.client.Get(ctx, task.URL, rangeHeader)
	if err != nil {
		os.Remove(path)
		return hlserr.Wrap(hlserr.KindIO, "fetching "+task.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		os.Remove(path)
		return hlserr.New(hlserr.KindIO, fmt.Sprintf("fetching %s: status %d", task.URL, resp.StatusCode))
	}

	if _, err := io.Copy(f, &cancelReader{ctx: ctx, r: resp.Body}); err != nil {
		os.Remove(path)
		return hlserr.Wrap(hlserr.KindIO, "streaming "+task.Name, err)
	}
	return nil
}

// cancelReader aborts a Read once ctx is done, so a large in-flight
// body download observes cancellation instead of running to completion.
type cancelReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *cancelReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
