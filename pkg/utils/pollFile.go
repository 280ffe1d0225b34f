package utils

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// TailOptions controls TailPoll.
type TailOptions struct {
	// Idle ends the tail once no new data arrived for this long. Zero follows until ctx is done.
	Idle time.Duration
	// PollEvery is the sleep between reads at EOF.
	PollEvery time.Duration
	// FromEnd skips the content present when the tail starts.
	FromEnd bool
}

// TailPoll copies lines appended to path into out until the file has been idle
// for opts.Idle or ctx is cancelled. A missing file is not an error, it is
// waited for the same way new data is.
func TailPoll(ctx context.Context, path string, out io.Writer, opts TailOptions) (err error) {
	if opts.PollEvery <= 0 {
		opts.PollEvery = 100 * time.Millisecond
	}

	lastActivity := time.Now()
	f, err := waitOpen(ctx, path, opts, &lastActivity)
	if err != nil || f == nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if opts.FromEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := out.Write(line); werr != nil {
				return werr
			}
			lastActivity = time.Now()
		}

		if err == io.EOF {
			if opts.Idle > 0 && time.Since(lastActivity) > opts.Idle {
				return nil
			}
			if !sleepCtx(ctx, opts.PollEvery) {
				return nil
			}
			continue
		}

		if err != nil {
			return err
		}
	}
}

func waitOpen(ctx context.Context, path string, opts TailOptions, lastActivity *time.Time) (*os.File, error) {
	for {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if opts.Idle > 0 && time.Since(*lastActivity) > opts.Idle {
			return nil, nil
		}
		if !sleepCtx(ctx, opts.PollEvery) {
			return nil, nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
