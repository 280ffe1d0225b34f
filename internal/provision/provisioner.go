// Package provision downloads the assets the worker needs and keeps the
// digest ledger in step with what is on disk.
package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/internal/metrics"
	"github.com/maxdollinger/zapret.io/internal/store"
	"github.com/maxdollinger/zapret.io/pkg/fs"
	"github.com/maxdollinger/zapret.io/pkg/lock"
	"github.com/maxdollinger/zapret.io/pkg/utils"
	"github.com/opencontainers/go-digest"
	"github.com/rbmk-project/common/errclass"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout   = 120 * time.Second
	DefaultUserAgent = "Mozilla/5.0"
)

// Teardowner releases the packet filter driver so its files can be replaced.
type Teardowner interface {
	Teardown(ctx context.Context) error
}

type Config struct {
	// Timeout bounds each request including its body, not the batch.
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
	Teardown  Teardowner
	Metrics   *metrics.Metrics
	// Locker keeps other processes from provisioning the same root concurrently.
	Locker lock.Locker
}

type Provisioner struct {
	store     *store.Store
	client    *http.Client
	timeout   time.Duration
	userAgent string
	teardown  Teardowner
	metrics   *metrics.Metrics
	locker    lock.Locker
	group     singleflight.Group
	logger    *slog.Logger
}

func New(s *store.Store, cfg Config) *Provisioner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewNoOpLocker()
	}

	return &Provisioner{
		store:     s,
		client:    cfg.Client,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		teardown:  cfg.Teardown,
		metrics:   cfg.Metrics,
		locker:    cfg.Locker,
		logger:    slog.Default(),
	}
}

// Execute fetches every batch item in order and saves the resulting ledger.
// The first failure aborts the batch and leaves hashes.json untouched, files
// written before the failure stay on disk. Cancelling ctx does not stop a
// running batch, only the per request timeout ends a stuck download.
func (p *Provisioner) Execute(ctx context.Context, batch Batch, ledger store.Ledger, sink chan<- Event) (store.Ledger, error) {
	ctx = context.WithoutCancel(ctx)

	total := batch.Len()
	emit(sink, BatchStart{BatchID: batch.ID, Total: total})

	if batch.Empty() {
		emit(sink, BatchComplete{})
		return ledger, nil
	}

	started := time.Now()
	p.logger.InfoContext(ctx, "provisioning started", "batch", utils.ShortID(batch.ID), "items", total)

	fail := func(err error) (store.Ledger, error) {
		emit(sink, BatchError{Message: err.Error()})
		p.metrics.Batch(metrics.ResultError)
		return ledger, err
	}

	held, err := p.locker.AcquireLock(ctx, "provision")
	if err != nil {
		return fail(fmt.Errorf("wait for provisioning lock: %w", err))
	}
	defer func() {
		if err := held.Release(); err != nil {
			p.logger.WarnContext(ctx, "release provisioning lock", "error", err)
		}
	}()

	if batch.hasBinaries() && p.teardown != nil {
		if err := p.teardown.Teardown(ctx); err != nil {
			p.logger.WarnContext(ctx, "driver teardown before download failed", "error", err)
		}
	}

	if err := p.store.EnsureLayout(); err != nil {
		return fail(err)
	}

	working := ledger.Clone()
	var written int64
	for i, a := range batch.Items {
		emit(sink, ItemProgress{Current: i + 1, Total: total, Name: a.Name, Phase: a.Category})

		n, d, err := p.fetch(ctx, a)
		if err != nil {
			p.metrics.Download(string(a.Category), metrics.ResultError, n)
			return fail(err)
		}
		p.metrics.Download(string(a.Category), metrics.ResultOK, n)
		written += n

		if a.TrackHash {
			working[a.Name] = d.Encoded()
		}
	}

	if err := p.store.SaveLedger(ctx, working); err != nil {
		return fail(err)
	}

	p.metrics.Batch(metrics.ResultOK)
	emit(sink, BatchComplete{})

	p.logger.InfoContext(ctx, "provisioning complete",
		"batch", utils.ShortID(batch.ID),
		"items", total,
		"size", humanize.Bytes(uint64(written)),
		"duration", time.Since(started))

	return working, nil
}

// fetch downloads one asset to its destination and returns the bytes written
// and the digest of the received content.
func (p *Provisioner) fetch(ctx context.Context, a manifest.Asset) (int64, digest.Digest, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.SourceURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s: %v", ErrNetwork, a.Name, err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WarnContext(ctx, "download failed",
			"asset", a.Name,
			"url", a.SourceURL,
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)))
		return 0, "", fmt.Errorf("%w: %s: %v", ErrNetwork, a.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.WarnContext(ctx, "download rejected", "asset", a.Name, "url", a.SourceURL, "status", resp.StatusCode)
		return 0, "", fmt.Errorf("%w: %s: http status %d", ErrNetwork, a.Name, resp.StatusCode)
	}

	perm := os.FileMode(0o644)
	if a.Category == manifest.CategoryBinaries {
		perm = 0o755
	}

	digester := digest.SHA256.Digester()
	body := &bodyReader{r: io.TeeReader(resp.Body, digester.Hash())}
	n, err := fs.WriteReaderAtomic(p.store.Path(a), body, perm)
	if err != nil {
		if body.err != nil {
			p.logger.WarnContext(ctx, "download interrupted",
				"asset", a.Name,
				slog.Any("err", body.err),
				slog.String("errClass", errclass.New(body.err)))
			return n, "", fmt.Errorf("%w: %s: %v", ErrNetwork, a.Name, body.err)
		}
		return n, "", fmt.Errorf("%w: write %s: %v", store.ErrIO, a.Name, err)
	}

	p.logger.DebugContext(ctx, "asset downloaded", "asset", a.Name, "phase", a.Category, "size", humanize.Bytes(uint64(n)))
	return n, digester.Digest(), nil
}

// bodyReader remembers read failures so they can be told apart from write failures.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		b.err = err
	}
	return n, err
}
