package provision

import (
	"context"
	"os"

	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/internal/store"
	"github.com/maxdollinger/zapret.io/pkg/utils"
)

// Batch is the ordered list of assets one provisioning run fetches.
type Batch struct {
	ID    string
	Items []manifest.Asset
}

func (b Batch) Len() int {
	return len(b.Items)
}

func (b Batch) Empty() bool {
	return len(b.Items) == 0
}

func (b Batch) hasBinaries() bool {
	for _, a := range b.Items {
		if a.Category == manifest.CategoryBinaries {
			return true
		}
	}
	return false
}

// Plan lists the assets that are absent or whose content no longer matches the ledger.
// A hash-tracked asset without a ledger entry is assumed fresh.
func (p *Provisioner) Plan(ctx context.Context, m manifest.Manifest, ledger store.Ledger) Batch {
	id, err := utils.NewUUID7()
	if err != nil {
		p.logger.WarnContext(ctx, "generate batch id", "error", err)
	}

	batch := Batch{ID: id}
	for _, a := range m.Assets() {
		if p.stale(ctx, a, ledger) {
			batch.Items = append(batch.Items, a)
		}
	}

	p.logger.DebugContext(ctx, "provisioning planned", "batch", utils.ShortID(id), "items", batch.Len(), "manifest", m.Len())
	return batch
}

// Verify reports whether nothing needs to be fetched. It never writes.
func (p *Provisioner) Verify(ctx context.Context, m manifest.Manifest, ledger store.Ledger) bool {
	for _, a := range m.Assets() {
		if p.stale(ctx, a, ledger) {
			p.logger.DebugContext(ctx, "asset needs provisioning", "asset", a.Name, "category", a.Category)
			return false
		}
	}
	return true
}

func (p *Provisioner) stale(ctx context.Context, a manifest.Asset, ledger store.Ledger) bool {
	path := p.store.Path(a)
	if _, err := os.Stat(path); err != nil {
		return true
	}
	if !a.TrackHash {
		return false
	}

	want, ok := ledger[a.Name]
	if !ok {
		p.logger.InfoContext(ctx, "asset has no ledger entry, assuming fresh", "asset", a.Name, "path", path)
		return false
	}

	got, err := store.ComputeDigest(path)
	if err != nil {
		p.logger.WarnContext(ctx, "cannot hash asset, refetching", "asset", a.Name, "error", err)
		return true
	}

	if got.Encoded() != want {
		p.logger.InfoContext(ctx, "asset digest mismatch", "asset", a.Name, "want", want, "got", got.Encoded())
		return true
	}
	return false
}
