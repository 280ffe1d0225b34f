package provision

import (
	"context"

	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/internal/store"
)

// Result of a background provisioning run.
type Result struct {
	Ledger store.Ledger
	Err    error
}

// Ensure loads the ledger, plans and executes in one call. Concurrent calls
// share a single batch; only the caller that started it receives events.
func (p *Provisioner) Ensure(ctx context.Context, m manifest.Manifest, sink chan<- Event) (store.Ledger, error) {
	v, err, shared := p.group.Do("ensure", func() (any, error) {
		ledger := p.store.LoadLedger(ctx)
		batch := p.Plan(ctx, m, ledger)
		return p.Execute(ctx, batch, ledger, sink)
	})
	if shared {
		p.logger.DebugContext(ctx, "joined running provisioning batch")
	}

	ledger, _ := v.(store.Ledger)
	return ledger, err
}

// Run executes Ensure on a background goroutine. The returned channel
// receives exactly one Result and is then closed.
func (p *Provisioner) Run(ctx context.Context, m manifest.Manifest, sink chan<- Event) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		ledger, err := p.Ensure(ctx, m, sink)
		out <- Result{Ledger: ledger, Err: err}
	}()
	return out
}
