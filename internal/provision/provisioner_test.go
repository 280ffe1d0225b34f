package provision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/internal/metrics"
	"github.com/maxdollinger/zapret.io/internal/store"
	"github.com/maxdollinger/zapret.io/pkg/lock"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTeardown struct {
	calls atomic.Int32
	err   error
}

func (f *fakeTeardown) Teardown(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func serve(t *testing.T, files map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func binary(name, url string) manifest.Asset {
	return manifest.Asset{Name: name, SourceURL: url, Category: manifest.CategoryBinaries, TrackHash: true}
}

func drain(sink chan Event) []Event {
	var events []Event
	for {
		select {
		case ev := <-sink:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestScenarioFreshDownload(t *testing.T) {
	ctx := context.Background()
	srv, _ := serve(t, map[string]string{"/a.bin": "payload"})

	s := store.New(t.TempDir())
	p := New(s, Config{})
	m := manifest.Manifest{Binaries: []manifest.Asset{binary("a.bin", srv.URL+"/a.bin")}}

	ledger := s.LoadLedger(ctx)
	batch := p.Plan(ctx, m, ledger)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, "a.bin", batch.Items[0].Name)

	sink := make(chan Event, 16)
	got, err := p.Execute(ctx, batch, ledger, sink)
	require.NoError(t, err)

	data, err := os.ReadFile(s.Resolve(manifest.CategoryBinaries, "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	want := store.Ledger{"a.bin": digest.FromString("payload").Encoded()}
	assert.Equal(t, want, got)
	assert.Equal(t, want, s.LoadLedger(ctx))

	assert.Equal(t, []Event{
		BatchStart{BatchID: batch.ID, Total: 1},
		ItemProgress{Current: 1, Total: 1, Name: "a.bin", Phase: manifest.CategoryBinaries},
		BatchComplete{},
	}, drain(sink))
}

func TestScenarioVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := store.New(t.TempDir())
	require.NoError(t, s.EnsureLayout())
	p := New(s, Config{})

	a := binary("a.bin", "http://unused.invalid/a.bin")
	m := manifest.Manifest{Binaries: []manifest.Asset{a}}
	require.NoError(t, os.WriteFile(s.Path(a), []byte("original"), 0o644))
	ledger := store.Ledger{"a.bin": digest.FromString("original").Encoded()}

	assert.True(t, p.Verify(ctx, m, ledger))
	assert.True(t, p.Verify(ctx, m, ledger), "verify must be idempotent")

	require.NoError(t, os.WriteFile(s.Path(a), []byte("tampered"), 0o644))
	assert.False(t, p.Verify(ctx, m, ledger))

	batch := p.Plan(ctx, m, ledger)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, "a.bin", batch.Items[0].Name)
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	s := store.New(t.TempDir())
	require.NoError(t, s.EnsureLayout())
	p := New(s, Config{})

	present := binary("present.exe", "http://x.invalid/present.exe")
	unknown := binary("unknown.dll", "http://x.invalid/unknown.dll")
	missing := binary("missing.sys", "http://x.invalid/missing.sys")
	list := manifest.Asset{Name: "hosts.txt", SourceURL: "http://x.invalid/hosts.txt", Category: manifest.CategoryLists}
	fake := manifest.Asset{Name: "stun.bin", SourceURL: "http://x.invalid/stun.bin", Category: manifest.CategoryFake}
	filter := manifest.Asset{Name: "f.txt", SourceURL: "http://x.invalid/f.txt", Category: manifest.CategoryFilters}

	for _, a := range []manifest.Asset{present, unknown, list} {
		require.NoError(t, os.WriteFile(s.Path(a), []byte(a.Name), 0o644))
	}
	ledger := store.Ledger{"present.exe": digest.FromString("present.exe").Encoded()}

	m := manifest.Manifest{
		Binaries: []manifest.Asset{present, unknown, missing},
		Fake:     []manifest.Asset{fake},
		Lists:    []manifest.Asset{list},
		Filters:  []manifest.Asset{filter},
	}

	batch := p.Plan(ctx, m, ledger)
	var names []string
	for _, a := range batch.Items {
		names = append(names, a.Name)
	}
	// unknown.dll has no ledger entry and is left alone
	assert.Equal(t, []string{"missing.sys", "stun.bin", "f.txt"}, names)
	assert.NotEmpty(t, batch.ID)
}

func TestExecuteEmptyBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := store.New(root)
	td := &fakeTeardown{}
	p := New(s, Config{Teardown: td})

	ledger := store.Ledger{"a.bin": "abc"}
	sink := make(chan Event, 4)
	got, err := p.Execute(ctx, Batch{}, ledger, sink)
	require.NoError(t, err)
	assert.Equal(t, ledger, got)

	assert.Equal(t, []Event{BatchStart{Total: 0}, BatchComplete{}}, drain(sink))
	assert.Zero(t, td.calls.Load())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "empty batch must not touch the disk")
}

func TestExecuteFailureKeepsLedger(t *testing.T) {
	ctx := context.Background()
	srv, hits := serve(t, map[string]string{"/a.bin": "new-a"})

	s := store.New(t.TempDir())
	previous := store.Ledger{"a.bin": digest.FromString("old-a").Encoded()}
	require.NoError(t, s.SaveLedger(ctx, previous))
	before, err := os.ReadFile(s.LedgerPath())
	require.NoError(t, err)

	m := metrics.New()
	p := New(s, Config{Metrics: m})
	batch := Batch{Items: []manifest.Asset{
		binary("a.bin", srv.URL+"/a.bin"),
		binary("b.bin", srv.URL+"/missing"),
		binary("c.bin", srv.URL+"/a.bin"),
	}}

	sink := make(chan Event, 16)
	got, err := p.Execute(ctx, batch, previous, sink)
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, previous, got)
	assert.EqualValues(t, 2, hits.Load(), "batch aborts at the first failure")

	after, err := os.ReadFile(s.LedgerPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	events := drain(sink)
	require.NotEmpty(t, events)
	last, ok := events[len(events)-1].(BatchError)
	require.True(t, ok, "last event must be BatchError, got %T", events[len(events)-1])
	assert.Contains(t, last.Message, "b.bin")
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := New(store.New(t.TempDir()), Config{})
	_, err := p.Execute(context.Background(), Batch{Items: []manifest.Asset{binary("a.bin", url+"/a.bin")}}, store.Ledger{}, nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestExecuteTearsDownDriverForBinaries(t *testing.T) {
	ctx := context.Background()
	srv, _ := serve(t, map[string]string{"/a.bin": "a", "/l.txt": "l"})

	t.Run("binaries", func(t *testing.T) {
		td := &fakeTeardown{err: errors.New("access denied")}
		p := New(store.New(t.TempDir()), Config{Teardown: td})
		_, err := p.Execute(ctx, Batch{Items: []manifest.Asset{binary("a.bin", srv.URL+"/a.bin")}}, store.Ledger{}, nil)
		require.NoError(t, err, "teardown failure is not fatal")
		assert.EqualValues(t, 1, td.calls.Load())
	})

	t.Run("lists only", func(t *testing.T) {
		td := &fakeTeardown{}
		p := New(store.New(t.TempDir()), Config{Teardown: td})
		list := manifest.Asset{Name: "l.txt", SourceURL: srv.URL + "/l.txt", Category: manifest.CategoryLists}
		_, err := p.Execute(ctx, Batch{Items: []manifest.Asset{list}}, store.Ledger{}, nil)
		require.NoError(t, err)
		assert.Zero(t, td.calls.Load())
	})
}

func TestExecuteIgnoresCallerCancellation(t *testing.T) {
	srv, _ := serve(t, map[string]string{"/a.bin": "a"})
	p := New(store.New(t.TempDir()), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Execute(ctx, Batch{Items: []manifest.Asset{binary("a.bin", srv.URL+"/a.bin")}}, store.Ledger{}, nil)
	assert.NoError(t, err)
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	p := New(store.New(t.TempDir()), Config{Timeout: 50 * time.Millisecond})
	_, err := p.Execute(context.Background(), Batch{Items: []manifest.Asset{binary("a.bin", srv.URL)}}, store.Ledger{}, nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestEmitNeverBlocks(t *testing.T) {
	sink := make(chan Event)
	done := make(chan struct{})
	go func() {
		emit(sink, BatchComplete{})
		emit(nil, BatchComplete{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full sink")
	}
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	srv, hits := serve(t, map[string]string{"/a.bin": "a"})
	s := store.New(t.TempDir())
	p := New(s, Config{})
	m := manifest.Manifest{Binaries: []manifest.Asset{binary("a.bin", srv.URL+"/a.bin")}}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger, err := p.Ensure(ctx, m, nil)
			assert.NoError(t, err)
			assert.Contains(t, ledger, "a.bin")
		}()
	}
	wg.Wait()

	// concurrent callers either joined the batch or found everything fresh
	assert.EqualValues(t, 1, hits.Load())

	res := <-p.Run(ctx, m, nil)
	require.NoError(t, res.Err)
	assert.True(t, p.Verify(ctx, m, res.Ledger))
	assert.EqualValues(t, 1, hits.Load())
}

func TestExecuteTimeoutIsPerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(120 * time.Millisecond)
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	var items []manifest.Asset
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		items = append(items, manifest.Asset{Name: name, SourceURL: srv.URL + "/" + name, Category: manifest.CategoryLists})
	}

	// every request fits, the batch as a whole does not
	p := New(store.New(t.TempDir()), Config{Timeout: 300 * time.Millisecond})
	_, err := p.Execute(context.Background(), Batch{Items: items}, store.Ledger{}, nil)
	require.NoError(t, err)
}

func TestExecuteWaitsForLock(t *testing.T) {
	srv, hits := serve(t, map[string]string{"/a.bin": "a"})
	root := t.TempDir()

	held, err := lock.NewFileLocker(root).AcquireLock(context.Background(), "provision")
	require.NoError(t, err)

	p := New(store.New(root), Config{Timeout: 50 * time.Millisecond, Locker: lock.NewFileLocker(root)})
	batch := Batch{Items: []manifest.Asset{binary("a.bin", srv.URL+"/a.bin")}}

	done := make(chan error, 1)
	go func() {
		_, err := p.Execute(context.Background(), batch, store.Ledger{}, nil)
		done <- err
	}()

	// waiting for the lock does not use up the request timeout
	select {
	case err := <-done:
		t.Fatalf("execute returned while the lock was held: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Zero(t, hits.Load())

	require.NoError(t, held.Release())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("execute did not finish after the lock was released")
	}
	assert.EqualValues(t, 1, hits.Load())
}
