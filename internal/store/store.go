// Package store owns the on-disk asset layout below a single root directory
// and the digest ledger that records which hash-tracked assets were verified.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/pkg/fs"
	"github.com/opencontainers/go-digest"
)

const (
	LedgerFile = "hashes.json"
	WorkerLog  = "winws.log"
)

// Ledger maps asset names to the hex encoded sha256 of the last verified download.
type Ledger map[string]string

// Clone returns an independent copy, never nil.
func (l Ledger) Clone() Ledger {
	c := make(Ledger, len(l))
	for k, v := range l {
		c[k] = v
	}
	return c
}

// Store resolves asset paths and persists the ledger.
type Store struct {
	root   string
	logger *slog.Logger
}

func New(root string) *Store {
	return &Store{
		root:   root,
		logger: slog.Default(),
	}
}

func (s *Store) Root() string {
	return s.root
}

// Resolve returns the destination of an asset. It does not touch the disk.
func (s *Store) Resolve(category manifest.Category, name string) string {
	return filepath.Join(s.root, category.Subdir(), name)
}

func (s *Store) Path(a manifest.Asset) string {
	return s.Resolve(a.Category, a.Name)
}

func (s *Store) Dir(category manifest.Category) string {
	return filepath.Join(s.root, category.Subdir())
}

func (s *Store) LedgerPath() string {
	return filepath.Join(s.root, LedgerFile)
}

func (s *Store) WorkerPath() string {
	return s.Resolve(manifest.CategoryBinaries, manifest.WorkerExecutable)
}

func (s *Store) WorkerLogPath() string {
	return filepath.Join(s.root, WorkerLog)
}

// EnsureLayout creates the root and all category directories.
func (s *Store) EnsureLayout() error {
	for _, c := range manifest.Categories {
		if err := os.MkdirAll(s.Dir(c), 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrIO, c, err)
		}
	}
	return nil
}

// ComputeDigest streams the file through sha256.
func ComputeDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	return d, nil
}

// LoadLedger never fails. A missing or unparsable ledger yields an empty one.
func (s *Store) LoadLedger(ctx context.Context) Ledger {
	path := s.LedgerPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.DebugContext(ctx, "no ledger yet", "path", path)
		} else {
			s.logger.WarnContext(ctx, "ledger unreadable, starting empty", "path", path, "error", err)
		}
		return Ledger{}
	}

	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		s.logger.WarnContext(ctx, "ledger corrupt, starting empty", "path", path, "error", err)
		return Ledger{}
	}
	if ledger == nil {
		ledger = Ledger{}
	}

	s.logger.DebugContext(ctx, "ledger loaded", "path", path, "entries", len(ledger))
	return ledger
}

// SaveLedger replaces hashes.json atomically.
func (s *Store) SaveLedger(ctx context.Context, ledger Ledger) error {
	if ledger == nil {
		ledger = Ledger{}
	}

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode ledger: %v", ErrIO, err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: create root: %v", ErrIO, err)
	}

	if err := fs.WriteFileAtomic(s.LedgerPath(), data, 0o644); err != nil {
		return fmt.Errorf("%w: write ledger: %v", ErrIO, err)
	}

	s.logger.InfoContext(ctx, "ledger saved", "entries", len(ledger))
	return nil
}

// Entry is one file found below a category directory.
type Entry struct {
	Category manifest.Category
	Name     string
	Size     int64
	Present  bool
}

// Inspect stats every manifest asset.
func (s *Store) Inspect(m manifest.Manifest) []Entry {
	assets := m.Assets()
	entries := make([]Entry, 0, len(assets))
	for _, a := range assets {
		e := Entry{Category: a.Category, Name: a.Name}
		if info, err := os.Stat(s.Path(a)); err == nil {
			e.Present = true
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	return entries
}
