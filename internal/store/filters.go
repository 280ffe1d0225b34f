package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/pkg/fs"
)

// User editable WinDivert filter fragments live next to the downloaded ones.

func (s *Store) filterPath(name string) (string, error) {
	if err := manifest.ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return s.Resolve(manifest.CategoryFilters, name), nil
}

func (s *Store) SaveFilter(ctx context.Context, name string, content []byte) error {
	path, err := s.filterPath(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir(manifest.CategoryFilters), 0o755); err != nil {
		return fmt.Errorf("%w: create filters dir: %v", ErrIO, err)
	}

	if err := fs.WriteFileAtomic(path, content, 0o644); err != nil {
		return fmt.Errorf("%w: write filter %s: %v", ErrIO, name, err)
	}

	s.logger.InfoContext(ctx, "filter saved", "name", name, "bytes", len(content))
	return nil
}

func (s *Store) LoadFilter(name string) ([]byte, error) {
	path, err := s.filterPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: filter %s", ErrNotExist, name)
		}
		return nil, fmt.Errorf("%w: read filter %s: %v", ErrIO, name, err)
	}
	return data, nil
}

// DeleteFilter removes a fragment. Deleting a missing fragment is not an error.
func (s *Store) DeleteFilter(ctx context.Context, name string) error {
	path, err := s.filterPath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete filter %s: %v", ErrIO, name, err)
	}

	s.logger.InfoContext(ctx, "filter deleted", "name", name)
	return nil
}

// ListFilters returns the fragment file names sorted.
func (s *Store) ListFilters() ([]string, error) {
	entries, err := os.ReadDir(s.Dir(manifest.CategoryFilters))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list filters: %v", ErrIO, err)
	}
	return sortedNames(entries), nil
}

func sortedNames(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}
