package fs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic ensures atomic writes via rename. Beware that atomicity is only garantueed on the same filesystem
func WriteFileAtomic(filePath string, data []byte, perm os.FileMode) error {
	_, err := WriteReaderAtomic(filePath, bytes.NewReader(data), perm)
	return err
}

// WriteReaderAtomic streams r into a temp file next to filePath and renames it into place.
// Readers see either the previous file or the complete new one, never a partial write.
// It returns the number of bytes written.
func WriteReaderAtomic(filePath string, r io.Reader, perm os.FileMode) (n int64, err error) {
	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(perm); err != nil {
		return 0, errors.Join(err, tmp.Close())
	}

	n, err = io.Copy(tmp, r)
	if err != nil {
		return n, errors.Join(err, tmp.Close())
	}

	if err := tmp.Sync(); err != nil {
		return n, errors.Join(err, tmp.Close())
	}

	if err := tmp.Close(); err != nil {
		return n, err
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		return n, err
	}

	return n, syncDir(dir)
}
