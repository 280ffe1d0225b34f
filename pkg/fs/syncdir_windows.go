//go:build windows

package fs

// syncDir is a no-op, directory handles cannot be fsynced on windows and
// MoveFileEx already flushes the rename.
func syncDir(string) error {
	return nil
}
