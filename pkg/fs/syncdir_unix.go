//go:build !windows

package fs

import "os"

// syncDir fsyncs dir so a rename is durable across power loss
func syncDir(dir string) error {
	dfd, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer dfd.Close()
	return dfd.Sync()
}
