//go:build !windows

package qcfs

import "os"

// fsyncDirectoryPlatform fsyncs the named directory so that a rename into
// it is durable. This is meaningful on POSIX filesystems; Windows has no
// equivalent operation (see fsync_windows.go).
func fsyncDirectoryPlatform(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
