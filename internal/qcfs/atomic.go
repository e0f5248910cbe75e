// Package qcfs provides the atomic-write and hidden-file primitives shared
// by the hash cache (internal/hashcache) and the sidecar store
// (internal/sidecar). Every on-disk artifact this crawler produces goes
// through WriteFileAtomic so that a crash between writing and renaming
// never leaves a partially written sidecar or cache file visible.
package qcfs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// temporaryNamePrefix is the prefix used for intermediate files created
// during an atomic write, so that stray leftovers (from a crash before
// rename) are easy to recognize and clean up.
const temporaryNamePrefix = ".qc-tmp-"

// WriteFileAtomic writes data to path using a temporary sibling file that is
// synced and then renamed into place, per the discipline described in
// spec.md §5 ("Resource discipline"): temp sibling → fsync(temp) → rename →
// fsync(dir). The temporary file is removed if any step fails before the
// rename succeeds.
func WriteFileAtomic(path string, data []byte, permissions os.FileMode) error {
	dir := filepath.Dir(path)

	temporary, err := os.CreateTemp(dir, temporaryNamePrefix)
	if err != nil {
		return errors.Wrap(err, "unable to create temporary file")
	}
	temporaryPath := temporary.Name()

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return errors.Wrap(err, "unable to write temporary file")
	}

	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return errors.Wrap(err, "unable to sync temporary file")
	}

	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return errors.Wrap(err, "unable to close temporary file")
	}

	if err := os.Chmod(temporaryPath, permissions); err != nil {
		os.Remove(temporaryPath)
		return errors.Wrap(err, "unable to set temporary file permissions")
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return errors.Wrap(err, "unable to rename temporary file into place")
	}

	if err := fsyncDirectory(dir); err != nil {
		// The rename has already completed; a failure to fsync the
		// directory entry doesn't leave a partial file visible, it
		// just weakens the durability guarantee on a subsequent
		// power loss. Surface it so the caller can log it, but don't
		// unwind the rename.
		return errors.Wrap(err, "unable to sync directory after rename")
	}

	return nil
}

// fsyncDirectory fsyncs a directory's entry table so that a rename into it
// is durable across a crash, per spec.md §5. This is a POSIX-only concern;
// the Windows implementation is a no-op (see fsync_windows.go).
func fsyncDirectory(dir string) error {
	return fsyncDirectoryPlatform(dir)
}
