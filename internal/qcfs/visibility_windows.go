//go:build windows

package qcfs

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// MarkHidden sets the FILE_ATTRIBUTE_HIDDEN bit on path, which is the only
// way to hide a file on Windows regardless of its name. The sidecar store
// applies it to the sidecar after each atomic rename in "dot" layout mode
// and to the ".qc" directory in "subdir" layout mode, and the hash cache
// applies it after each save, since a rename does not preserve attributes
// that weren't present on the temporary file.
func MarkHidden(path string) error {
	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return errors.Wrap(err, "unable to convert path encoding")
	}

	attributes, err := windows.GetFileAttributes(path16)
	if err != nil {
		return errors.Wrap(err, "unable to get file attributes")
	}

	attributes |= windows.FILE_ATTRIBUTE_HIDDEN

	if err := windows.SetFileAttributes(path16, attributes); err != nil {
		return errors.Wrap(err, "unable to set file attributes")
	}

	return nil
}
