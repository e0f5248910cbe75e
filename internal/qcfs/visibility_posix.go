//go:build !windows

package qcfs

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// MarkHidden ensures that a path is hidden. On POSIX platforms there is no
// hidden-file attribute; visibility is purely a function of a dot-prefixed
// basename, so this just verifies the naming contract that the sidecar
// store and hash cache are expected to uphold for "dot" and "subdir" layout
// modes.
func MarkHidden(path string) error {
	if strings.IndexByte(filepath.Base(path), '.') != 0 {
		return errors.New("only dot-prefixed paths are hidden on POSIX")
	}
	return nil
}
