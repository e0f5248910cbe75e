package hashing

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FrameHash pairs a frame's integer frame number with its deep content
// hash, so that ManifestHash can sort into ascending frame order without
// the caller needing to pre-sort (spec.md §4.1: "Order is by ascending
// integer frame number; ties broken lexicographically on filename.").
type FrameHash struct {
	FrameNumber int64
	Filename    string
	Hash        string
}

// ManifestHash computes the manifest hash over a set of frame hashes: the
// deep hash of the UTF-8 concatenation of the hashes, newline-joined, in
// ascending frame-number order (ties broken on filename). This is what
// makes a Sequence's content_hash independent of filesystem listing order
// (spec.md §8, "Sequence-order determinism").
func ManifestHash(frames []FrameHash) (string, error) {
	if len(frames) == 0 {
		return "", errors.New("cannot compute manifest hash over zero frames")
	}

	ordered := make([]FrameHash, len(frames))
	copy(ordered, frames)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FrameNumber != ordered[j].FrameNumber {
			return ordered[i].FrameNumber < ordered[j].FrameNumber
		}
		return ordered[i].Filename < ordered[j].Filename
	})

	hashes := make([]string, len(ordered))
	for i, f := range ordered {
		hashes[i] = f.Hash
	}

	joined := strings.Join(hashes, "\n")
	return hashBytes([]byte(joined)), nil
}
