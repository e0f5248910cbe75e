// Package sequence implements the sequence detector (spec C3): splitting a
// directory's entries into singleton media files and frame-numbered
// sequences, and summarizing each sequence's first/last frame, padding,
// contiguous ranges, and holes.
package sequence

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/logging"
)

// DefaultExtensions is the built-in accepted frame extension set (spec.md
// §4.3), lowercased and dot-stripped.
func DefaultExtensions() map[string]struct{} {
	return map[string]struct{}{
		"exr":  {},
		"dpx":  {},
		"jpg":  {},
		"jpeg": {},
		"png":  {},
		"tif":  {},
		"tiff": {},
	}
}

// separators is the set of characters that may precede a sequence's
// trailing numeric field (spec.md §4.3).
const separators = "._-"

// Entry is the minimal directory-listing information the detector needs:
// a file's name within its directory plus the stat fields used for both
// Single records and sequence cheap fingerprints. Callers (the crawl
// engine) translate os.DirEntry/os.FileInfo into this shape, which keeps
// the detector itself free of any filesystem dependency and easy to unit
// test.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// groupKey identifies a candidate sequence group within one directory
// (spec.md §4.3: "(directory, base, separator, ext, detected_pad)" — the
// directory is implicit since Detect operates on one directory at a
// time).
type groupKey struct {
	base string
	sep  byte
	ext  string
	pad  int
}

// Detect splits directory's entries into singletons and sequences per
// spec.md §4.3. minSeq is the minimum number of same-keyed frames
// required for a candidate group to become a Sequence; groups smaller
// than that are returned as Singles instead.
func Detect(directory string, entries []Entry, extensions map[string]struct{}, minSeq int, logger *logging.Logger) (singles []Single, sequences []Sequence) {
	groups := make(map[groupKey][]Frame)
	var groupOrder []groupKey

	for _, e := range entries {
		if e.IsDir {
			continue
		}

		base, sep, ext, digits, frameNumber, ok := parseCandidate(e.Name, extensions)
		if !ok {
			singles = append(singles, Single{Path: filepath.Join(directory, e.Name), Size: e.Size, ModTime: e.ModTime})
			continue
		}
		if frameNumber < 0 {
			logger.WarnOnce("sequence.invalid-frame-number", errors.Errorf("invalid frame number in %q", e.Name))
			singles = append(singles, Single{Path: filepath.Join(directory, e.Name), Size: e.Size, ModTime: e.ModTime})
			continue
		}

		key := groupKey{base: base, sep: sep, ext: ext, pad: len(digits)}
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], Frame{
			Filename:    e.Name,
			FrameNumber: frameNumber,
			Size:        e.Size,
			ModTime:     e.ModTime,
		})
	}

	for _, key := range groupOrder {
		frames := groups[key]
		if len(frames) < minSeq {
			for _, f := range frames {
				singles = append(singles, Single{
					Path:    filepath.Join(directory, f.Filename),
					Size:    f.Size,
					ModTime: f.ModTime,
				})
			}
			continue
		}

		sortFrames(frames)
		sequences = append(sequences, Sequence{
			Directory: directory,
			Base:      key.base,
			Separator: key.sep,
			Ext:       key.ext,
			Pad:       key.pad,
			Frames:    frames,
		})
	}

	return singles, sequences
}

// parseCandidate determines whether name matches the sequence-candidate
// pattern "<base><sep><digits><ext_dot>" described in spec.md §4.3. It
// returns the parsed base, separator, lowercased extension, digit string,
// and frame number, plus ok=false if name isn't a candidate at all. If
// name has trailing digits that don't parse as a nonnegative integer
// (e.g. an overflowing digit run), ok=true is returned with a negative
// frameNumber so the caller can log and exclude it per spec.md §4.3
// ("Invalid frames").
func parseCandidate(name string, extensions map[string]struct{}) (base string, sep byte, ext string, digits string, frameNumber int64, ok bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return "", 0, "", "", 0, false
	}
	ext = strings.ToLower(name[dot+1:])
	if _, accepted := extensions[ext]; !accepted {
		return "", 0, "", "", 0, false
	}

	stem := name[:dot]
	j := len(stem)
	for j > 0 && isDigit(stem[j-1]) {
		j--
	}
	digits = stem[j:]
	if digits == "" || j == 0 {
		return "", 0, "", "", 0, false
	}

	sepByte := stem[j-1]
	if strings.IndexByte(separators, sepByte) == -1 {
		return "", 0, "", "", 0, false
	}

	base = stem[:j-1]
	if base == "" {
		return "", 0, "", "", 0, false
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || value < 0 {
		return base, sepByte, ext, digits, -1, true
	}

	return base, sepByte, ext, digits, value, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// sortFrames orders frames by ascending frame number, ties broken
// lexicographically on filename (spec.md §4.3).
func sortFrames(frames []Frame) {
	// Insertion sort is fine here: directories rarely hold more than a
	// few thousand frames, and a stable, allocation-free sort keeps this
	// easy to reason about without pulling in sort.Slice's interface
	// overhead for what is usually a small, already-mostly-ordered list.
	for i := 1; i < len(frames); i++ {
		j := i
		for j > 0 && frameLess(frames[j], frames[j-1]) {
			frames[j], frames[j-1] = frames[j-1], frames[j]
			j--
		}
	}
}

func frameLess(a, b Frame) bool {
	if a.FrameNumber != b.FrameNumber {
		return a.FrameNumber < b.FrameNumber
	}
	return a.Filename < b.Filename
}
