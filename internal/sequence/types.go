package sequence

import (
	"time"

	"github.com/annaglyph/qc-asset-tracker/internal/hashing"
)

// Frame is one numbered file belonging to a sequence candidate.
type Frame struct {
	// Filename is the file's base name within Directory.
	Filename string
	// FrameNumber is the parsed integer value of the frame's numeric
	// field.
	FrameNumber int64
	Size        int64
	ModTime     time.Time
}

// Single is an asset consisting of exactly one file (spec.md §3).
type Single struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Sequence is a group of frame-numbered files sharing a base, separator,
// extension, and zero-padding width, as defined in spec.md §3 and §4.3.
// It holds structural information only; content hashes are computed later
// by the crawl engine and attached to a sidecar.SequenceSummary.
type Sequence struct {
	Directory string
	Base      string
	Separator byte
	Ext       string
	Pad       int
	// Frames is sorted by ascending FrameNumber, ties broken by
	// Filename, per spec.md §4.3 ("Summarization").
	Frames []Frame
}

// First returns the filename of the numerically lowest frame.
func (s *Sequence) First() string {
	if len(s.Frames) == 0 {
		return ""
	}
	return s.Frames[0].Filename
}

// Last returns the filename of the numerically highest frame.
func (s *Sequence) Last() string {
	if len(s.Frames) == 0 {
		return ""
	}
	return s.Frames[len(s.Frames)-1].Filename
}

// FrameMin returns the integer value of the lowest frame present.
func (s *Sequence) FrameMin() int64 {
	if len(s.Frames) == 0 {
		return 0
	}
	return s.Frames[0].FrameNumber
}

// FrameMax returns the integer value of the highest frame present.
func (s *Sequence) FrameMax() int64 {
	if len(s.Frames) == 0 {
		return 0
	}
	return s.Frames[len(s.Frames)-1].FrameNumber
}

// FrameCount returns the number of frame files actually present.
func (s *Sequence) FrameCount() int {
	return len(s.Frames)
}

// RangeCount returns the number of maximal contiguous integer runs among
// the present frame numbers (spec.md §3, §4.3).
func (s *Sequence) RangeCount() int {
	if len(s.Frames) == 0 {
		return 0
	}
	count := 1
	for i := 1; i < len(s.Frames); i++ {
		if s.Frames[i].FrameNumber != s.Frames[i-1].FrameNumber+1 {
			count++
		}
	}
	return count
}

// Holes returns the number of missing integers between FrameMin and
// FrameMax, never negative (spec.md §3: "(frame_max - frame_min + 1) -
// frame_count").
func (s *Sequence) Holes() int64 {
	if len(s.Frames) == 0 {
		return 0
	}
	holes := (s.FrameMax() - s.FrameMin() + 1) - int64(s.FrameCount())
	if holes < 0 {
		return 0
	}
	return holes
}

// CheapFingerprint aggregates the (size, mtime) pairs of the frames
// currently present, for use in the cheap-fingerprint reuse optimization
// (spec.md §4.5).
func (s *Sequence) CheapFingerprint() hashing.CheapFingerprint {
	stats := make([]hashing.FileStat, len(s.Frames))
	for i, f := range s.Frames {
		stats[i] = hashing.FileStat{Size: f.Size, ModTime: f.ModTime}
	}
	return hashing.ComputeCheapFingerprint(stats)
}
