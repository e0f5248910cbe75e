package crawl

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
)

// subdirSidecarName is the fixed directory name "subdir" layout sidecars
// live under; it is not configurable (spec.md §4.4).
const subdirSidecarName = ".qc"

// classifyEntries splits dir's non-directory entries into media
// candidates and files that are shaped like inline- or dot-mode sidecars
// (so sequence detection never mistakes a sidecar JSON file for a
// frame, and reconciliation can find them later). The crawler's own
// per-directory hash cache file is excluded from both: it is tool-internal
// state, not a media candidate, and reconciliation has no sidecar to read
// for it (spec.md §4.2's cache lives alongside media in inline/dot layout,
// never under ".qc").
func (e *Engine) classifyEntries(entries []fs.DirEntry) (media, sidecarLike []fs.DirEntry) {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Name() == e.Config.HashCacheName {
			continue
		}
		if isSidecarFileName(entry.Name(), e.Config.SuffixFile, e.Config.SequenceName) {
			sidecarLike = append(sidecarLike, entry)
			continue
		}
		media = append(media, entry)
	}
	return media, sidecarLike
}

func isSidecarFileName(name, suffixFile, sequenceName string) bool {
	if name == sequenceName || name == "."+sequenceName {
		return true
	}
	return strings.HasSuffix(name, suffixFile)
}

// reconcileCandidate is an on-disk sidecar file discovered while
// reconciling, together with the asset it refers to.
type reconcileCandidate struct {
	sidecarPath string
	assetPath   string
	isSequence  bool
}

// reconcileMissing implements spec.md §4.7's missing-sidecar
// reconciliation: any sidecar (in any layout mode) whose asset is no
// longer present on disk is rewritten with content_state="missing".
func (e *Engine) reconcileMissing(ctx context.Context, dir string, inlineOrDotSidecars []fs.DirEntry, currentSinglePaths map[string]bool, hasCurrentSequence bool, rootAssetID *string, now time.Time, summary *Summary) error {
	var candidates []reconcileCandidate

	for _, entry := range inlineOrDotSidecars {
		candidates = append(candidates, candidateFor(dir, entry.Name(), e.Config.SuffixFile, e.Config.SequenceName, true))
	}

	subdir := filepath.Join(dir, subdirSidecarName)
	subEntries, err := os.ReadDir(subdir)
	if err == nil {
		for _, entry := range subEntries {
			if entry.IsDir() {
				continue
			}
			// Subdir-layout sidecar names never carry a layout-added dot
			// prefix (the ".qc/" directory itself is what's hidden); a
			// leading dot here belongs to the asset's own name and must
			// not be stripped (spec.md §4.4).
			candidates = append(candidates, candidateFor(dir, entry.Name(), e.Config.SuffixFile, e.Config.SequenceName, false))
		}
	} else if !os.IsNotExist(err) {
		e.Logger.Warn(errors.Wrapf(err, "unable to list %s", subdir))
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(ErrInterrupted, err.Error())
		}

		present := currentSinglePaths[candidate.assetPath]
		if candidate.isSequence {
			present = hasCurrentSequence
		}
		if present {
			continue
		}

		prior, err := e.Store.Read(candidate.sidecarPath)
		if err != nil {
			e.Logger.Warn(errors.Wrapf(err, "unable to reconcile sidecar %s", candidate.sidecarPath))
			continue
		}
		if prior == nil || prior.ContentState == sidecar.ContentStateMissing {
			continue
		}

		e.writeAsset(ctx, assetWriteInput{
			assetPath:    candidate.assetPath,
			isSequence:   candidate.isSequence,
			assetPresent: false,
			sequence:     prior.Sequence,
			prior:        prior,
			sidecarPath:  candidate.sidecarPath,
			rootAssetID:  rootAssetID,
			now:          now,
		}, summary)
	}

	return nil
}

// candidateFor derives the asset a sidecar file refers to from its name.
// allowDotStrip must be true only for sidecars found in dir itself, where
// a leading "." may be the dot-layout's own prefix rather than part of
// the asset's name; subdir-layout sidecars (found under ".qc/") never
// carry that mode prefix, so a leading dot there always belongs to the
// asset itself and must be left alone.
func candidateFor(dir, name, suffixFile, sequenceName string, allowDotStrip bool) reconcileCandidate {
	path := filepath.Join(dir, name)
	if name == sequenceName || (allowDotStrip && name == "."+sequenceName) {
		return reconcileCandidate{sidecarPath: path, assetPath: dir, isSequence: true}
	}
	base := strings.TrimSuffix(name, suffixFile)
	if allowDotStrip {
		base = strings.TrimPrefix(base, ".")
	}
	return reconcileCandidate{sidecarPath: path, assetPath: filepath.Join(dir, base), isSequence: false}
}
