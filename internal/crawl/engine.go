// Package crawl implements the crawl engine (spec C7): a serial directory
// walk that batches each directory through the sequence detector, the
// hash cache and hashing pipeline, the QC state builder, and the
// sidecar store, dispatching the I/O-bound hashing work to a bounded
// worker pool.
package crawl

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/hashcache"
	"github.com/annaglyph/qc-asset-tracker/internal/hashing"
	"github.com/annaglyph/qc-asset-tracker/internal/logging"
	"github.com/annaglyph/qc-asset-tracker/internal/sequence"
	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
	"github.com/annaglyph/qc-asset-tracker/internal/tracker"
)

// ErrInterrupted is returned by Run when a caller-cancelled context
// stopped the walk before every root finished (spec.md §5, exit code 2).
var ErrInterrupted = errors.New("crawl interrupted")

// Engine runs one crawl invocation.
type Engine struct {
	Config  Config
	Logger  *logging.Logger
	Store   *sidecar.Store
	Tracker *tracker.Client

	// clock is overridable in tests; defaults to time.Now.
	clock func() time.Time
}

// New constructs an Engine ready to Run.
func New(cfg Config, logger *logging.Logger, store *sidecar.Store, trackerClient *tracker.Client) *Engine {
	return &Engine{Config: cfg, Logger: logger, Store: store, Tracker: trackerClient, clock: time.Now}
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

// Run walks every root, producing and persisting sidecars. It returns
// ErrInterrupted (annotated with the context error's message) if ctx is cancelled
// mid-walk; the in-flight directory still finishes and is persisted
// before the walk stops, per spec.md §5's drain requirement.
func (e *Engine) Run(ctx context.Context, roots []RootConfig) (*Summary, error) {
	summary := &Summary{}
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return summary, errors.Wrap(ErrInterrupted, err.Error())
		}
		if err := e.walk(ctx, root, summary); err != nil {
			if errors.Is(err, ErrInterrupted) {
				return summary, err
			}
			e.Logger.Warn(errors.Wrapf(err, "error walking root %s", root.Path))
		}
	}
	return summary, nil
}

// walk recurses through dir, processing each directory's own files before
// descending into its subdirectories. Directories whose name begins with
// "." are never descended into: they hold sidecar metadata (the "subdir"
// layout's .qc directories) rather than media.
func (e *Engine) walk(ctx context.Context, root RootConfig, summary *Summary) error {
	return e.walkDir(ctx, root.Path, root.AssetID, summary)
}

func (e *Engine) walkDir(ctx context.Context, dir string, rootAssetID *string, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrInterrupted, err.Error())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "unable to list %s", dir)
	}

	if err := e.processDirectory(ctx, dir, entries, rootAssetID, summary); err != nil {
		return err
	}

	var subdirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if len(entry.Name()) > 0 && entry.Name()[0] == '.' {
			continue
		}
		subdirs = append(subdirs, entry.Name())
	}
	sort.Strings(subdirs)

	for _, name := range subdirs {
		if err := e.walkDir(ctx, filepath.Join(dir, name), rootAssetID, summary); err != nil {
			return err
		}
	}
	return nil
}

// processDirectory implements the per-directory pipeline of spec.md
// §4.7: list, group into sequences/singletons, load the hash cache,
// dispatch hashing, save the cache, build and write sidecars, then
// reconcile sidecars whose asset has disappeared.
func (e *Engine) processDirectory(ctx context.Context, dir string, entries []fs.DirEntry, rootAssetID *string, summary *Summary) error {
	summary.DirectoriesScanned++

	mediaFiles, sidecarLike := e.classifyEntries(entries)

	seqEntries := make([]sequence.Entry, 0, len(mediaFiles))
	for _, f := range mediaFiles {
		info, err := f.Info()
		if err != nil {
			e.Logger.WarnOnce("stat-error", errors.Wrapf(err, "unable to stat %s", filepath.Join(dir, f.Name())))
			continue
		}
		seqEntries = append(seqEntries, sequence.Entry{
			Name:    f.Name(),
			IsDir:   false,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	singles, sequences := sequence.Detect(dir, seqEntries, e.Config.Extensions, e.Config.MinSeq, e.Logger)

	if len(sequences) > 1 {
		sort.Slice(sequences, func(i, j int) bool { return sequences[i].Base < sequences[j].Base })
		for _, extra := range sequences[1:] {
			e.Logger.Warnf("directory %s has more than one sequence group (%s.*.%s); only the first is tracked as this directory's sidecar sequence", dir, extra.Base, extra.Ext)
		}
		sequences = sequences[:1]
	}

	cache := hashcache.Load(dir, e.Config.HashCacheName, e.Logger)

	currentSinglePaths := make(map[string]bool, len(singles))
	for _, s := range singles {
		currentSinglePaths[s.Path] = true
	}

	priorSingles := make(map[string]*sidecar.Sidecar, len(singles))
	singleHashes := make(map[string]string, len(singles))
	pool := newPool(e.Config.Workers)
	// hashMu guards the cache and the result maps below, both of which are
	// written concurrently from pool worker goroutines.
	var hashMu sync.Mutex

	for _, single := range singles {
		single := single
		path, err := sidecar.PathFor(sidecar.AssetRef{Path: single.Path}, e.Config.LayoutMode, e.Config.SuffixFile, e.Config.SequenceName)
		if err != nil {
			e.Logger.Warn(err)
			continue
		}
		prior, err := e.Store.Read(path)
		if err != nil {
			e.Logger.Warn(errors.Wrapf(err, "skipping asset with unreadable sidecar schema: %s", single.Path))
			continue
		}
		priorSingles[single.Path] = prior

		if hash, ok := cache.Lookup(filepath.Base(single.Path), single.Size, single.ModTime); ok {
			singleHashes[single.Path] = hash
			summary.CacheHits++
			continue
		}
		summary.CacheMisses++
		pool.Go(func() error {
			hash, err := hashing.DeepHash(single.Path)
			if err != nil {
				e.Logger.WarnOnce("hash-error", errors.Wrapf(err, "unable to hash %s", single.Path))
				return nil
			}
			hashMu.Lock()
			cache.Update(filepath.Base(single.Path), single.Size, single.ModTime, hash)
			singleHashes[single.Path] = hash
			hashMu.Unlock()
			atomic.AddInt64(&summary.BytesHashed, single.Size)
			return nil
		})
	}

	type seqWork struct {
		seq         sequence.Sequence
		path        string
		prior       *sidecar.Sidecar
		skip        bool
		frameHashes map[string]string
	}
	var seqWorks []*seqWork

	for _, seq := range sequences {
		seq := seq
		path, err := sidecar.PathFor(sidecar.AssetRef{IsSequence: true, Path: dir}, e.Config.LayoutMode, e.Config.SuffixFile, e.Config.SequenceName)
		if err != nil {
			e.Logger.Warn(err)
			continue
		}
		prior, err := e.Store.Read(path)
		if err != nil {
			e.Logger.Warn(errors.Wrapf(err, "skipping sequence with unreadable sidecar schema: %s", dir))
			continue
		}

		work := &seqWork{seq: seq, path: path, prior: prior, frameHashes: make(map[string]string, len(seq.Frames))}
		seqWorks = append(seqWorks, work)

		if canSkipSequenceHash(prior, seq, cache) {
			work.skip = true
			summary.CacheHits += int64(len(seq.Frames))
			continue
		}

		for _, frame := range seq.Frames {
			frame := frame
			framePath := filepath.Join(dir, frame.Filename)
			if hash, ok := cache.Lookup(frame.Filename, frame.Size, frame.ModTime); ok {
				work.frameHashes[frame.Filename] = hash
				summary.CacheHits++
				continue
			}
			summary.CacheMisses++
			pool.Go(func() error {
				hash, err := hashing.DeepHash(framePath)
				if err != nil {
					e.Logger.WarnOnce("hash-error", errors.Wrapf(err, "unable to hash %s", framePath))
					return nil
				}
				hashMu.Lock()
				cache.Update(frame.Filename, frame.Size, frame.ModTime, hash)
				work.frameHashes[frame.Filename] = hash
				hashMu.Unlock()
				atomic.AddInt64(&summary.BytesHashed, frame.Size)
				return nil
			})
		}
	}

	if err := pool.Wait(); err != nil {
		e.Logger.Warn(errors.Wrap(err, "one or more hashing tasks failed"))
	}

	if err := hashcache.Save(cache, dir, e.Config.HashCacheName, e.Logger); err != nil {
		e.Logger.Warn(errors.Wrapf(err, "unable to save hash cache for %s", dir))
	}

	now := e.now()

	for _, single := range singles {
		hash, ok := singleHashes[single.Path]
		if !ok {
			continue
		}
		path, err := sidecar.PathFor(sidecar.AssetRef{Path: single.Path}, e.Config.LayoutMode, e.Config.SuffixFile, e.Config.SequenceName)
		if err != nil {
			continue
		}
		e.writeAsset(ctx, assetWriteInput{
			assetPath:    single.Path,
			isSequence:   false,
			assetPresent: true,
			contentHash:  hash,
			sequence:     nil,
			prior:        priorSingles[single.Path],
			sidecarPath:  path,
			rootAssetID:  rootAssetID,
			now:          now,
		}, summary)
		summary.SinglesProcessed++
	}

	for _, work := range seqWorks {
		var contentHash string
		var summaryData sidecar.SequenceSummary
		cheapFP := work.seq.CheapFingerprint()
		if work.skip {
			contentHash = work.prior.ContentHash
		} else {
			frames := make([]hashing.FrameHash, 0, len(work.seq.Frames))
			complete := true
			for _, frame := range work.seq.Frames {
				hash, ok := work.frameHashes[frame.Filename]
				if !ok {
					complete = false
					break
				}
				frames = append(frames, hashing.FrameHash{FrameNumber: frame.FrameNumber, Filename: frame.Filename, Hash: hash})
			}
			if !complete {
				e.Logger.Warnf("skipping sidecar write for sequence %s: one or more frames failed to hash", dir)
				continue
			}
			hash, err := hashing.ManifestHash(frames)
			if err != nil {
				e.Logger.Warn(errors.Wrapf(err, "unable to compute manifest hash for %s", dir))
				continue
			}
			contentHash = hash
		}

		summaryData = sidecar.SequenceSummary{
			Base:        work.seq.Base,
			Ext:         work.seq.Ext,
			Pad:         work.seq.Pad,
			First:       work.seq.First(),
			Last:        work.seq.Last(),
			FrameMin:    work.seq.FrameMin(),
			FrameMax:    work.seq.FrameMax(),
			FrameCount:  work.seq.FrameCount(),
			RangeCount:  work.seq.RangeCount(),
			Holes:       work.seq.Holes(),
			CheapFP:     cheapFP,
			ContentHash: contentHash,
		}

		e.writeAsset(ctx, assetWriteInput{
			assetPath:    dir,
			isSequence:   true,
			assetPresent: true,
			contentHash:  contentHash,
			sequence:     &summaryData,
			prior:        work.prior,
			sidecarPath:  work.path,
			rootAssetID:  rootAssetID,
			now:          now,
		}, summary)
		summary.SequencesProcessed++
	}

	return e.reconcileMissing(ctx, dir, sidecarLike, currentSinglePaths, len(sequences) > 0, rootAssetID, now, summary)
}

// canSkipSequenceHash implements the sequence hash reuse optimization of
// spec.md §4.5: if the prior sidecar's cheap fingerprint matches the
// current one and every frame is already in the hash cache under its
// current (size, mtime), the deep hash step is skipped entirely.
func canSkipSequenceHash(prior *sidecar.Sidecar, seq sequence.Sequence, cache *hashcache.Cache) bool {
	if prior == nil || prior.Sequence == nil {
		return false
	}
	if !prior.Sequence.CheapFP.Equal(seq.CheapFingerprint()) {
		return false
	}
	for _, frame := range seq.Frames {
		if _, ok := cache.Lookup(frame.Filename, frame.Size, frame.ModTime); !ok {
			return false
		}
	}
	return true
}
