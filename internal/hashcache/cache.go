// Package hashcache implements the per-directory persistent hash cache
// (spec C2): a JSON-backed mapping from frame filename to the
// (size, modification time, content hash) triple observed the last time
// that file was deep-hashed. The cache is advisory — a full rebuild from
// content always yields the same sidecars — so corruption or absence is
// never a fatal condition, only a cause for a cold rebuild of that
// directory's hashes.
package hashcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/logging"
	"github.com/annaglyph/qc-asset-tracker/internal/qcfs"
)

// DefaultFileName is the default hidden filename used for a directory's
// hash cache (spec.md §6, "On-disk artifacts").
const DefaultFileName = ".qc.hashcache.json"

// filePermissions is the mode used for newly written cache files.
const filePermissions = 0o644

// Entry is a single cached (size, modification time, content hash)
// observation for one file in a directory.
type Entry struct {
	Size         int64  `json:"size"`
	ModTimeNanos int64  `json:"mtime"`
	ContentHash  string `json:"content_hash"`
}

// Cache is a per-directory mapping from filename to cached Entry. The
// zero value is a valid, empty cache. A Cache is shared by every worker
// hashing files in its directory (spec.md §5, "not shared across
// directories" but implicitly shared within one), so Lookup and Update
// guard the map with a mutex rather than assuming single-threaded access.
type Cache struct {
	Entries map[string]Entry `json:"entries"`

	mu sync.Mutex
}

// empty returns a fresh, empty cache.
func empty() *Cache {
	return &Cache{Entries: make(map[string]Entry)}
}

// Load reads the hash cache for dir from fileName, returning an empty
// cache (never an error) if the file is absent or can't be parsed. Parse
// failures are logged as warnings through logger, per spec.md §4.2 and
// §7 ("Corrupt hash cache ... warn; treated as empty").
func Load(dir, fileName string, logger *logging.Logger) *Cache {
	path := filepath.Join(dir, fileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(errors.Wrapf(err, "unable to read hash cache %s", path))
		}
		return empty()
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		logger.Warn(errors.Wrapf(err, "corrupt hash cache %s, rebuilding", path))
		return empty()
	}
	if c.Entries == nil {
		c.Entries = make(map[string]Entry)
	}
	return &c
}

// Lookup returns the cached content hash for filename if both size and
// modification time match exactly, per spec.md §4.2.
func (c *Cache) Lookup(filename string, size int64, modTime time.Time) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.Entries[filename]
	if !ok {
		return "", false
	}
	if entry.Size != size || entry.ModTimeNanos != modTime.UnixNano() {
		return "", false
	}
	return entry.ContentHash, true
}

// Update records a fresh (size, modification time, content hash)
// observation for filename. It only mutates the in-memory cache; callers
// must call Save to persist it.
func (c *Cache) Update(filename string, size int64, modTime time.Time, contentHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Entries == nil {
		c.Entries = make(map[string]Entry)
	}
	c.Entries[filename] = Entry{
		Size:         size,
		ModTimeNanos: modTime.UnixNano(),
		ContentHash:  contentHash,
	}
}

// Save atomically persists the cache to dir/fileName using the same
// temp-write/fsync/rename discipline used for sidecars (spec.md §4.2,
// "Atomic persist").
func Save(c *Cache, dir, fileName string, logger *logging.Logger) error {
	if c == nil {
		c = empty()
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal hash cache")
	}

	path := filepath.Join(dir, fileName)
	if err := qcfs.WriteFileAtomic(path, data, filePermissions); err != nil {
		return errors.Wrapf(err, "unable to write hash cache %s", path)
	}

	if strings.HasPrefix(filepath.Base(fileName), ".") {
		if err := qcfs.MarkHidden(path); err != nil {
			logger.Warn(errors.Wrapf(err, "unable to mark hash cache %s hidden", path))
		}
	}

	return nil
}
