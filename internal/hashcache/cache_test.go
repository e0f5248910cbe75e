package hashcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annaglyph/qc-asset-tracker/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewRoot(logging.LevelDisabled)
}

func TestLoadAbsentReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	c := Load(dir, DefaultFileName, testLogger())
	if len(c.Entries) != 0 {
		t.Fatalf("expected empty cache, got %d entries", len(c.Entries))
	}
}

func TestLoadCorruptReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("unable to write fixture: %v", err)
	}

	c := Load(dir, DefaultFileName, testLogger())
	if len(c.Entries) != 0 {
		t.Fatalf("expected empty cache on corruption, got %d entries", len(c.Entries))
	}
}

func TestUpdateLookupRoundTrip(t *testing.T) {
	c := &Cache{Entries: make(map[string]Entry)}
	mtime := time.Unix(12345, 0)
	c.Update("shot.0001.exr", 1024, mtime, "blake3:deadbeef")

	hash, ok := c.Lookup("shot.0001.exr", 1024, mtime)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if hash != "blake3:deadbeef" {
		t.Fatalf("unexpected hash: %q", hash)
	}
}

func TestLookupMissesOnSizeOrTimeMismatch(t *testing.T) {
	c := &Cache{Entries: make(map[string]Entry)}
	mtime := time.Unix(12345, 0)
	c.Update("shot.0001.exr", 1024, mtime, "blake3:deadbeef")

	if _, ok := c.Lookup("shot.0001.exr", 2048, mtime); ok {
		t.Fatal("expected cache miss on size mismatch")
	}
	if _, ok := c.Lookup("shot.0001.exr", 1024, mtime.Add(time.Second)); ok {
		t.Fatal("expected cache miss on mtime mismatch")
	}
	if _, ok := c.Lookup("missing.exr", 1024, mtime); ok {
		t.Fatal("expected cache miss on missing filename")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := &Cache{Entries: make(map[string]Entry)}
	mtime := time.Unix(999, 0)
	c.Update("a.exr", 10, mtime, "blake3:aa")

	if err := Save(c, dir, DefaultFileName, testLogger()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reloaded := Load(dir, DefaultFileName, testLogger())
	hash, ok := reloaded.Lookup("a.exr", 10, mtime)
	if !ok || hash != "blake3:aa" {
		t.Fatalf("expected round-tripped entry, got hash=%q ok=%v", hash, ok)
	}

	// No stray temporary files should remain.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unable to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file in cache dir, got %d", len(entries))
	}
}
