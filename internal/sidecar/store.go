package sidecar

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/logging"
	"github.com/annaglyph/qc-asset-tracker/internal/qcfs"
)

// LayoutMode selects where a sidecar is placed relative to its asset
// (spec.md §4.4).
type LayoutMode string

const (
	LayoutInline LayoutMode = "inline"
	LayoutDot    LayoutMode = "dot"
	LayoutSubdir LayoutMode = "subdir"
)

// subdirName is the fixed directory name used in "subdir" layout mode.
const subdirName = ".qc"

// filePermissions is the mode used for newly written sidecar files.
const filePermissions = 0o644

// AssetRef identifies the asset a sidecar belongs to, for path
// computation. For a Single, Path is the file's path; for a Sequence,
// Path is the containing directory.
type AssetRef struct {
	IsSequence bool
	Path       string
}

// PathFor computes the on-disk location of ref's sidecar under the given
// layout mode, per spec.md §4.4's per-mode table.
func PathFor(ref AssetRef, mode LayoutMode, suffixFile, sequenceName string) (string, error) {
	if ref.IsSequence {
		switch mode {
		case LayoutInline:
			return filepath.Join(ref.Path, sequenceName), nil
		case LayoutDot:
			return filepath.Join(ref.Path, "."+sequenceName), nil
		case LayoutSubdir:
			return filepath.Join(ref.Path, subdirName, sequenceName), nil
		default:
			return "", errors.Errorf("unknown sidecar layout mode %q", mode)
		}
	}

	dir := filepath.Dir(ref.Path)
	base := filepath.Base(ref.Path)
	name := base + suffixFile
	switch mode {
	case LayoutInline:
		return filepath.Join(dir, name), nil
	case LayoutDot:
		return filepath.Join(dir, "."+name), nil
	case LayoutSubdir:
		return filepath.Join(dir, subdirName, name), nil
	default:
		return "", errors.Errorf("unknown sidecar layout mode %q", mode)
	}
}

// Store reads and writes sidecars under a fixed schema target, applying
// the migration chain (migrate.go) on read.
type Store struct {
	SchemaName    string
	SchemaVersion string
	Logger        *logging.Logger
}

// NewStore constructs a Store targeting the given current schema.
func NewStore(schemaName, schemaVersion string, logger *logging.Logger) *Store {
	return &Store{SchemaName: schemaName, SchemaVersion: schemaVersion, Logger: logger}
}

// Read loads and migrates the sidecar at path. It returns (nil, nil) if
// the file is absent or cannot be parsed as JSON — both are treated as
// "no prior sidecar" per spec.md §7 ("Corrupt prior sidecar ... treated
// as absent"). ErrUnknownSchema is returned (sidecar left nil, err set)
// if the payload declares a schema version newer than this Store
// understands, per spec.md §4.4.1: such a sidecar must be left
// untouched, not silently treated as new.
func (s *Store) Read(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		s.Logger.Warn(errors.Wrapf(err, "unable to read sidecar %s", path))
		return nil, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.Logger.Warn(errors.Wrapf(err, "corrupt sidecar %s, treating as absent", path))
		return nil, nil
	}

	migrated, err := migrate(raw, s.SchemaVersion)
	if err != nil {
		if errors.Is(err, ErrUnknownSchema) {
			return nil, errors.Wrapf(err, "sidecar %s", path)
		}
		s.Logger.Warn(errors.Wrapf(err, "unable to migrate sidecar %s, treating as absent", path))
		return nil, nil
	}

	remarshaled, err := json.Marshal(migrated)
	if err != nil {
		s.Logger.Warn(errors.Wrapf(err, "unable to remarshal migrated sidecar %s, treating as absent", path))
		return nil, nil
	}

	var sc Sidecar
	if err := json.Unmarshal(remarshaled, &sc); err != nil {
		s.Logger.Warn(errors.Wrapf(err, "unable to decode migrated sidecar %s, treating as absent", path))
		return nil, nil
	}

	return &sc, nil
}

// Write serializes sc and atomically writes it to path, always stamping
// the Store's current schema name and version (spec.md §4.4.1: "Writes
// always emit the current schema version"). It creates any containing
// ".qc" directory on demand and reapplies platform hidden-file handling.
func (s *Store) Write(path string, sc *Sidecar, mode LayoutMode) error {
	sc.SchemaName = s.SchemaName
	sc.SchemaVersion = s.SchemaVersion

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create sidecar directory %s", dir)
	}
	if mode == LayoutSubdir {
		if err := qcfs.MarkHidden(dir); err != nil {
			s.Logger.Warn(errors.Wrapf(err, "unable to mark %s hidden", dir))
		}
	}

	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal sidecar")
	}

	if err := qcfs.WriteFileAtomic(path, data, filePermissions); err != nil {
		return errors.Wrapf(err, "unable to write sidecar %s", path)
	}

	if mode == LayoutDot {
		if err := qcfs.MarkHidden(path); err != nil {
			s.Logger.Warn(errors.Wrapf(err, "unable to mark sidecar %s hidden", path))
		}
	}

	return nil
}
