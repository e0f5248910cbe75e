package crawl

import (
	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
)

// RootConfig is one crawl root together with its resolved per-root
// asset_id override (spec.md §4.8, positional --asset-id pairing is
// resolved by the configuration surface before the engine ever sees it).
type RootConfig struct {
	Path    string
	AssetID *string
}

// Config resolves every knob the crawl engine needs, already defaulted
// by the configuration surface (spec.md §4.8).
type Config struct {
	Workers int
	MinSeq  int

	LayoutMode    sidecar.LayoutMode
	SuffixFile    string
	SequenceName  string
	HashCacheName string
	Extensions    map[string]struct{}

	ResultOverride sidecar.Result
	Operator       string
	Note           string

	ToolVersion   string
	PolicyVersion string
	SchemaName    string
	SchemaVersion string

	TrackerEnabled bool
}
