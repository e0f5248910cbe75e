// Package config resolves the crawler's configuration surface (spec C8):
// CLI flags layered over environment variables layered over built-in
// defaults, producing the inputs the crawl engine, sidecar store, and
// tracker client need. It performs no flag parsing itself (that's cmd's
// job, via pflag) — it only resolves already-parsed values the way the
// teacher's session configurations resolve theirs (see
// pkg/synchronization/configuration in the wider example pack).
package config

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/crawl"
	"github.com/annaglyph/qc-asset-tracker/internal/hashcache"
	"github.com/annaglyph/qc-asset-tracker/internal/logging"
	"github.com/annaglyph/qc-asset-tracker/internal/sequence"
	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
	"github.com/annaglyph/qc-asset-tracker/internal/tracker"
)

// defaultTrackerTimeout is used when no explicit timeout is configured
// (spec.md §5, "default 10s").
const defaultTrackerTimeout = 10 * time.Second

// defaultTrackerRequestsPerSec and defaultTrackerBurst bound the rate at
// which the tracker client issues requests.
const (
	defaultTrackerRequestsPerSec = 5.0
	defaultTrackerBurst          = 5
)

// Raw holds configuration values as gathered from CLI flags, before
// environment fallback and defaulting. Fields left at their zero value are
// resolved from the environment or a built-in default, so a flag explicitly
// set to its zero value is treated the same as an unset flag.
type Raw struct {
	Roots       []string
	AssetIDs    []string
	Workers     int
	MinSeq      int
	SidecarMode string
	Operator    string
	Result      string
	Note        string
	LogLevel    string

	TrakEnabled bool
	TrakURL     string
	TrakToken   string
}

// Resolved is everything main needs to construct a sidecar.Store,
// tracker.Client and crawl.Engine and run them.
type Resolved struct {
	Roots    []crawl.RootConfig
	Crawl    crawl.Config
	Tracker  tracker.Config
	LogLevel logging.Level
}

// Resolve layers raw (CLI flags) over the process environment and built-in
// defaults, per the table in spec.md §4.8. It returns an error only for
// conditions that make the run impossible to start (spec.md §6, exit code
// 1): no roots, an unrecognized enum value, or a mismatched --asset-id
// count.
func Resolve(raw Raw) (*Resolved, error) {
	if len(raw.Roots) == 0 {
		return nil, errors.New("at least one ROOT is required")
	}

	workers := raw.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	minSeq := raw.MinSeq
	if minSeq <= 0 {
		minSeq = 2
	}

	layoutMode, err := resolveLayoutMode(raw.SidecarMode)
	if err != nil {
		return nil, err
	}

	resultOverride, err := resolveResultOverride(raw.Result)
	if err != nil {
		return nil, err
	}

	operator := raw.Operator
	if operator == "" {
		operator = os.Getenv("USER")
	}
	if operator == "" {
		if u, err := user.Current(); err == nil {
			operator = u.Username
		}
	}
	if operator == "" {
		operator = "unknown"
	}

	logLevelName := raw.LogLevel
	if logLevelName == "" {
		logLevelName = os.Getenv("LOG_LEVEL")
	}
	if logLevelName == "" {
		logLevelName = "info"
	}
	logLevel, ok := logging.NameToLevel(logLevelName)
	if !ok {
		return nil, errors.Errorf("unrecognized log level %q", logLevelName)
	}

	roots, err := resolveRoots(raw.Roots, raw.AssetIDs)
	if err != nil {
		return nil, err
	}

	trackerCfg, trackerEnabled := resolveTracker(raw)

	crawlCfg := crawl.Config{
		Workers:        workers,
		MinSeq:         minSeq,
		LayoutMode:     layoutMode,
		SuffixFile:     envOrDefault("QC_SIDE_SUFFIX_FILE", ".qc.json"),
		SequenceName:   envOrDefault("QC_SIDE_NAME_SEQUENCE", "qc.sequence.json"),
		HashCacheName:  hashcache.DefaultFileName,
		Extensions:     sequence.DefaultExtensions(),
		ResultOverride: resultOverride,
		Operator:       operator,
		Note:           raw.Note,
		ToolVersion:    ToolVersion,
		PolicyVersion:  envOrDefault("QC_POLICY_VERSION", BuiltinPolicyVersion),
		SchemaName:     envOrDefault("QC_SCHEMA_NAME", sidecar.CurrentSchemaName),
		SchemaVersion:  envOrDefault("QC_SCHEMA_VERSION", sidecar.CurrentSchemaVersion),
		TrackerEnabled: trackerEnabled,
	}

	return &Resolved{
		Roots:    roots,
		Crawl:    crawlCfg,
		Tracker:  trackerCfg,
		LogLevel: logLevel,
	}, nil
}

func resolveLayoutMode(value string) (sidecar.LayoutMode, error) {
	if value == "" {
		return sidecar.LayoutSubdir, nil
	}
	switch sidecar.LayoutMode(value) {
	case sidecar.LayoutInline, sidecar.LayoutDot, sidecar.LayoutSubdir:
		return sidecar.LayoutMode(value), nil
	default:
		return "", errors.Errorf("unrecognized --sidecar-mode %q", value)
	}
}

func resolveResultOverride(value string) (sidecar.Result, error) {
	switch value {
	case "":
		return "", nil
	case string(sidecar.ResultPass), string(sidecar.ResultFail), string(sidecar.ResultPending):
		return sidecar.Result(value), nil
	default:
		return "", errors.Errorf("unrecognized --result %q", value)
	}
}

// resolveRoots pairs --asset-id values to ROOT arguments positionally,
// reusing the last supplied value for any unpaired trailing roots (spec.md
// §9, resolving the "positional vs. global" Open Question in favor of
// positional pairing).
func resolveRoots(paths, assetIDs []string) ([]crawl.RootConfig, error) {
	if len(assetIDs) > len(paths) {
		return nil, errors.Errorf("got %d --asset-id values for %d roots", len(assetIDs), len(paths))
	}

	roots := make([]crawl.RootConfig, len(paths))
	var last *string
	for i, path := range paths {
		var assetID *string
		if i < len(assetIDs) {
			id := assetIDs[i]
			assetID = &id
			last = &id
		} else {
			assetID = last
		}
		roots[i] = crawl.RootConfig{Path: path, AssetID: assetID}
	}
	return roots, nil
}

func resolveTracker(raw Raw) (tracker.Config, bool) {
	baseURL := raw.TrakURL
	if baseURL == "" {
		baseURL = os.Getenv("TRAK_BASE_URL")
	}
	token := raw.TrakToken
	if token == "" {
		token = os.Getenv("TRAK_ASSET_TRACKER_API_KEY")
	}

	enabled := raw.TrakEnabled || baseURL != ""
	if !enabled {
		return tracker.Config{}, false
	}

	return tracker.Config{
		BaseURL:        baseURL,
		BearerToken:    token,
		Timeout:        defaultTrackerTimeout,
		RequestsPerSec: defaultTrackerRequestsPerSec,
		Burst:          defaultTrackerBurst,
	}, true
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// String summarizes a Resolved's root count and main settings on one line,
// for diagnostic logging.
func (r *Resolved) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d root(s), workers=%d, min_seq=%d, layout=%s, tracker=%v",
		len(r.Roots), r.Crawl.Workers, r.Crawl.MinSeq, r.Crawl.LayoutMode, r.Crawl.TrackerEnabled)
}
