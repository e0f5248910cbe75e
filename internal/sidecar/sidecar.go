// Package sidecar implements the sidecar store (spec C4): naming,
// locating, reading (with schema migration), and atomically writing the
// small JSON files that record an asset's QC state (spec.md §3).
package sidecar

import (
	"github.com/annaglyph/qc-asset-tracker/internal/hashing"
)

// ContentState is the asset's content-state relative to its prior
// sidecar, per spec.md §4.5.
type ContentState string

const (
	ContentStateNew       ContentState = "new"
	ContentStateUnchanged ContentState = "unchanged"
	ContentStateModified  ContentState = "modified"
	ContentStateMissing   ContentState = "missing"
)

// Result is the QC verdict recorded in a sidecar.
type Result string

const (
	ResultPass    Result = "pass"
	ResultFail    Result = "fail"
	ResultPending Result = "pending"
)

// TrackerStatus records the outcome of the most recent tracker
// interaction for an asset (spec.md §3).
type TrackerStatus struct {
	HTTPCode int    `json:"http_code"`
	Status   string `json:"status"`
}

// SequenceSummary is the structured frame-range summary attached to a
// Sequence asset's sidecar (spec.md §3). It is nil for Single assets.
type SequenceSummary struct {
	Base        string                   `json:"base"`
	Ext         string                   `json:"ext"`
	Pad         int                      `json:"pad"`
	First       string                   `json:"first"`
	Last        string                   `json:"last"`
	FrameMin    int64                    `json:"frame_min"`
	FrameMax    int64                    `json:"frame_max"`
	FrameCount  int                      `json:"frame_count"`
	RangeCount  int                      `json:"range_count"`
	Holes       int64                    `json:"holes"`
	CheapFP     hashing.CheapFingerprint `json:"cheap_fp"`
	ContentHash string                   `json:"content_hash"`
}

// Sidecar is the persistent QC record for one asset (spec.md §3). Field
// order here is the field order emitted on disk: encoding/json preserves
// struct declaration order, which is what gives every write the same
// stable, diff-friendly key ordering required by spec.md §4.4 without
// needing a hand-rolled ordered-map encoder.
type Sidecar struct {
	QCID            string           `json:"qc_id"`
	QCTime          string           `json:"qc_time"`
	QCResult        Result           `json:"qc_result"`
	Operator        string           `json:"operator"`
	Notes           string           `json:"notes"`
	ToolVersion     string           `json:"tool_version"`
	PolicyVersion   string           `json:"policy_version"`
	SchemaName      string           `json:"schema_name"`
	SchemaVersion   string           `json:"schema_version"`
	AssetID         *string          `json:"asset_id"`
	AssetPath       string           `json:"asset_path"`
	ContentHash     string           `json:"content_hash"`
	PrevContentHash string           `json:"prev_content_hash,omitempty"`
	ContentState    ContentState     `json:"content_state"`
	Sequence        *SequenceSummary `json:"sequence"`
	LastValidQCID   string           `json:"last_valid_qc_id,omitempty"`
	LastValidQCTime string           `json:"last_valid_qc_time,omitempty"`
	TrackerStatus   *TrackerStatus   `json:"tracker_status,omitempty"`
}
