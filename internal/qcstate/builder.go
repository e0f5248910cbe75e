// Package qcstate implements the QC state builder (spec C5): given a
// prior sidecar (if any), the current content hash/sequence summary, and
// this run's operator inputs and tracker outcome, it computes the next
// sidecar payload, including the content-state transition, the sticky
// qc_id and asset_id rules, and the tracker_status field.
package qcstate

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
)

// RunInputs are the operator-facing inputs for a single crawl invocation
// (spec.md §4.5, §4.8).
type RunInputs struct {
	// Operator defaults to the system account running the crawl
	// (spec.md §3).
	Operator string
	// ResultOverride is the --result value. An empty string and
	// sidecar.ResultPending are both treated as "no verdict" (a nightly
	// run); sidecar.ResultPass/ResultFail mint an operator sign-off.
	ResultOverride sidecar.Result
	Note           string
	// CLIAssetID is the --asset-id value resolved for this asset's root,
	// if any (spec.md §4.5 sticky asset_id precedence).
	CLIAssetID *string
}

// IsOperatorVerdict reports whether these run inputs represent an
// operator sign-off rather than a nightly sweep.
func (r RunInputs) IsOperatorVerdict() bool {
	return r.ResultOverride == sidecar.ResultPass || r.ResultOverride == sidecar.ResultFail
}

// TrackerOutcome is the result of this run's tracker interaction for one
// asset, or nil if no tracker call was made (tracking disabled, or this
// run's --asset-id already pinned the asset_id and a lookup wasn't needed).
type TrackerOutcome struct {
	AssetID   *string
	StatusTag string
	HTTPCode  int
}

// Input bundles everything the builder needs to compute the next
// sidecar for one asset.
type Input struct {
	Prior *sidecar.Sidecar

	AssetPath          string
	IsSequence         bool
	AssetPresent       bool
	CurrentContentHash string
	CurrentSequence    *sidecar.SequenceSummary

	RunInputs RunInputs
	Tracker   *TrackerOutcome

	ToolVersion   string
	PolicyVersion string
	SchemaName    string
	SchemaVersion string

	Now time.Time
}

// Build computes the next sidecar payload for an asset, implementing the
// content-state transition table, qc_id rule, and sticky asset_id
// resolution of spec.md §4.5.
func Build(in Input) (*sidecar.Sidecar, error) {
	if !in.AssetPresent && in.Prior == nil {
		return nil, errors.New("cannot build a sidecar for an asset with neither prior state nor current presence")
	}

	state, contentHash, prevContentHash := resolveContentState(in)

	qcID, qcResult, lastValidID, lastValidTime := resolveQCIdentity(in, state)

	out := &sidecar.Sidecar{
		QCID:            qcID,
		QCTime:          in.Now.UTC().Format(time.RFC3339),
		QCResult:        qcResult,
		Operator:        in.RunInputs.Operator,
		Notes:           in.RunInputs.Note,
		ToolVersion:     in.ToolVersion,
		PolicyVersion:   in.PolicyVersion,
		SchemaName:      in.SchemaName,
		SchemaVersion:   in.SchemaVersion,
		AssetID:         resolveAssetID(in),
		AssetPath:       in.AssetPath,
		ContentHash:     contentHash,
		PrevContentHash: prevContentHash,
		ContentState:    state,
		Sequence:        resolveSequence(in, state),
		LastValidQCID:   lastValidID,
		LastValidQCTime: lastValidTime,
		TrackerStatus:   resolveTrackerStatus(in),
	}

	return out, nil
}

// resolveContentState implements spec.md §4.5's content-state transition
// table and the accompanying content_hash/prev_content_hash rules.
func resolveContentState(in Input) (state sidecar.ContentState, contentHash, prevContentHash string) {
	switch {
	case in.Prior == nil && in.AssetPresent:
		return sidecar.ContentStateNew, in.CurrentContentHash, ""
	case in.Prior != nil && !in.AssetPresent:
		// Missing: the prior content_hash is carried forward verbatim
		// and no new prev_content_hash is emitted (spec.md §4.5).
		return sidecar.ContentStateMissing, in.Prior.ContentHash, ""
	case in.Prior.ContentHash == in.CurrentContentHash:
		return sidecar.ContentStateUnchanged, in.CurrentContentHash, ""
	default:
		return sidecar.ContentStateModified, in.CurrentContentHash, in.Prior.ContentHash
	}
}

// resolveQCIdentity implements the qc_id minting rule (spec.md §4.5): an
// operator verdict always mints a fresh id and updates last_valid_*, even
// over a Missing asset (an operator recording --result fail against
// something that vanished is a deliberate verdict, not a nightly sweep,
// and must mint like any other verdict). A nightly run preserves the
// prior qc_id (minting only if none existed) and leaves last_valid_*
// untouched. A Missing transition with no operator verdict carries the
// prior qc_id/qc_result/last_valid_* forward verbatim: an asset that has
// gone offline hasn't been reviewed, so its recorded verdict shouldn't be
// silently reset to pending.
func resolveQCIdentity(in Input, state sidecar.ContentState) (qcID string, qcResult sidecar.Result, lastValidID, lastValidTime string) {
	if in.RunInputs.IsOperatorVerdict() {
		fresh := newQCID()
		qcTime := in.Now.UTC().Format(time.RFC3339)
		return fresh, in.RunInputs.ResultOverride, fresh, qcTime
	}

	if state == sidecar.ContentStateMissing && in.Prior != nil {
		return in.Prior.QCID, in.Prior.QCResult, in.Prior.LastValidQCID, in.Prior.LastValidQCTime
	}

	qcID = ""
	if in.Prior != nil {
		qcID = in.Prior.QCID
		lastValidID = in.Prior.LastValidQCID
		lastValidTime = in.Prior.LastValidQCTime
	}
	if qcID == "" {
		qcID = newQCID()
	}
	return qcID, sidecar.ResultPending, lastValidID, lastValidTime
}

// newQCID mints a fresh UUIDv7-based QC event identifier. UUIDv7 encodes
// a 48-bit Unix-millisecond timestamp plus random bits, so identifiers
// sort by creation time without needing a central sequence (spec.md §9).
func newQCID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the runtime's random source is
		// broken, which is itself a fatal condition for a tool that
		// mints identifiers for a living audit trail; uuid.New reads
		// crypto/rand directly and panics if that fails, which
		// essentially never happens in practice, so this path exists
		// defensively rather than as a realistic branch.
		id = uuid.New()
	}
	return id.String()
}

// resolveAssetID implements the sticky asset_id precedence of spec.md
// §4.5: CLI override, then a tracker lookup that found an asset, then
// the prior sidecar's asset_id, then null. A tracker failure (nil
// AssetID on the outcome) never clears an existing id because the chain
// simply falls through to the prior value.
func resolveAssetID(in Input) *string {
	if in.RunInputs.CLIAssetID != nil {
		return in.RunInputs.CLIAssetID
	}
	if in.Tracker != nil && in.Tracker.AssetID != nil {
		return in.Tracker.AssetID
	}
	if in.Prior != nil {
		return in.Prior.AssetID
	}
	return nil
}

// resolveSequence carries the current sequence summary through, except
// when the asset is Missing, in which case the prior summary is carried
// forward so that the "sequence field always present" invariant (spec.md
// §3) holds even though no frames exist on disk to re-derive it from.
func resolveSequence(in Input, state sidecar.ContentState) *sidecar.SequenceSummary {
	if state == sidecar.ContentStateMissing {
		if in.Prior != nil {
			return in.Prior.Sequence
		}
		return nil
	}
	return in.CurrentSequence
}

// resolveTrackerStatus renders this run's tracker outcome, if any, into
// the sidecar's tracker_status field.
func resolveTrackerStatus(in Input) *sidecar.TrackerStatus {
	if in.Tracker == nil {
		return nil
	}
	return &sidecar.TrackerStatus{
		HTTPCode: in.Tracker.HTTPCode,
		Status:   in.Tracker.StatusTag,
	}
}
