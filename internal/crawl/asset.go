package crawl

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/annaglyph/qc-asset-tracker/internal/qcstate"
	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
	"github.com/annaglyph/qc-asset-tracker/internal/tracker"
)

// assetWriteInput bundles one asset's resolved content state for the
// build-and-write step shared by singles, sequences, and (with
// assetPresent=false) missing-sidecar reconciliation.
type assetWriteInput struct {
	assetPath    string
	isSequence   bool
	assetPresent bool
	contentHash  string
	sequence     *sidecar.SequenceSummary
	prior        *sidecar.Sidecar
	sidecarPath  string
	rootAssetID  *string
	now          time.Time
}

// writeAsset resolves this asset's tracker interaction, builds its next
// sidecar via qcstate.Build, posts the result to the tracker when
// warranted, and persists it through the sidecar store.
func (e *Engine) writeAsset(ctx context.Context, in assetWriteInput, summary *Summary) {
	var outcome *qcstate.TrackerOutcome
	// A lookup is skipped only when the CLI already pins an asset_id for
	// this run; otherwise it runs once per asset per run regardless of
	// whether a prior asset_id exists, so that a tracker failure can be
	// observed (and reported via tracker_status) without ever clearing a
	// sticky id (spec.md §4.6, §8 scenario 6).
	needsLookup := e.Config.TrackerEnabled && in.rootAssetID == nil

	if needsLookup {
		result := e.Tracker.Lookup(ctx, in.assetPath)
		outcome = &qcstate.TrackerOutcome{AssetID: result.AssetID, StatusTag: result.StatusTag, HTTPCode: result.HTTPCode}
		summary.addTrackerOutcome(result.StatusTag)
	}

	sc, err := qcstate.Build(qcstate.Input{
		Prior:              in.prior,
		AssetPath:          in.assetPath,
		IsSequence:         in.isSequence,
		AssetPresent:       in.assetPresent,
		CurrentContentHash: in.contentHash,
		CurrentSequence:    in.sequence,
		RunInputs: qcstate.RunInputs{
			Operator:       e.Config.Operator,
			ResultOverride: e.Config.ResultOverride,
			Note:           e.Config.Note,
			CLIAssetID:     in.rootAssetID,
		},
		Tracker:       outcome,
		ToolVersion:   e.Config.ToolVersion,
		PolicyVersion: e.Config.PolicyVersion,
		SchemaName:    e.Config.SchemaName,
		SchemaVersion: e.Config.SchemaVersion,
		Now:           in.now,
	})
	if err != nil {
		e.Logger.Warn(errors.Wrapf(err, "unable to build QC state for %s", in.assetPath))
		return
	}

	if e.Config.TrackerEnabled && sc.QCResult != sidecar.ResultPending && sc.AssetID != nil {
		result := e.Tracker.PostResult(ctx, tracker.PostResult{
			AssetID:     *sc.AssetID,
			QCID:        sc.QCID,
			QCResult:    string(sc.QCResult),
			ContentHash: sc.ContentHash,
			Operator:    sc.Operator,
			QCTime:      sc.QCTime,
		})
		sc.TrackerStatus = &sidecar.TrackerStatus{HTTPCode: result.HTTPCode, Status: result.StatusTag}
		summary.addTrackerOutcome(result.StatusTag)
	}

	if err := e.Store.Write(in.sidecarPath, sc, e.Config.LayoutMode); err != nil {
		e.Logger.Warn(errors.Wrapf(err, "unable to write sidecar %s", in.sidecarPath))
		return
	}
	summary.SidecarsWritten++
	if !in.assetPresent {
		summary.SidecarsMarkedMissing++
	}
}
