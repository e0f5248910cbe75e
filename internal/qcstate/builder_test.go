package qcstate

import (
	"strings"
	"testing"
	"time"

	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
)

func stringPtr(s string) *string { return &s }

func baseInput() Input {
	return Input{
		AssetPath:          "/vol/show/shot/clip.mxf",
		AssetPresent:       true,
		CurrentContentHash: "blake3:aaaa",
		RunInputs:          RunInputs{Operator: "nightly"},
		ToolVersion:        "1.0.0",
		PolicyVersion:      "2024.1",
		SchemaName:         sidecar.CurrentSchemaName,
		SchemaVersion:      sidecar.CurrentSchemaVersion,
		Now:                time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildNewAsset(t *testing.T) {
	sc, err := Build(baseInput())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.ContentState != sidecar.ContentStateNew {
		t.Errorf("expected new, got %s", sc.ContentState)
	}
	if sc.PrevContentHash != "" {
		t.Errorf("expected no prev_content_hash for a new asset, got %q", sc.PrevContentHash)
	}
	if sc.QCResult != sidecar.ResultPending {
		t.Errorf("expected pending result for nightly run, got %s", sc.QCResult)
	}
	if sc.QCID == "" {
		t.Error("expected a minted qc_id")
	}
}

func TestBuildUnchangedPreservesQCID(t *testing.T) {
	in := baseInput()
	in.Prior = &sidecar.Sidecar{
		QCID:        "prior-id",
		ContentHash: in.CurrentContentHash,
		AssetID:     stringPtr("asset-123"),
	}

	sc, err := Build(in)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.ContentState != sidecar.ContentStateUnchanged {
		t.Errorf("expected unchanged, got %s", sc.ContentState)
	}
	if sc.QCID != "prior-id" {
		t.Errorf("expected prior qc_id to be preserved, got %s", sc.QCID)
	}
	if sc.PrevContentHash != "" {
		t.Errorf("expected no prev_content_hash when unchanged, got %q", sc.PrevContentHash)
	}
}

func TestBuildModifiedSetsPrevContentHash(t *testing.T) {
	in := baseInput()
	in.Prior = &sidecar.Sidecar{
		QCID:        "prior-id",
		ContentHash: "blake3:old",
	}

	sc, err := Build(in)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.ContentState != sidecar.ContentStateModified {
		t.Errorf("expected modified, got %s", sc.ContentState)
	}
	if sc.PrevContentHash != "blake3:old" {
		t.Errorf("expected prev_content_hash to carry the old hash, got %q", sc.PrevContentHash)
	}
	if sc.ContentHash != in.CurrentContentHash {
		t.Errorf("expected content_hash to be the new hash, got %q", sc.ContentHash)
	}
}

func TestBuildMissingCarriesForwardHashAndSequence(t *testing.T) {
	in := baseInput()
	in.AssetPresent = false
	in.CurrentContentHash = ""
	seq := &sidecar.SequenceSummary{Base: "shot", FrameCount: 10}
	in.Prior = &sidecar.Sidecar{
		QCID:        "prior-id",
		QCResult:    sidecar.ResultPass,
		ContentHash: "blake3:old",
		Sequence:    seq,
	}

	sc, err := Build(in)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.ContentState != sidecar.ContentStateMissing {
		t.Errorf("expected missing, got %s", sc.ContentState)
	}
	if sc.ContentHash != "blake3:old" {
		t.Errorf("expected content_hash carried forward, got %q", sc.ContentHash)
	}
	if sc.PrevContentHash != "" {
		t.Errorf("expected no prev_content_hash for missing, got %q", sc.PrevContentHash)
	}
	if sc.Sequence != seq {
		t.Error("expected prior sequence summary to be carried forward")
	}
	if sc.QCID != "prior-id" {
		t.Errorf("expected qc_id carried forward for a missing asset, got %q", sc.QCID)
	}
	if sc.QCResult != sidecar.ResultPass {
		t.Errorf("expected qc_result carried forward for a missing asset, got %q", sc.QCResult)
	}
}

func TestBuildWithoutPriorOrPresenceErrors(t *testing.T) {
	in := baseInput()
	in.AssetPresent = false
	in.Prior = nil

	if _, err := Build(in); err == nil {
		t.Fatal("expected error when neither prior nor current presence exist")
	}
}

func TestBuildOperatorVerdictMintsFreshQCIDAndLastValid(t *testing.T) {
	in := baseInput()
	in.Prior = &sidecar.Sidecar{
		QCID:        "prior-id",
		ContentHash: in.CurrentContentHash,
	}
	in.RunInputs.ResultOverride = sidecar.ResultPass

	sc, err := Build(in)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.QCID == "prior-id" {
		t.Error("expected a fresh qc_id for an operator verdict")
	}
	if sc.QCResult != sidecar.ResultPass {
		t.Errorf("expected pass result, got %s", sc.QCResult)
	}
	if sc.LastValidQCID != sc.QCID {
		t.Errorf("expected last_valid_qc_id to match the new qc_id, got %q vs %q", sc.LastValidQCID, sc.QCID)
	}
	if sc.LastValidQCTime == "" {
		t.Error("expected last_valid_qc_time to be set")
	}
}

func TestBuildOperatorVerdictOnMissingAssetMints(t *testing.T) {
	in := baseInput()
	in.AssetPresent = false
	in.CurrentContentHash = ""
	in.Prior = &sidecar.Sidecar{
		QCID:        "prior-id",
		QCResult:    sidecar.ResultPending,
		ContentHash: "blake3:old",
	}
	in.RunInputs.ResultOverride = sidecar.ResultFail

	sc, err := Build(in)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.ContentState != sidecar.ContentStateMissing {
		t.Errorf("expected missing, got %s", sc.ContentState)
	}
	if sc.QCID == "prior-id" {
		t.Error("expected a fresh qc_id for an operator verdict over a missing asset")
	}
	if sc.QCResult != sidecar.ResultFail {
		t.Errorf("expected fail result, got %s", sc.QCResult)
	}
	if sc.LastValidQCID != sc.QCID {
		t.Errorf("expected last_valid_qc_id to match the new qc_id, got %q vs %q", sc.LastValidQCID, sc.QCID)
	}
}

func TestBuildNightlyRunPreservesLastValid(t *testing.T) {
	in := baseInput()
	in.Prior = &sidecar.Sidecar{
		QCID:            "prior-id",
		ContentHash:     "blake3:old",
		LastValidQCID:   "signed-off-id",
		LastValidQCTime: "2026-01-01T00:00:00Z",
	}

	sc, err := Build(in)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.LastValidQCID != "signed-off-id" {
		t.Errorf("expected last_valid_qc_id to be preserved, got %q", sc.LastValidQCID)
	}
	if sc.LastValidQCTime != "2026-01-01T00:00:00Z" {
		t.Errorf("expected last_valid_qc_time to be preserved, got %q", sc.LastValidQCTime)
	}
}

func TestResolveAssetIDPrecedence(t *testing.T) {
	prior := &sidecar.Sidecar{AssetID: stringPtr("prior-asset")}

	cases := []struct {
		name     string
		in       Input
		expected *string
	}{
		{
			name:     "cli override wins",
			in:       Input{RunInputs: RunInputs{CLIAssetID: stringPtr("cli-asset")}, Prior: prior, Tracker: &TrackerOutcome{AssetID: stringPtr("tracker-asset")}},
			expected: stringPtr("cli-asset"),
		},
		{
			name:     "tracker wins over prior",
			in:       Input{Prior: prior, Tracker: &TrackerOutcome{AssetID: stringPtr("tracker-asset")}},
			expected: stringPtr("tracker-asset"),
		},
		{
			name:     "failed tracker lookup falls through to prior",
			in:       Input{Prior: prior, Tracker: &TrackerOutcome{AssetID: nil, StatusTag: "unauthorized", HTTPCode: 401}},
			expected: stringPtr("prior-asset"),
		},
		{
			name:     "nothing resolved is nil",
			in:       Input{},
			expected: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolveAssetID(tc.in)
			if (got == nil) != (tc.expected == nil) {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
			if got != nil && *got != *tc.expected {
				t.Fatalf("expected %s, got %s", *tc.expected, *got)
			}
		})
	}
}

func TestBuildTrackerStatusPassthrough(t *testing.T) {
	in := baseInput()
	in.Tracker = &TrackerOutcome{StatusTag: "ok", HTTPCode: 200, AssetID: stringPtr("asset-9")}

	sc, err := Build(in)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc.TrackerStatus == nil || sc.TrackerStatus.HTTPCode != 200 || sc.TrackerStatus.Status != "ok" {
		t.Errorf("expected tracker_status to be populated, got %+v", sc.TrackerStatus)
	}
	if sc.AssetID == nil || *sc.AssetID != "asset-9" {
		t.Error("expected tracker-resolved asset id")
	}
}

func TestNewQCIDLooksLikeUUIDv7(t *testing.T) {
	id := newQCID()
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("expected a UUID-shaped id, got %q", id)
	}
	if parts[2][0] != '7' {
		t.Errorf("expected UUIDv7 version nibble, got %q", parts[2])
	}
}
