package crawl

import "testing"

func TestCandidateForSubdirDoesNotStripAssetOwnLeadingDot(t *testing.T) {
	c := candidateFor("/vol/show/shot", ".hidden.mov.qc.json", ".qc.json", "qc.sequence.json", false)
	if c.assetPath != "/vol/show/shot/.hidden.mov" {
		t.Errorf("expected asset path to keep the asset's own leading dot, got %q", c.assetPath)
	}
}

func TestCandidateForDotModeStripsLayoutPrefix(t *testing.T) {
	c := candidateFor("/vol/show/shot", ".clip.mxf.qc.json", ".qc.json", "qc.sequence.json", true)
	if c.assetPath != "/vol/show/shot/clip.mxf" {
		t.Errorf("expected the dot-layout prefix to be stripped, got %q", c.assetPath)
	}
}

func TestCandidateForSubdirSequenceName(t *testing.T) {
	c := candidateFor("/vol/show/shot", "qc.sequence.json", ".qc.json", "qc.sequence.json", false)
	if !c.isSequence || c.assetPath != "/vol/show/shot" {
		t.Errorf("expected a sequence candidate rooted at the directory, got %+v", c)
	}
}
