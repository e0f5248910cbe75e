package hashing

import "testing"

func TestManifestHashOrderIndependent(t *testing.T) {
	frames := []FrameHash{
		{FrameNumber: 2, Filename: "shot.0002.exr", Hash: "blake3:bb"},
		{FrameNumber: 1, Filename: "shot.0001.exr", Hash: "blake3:aa"},
		{FrameNumber: 3, Filename: "shot.0003.exr", Hash: "blake3:cc"},
	}
	shuffled := []FrameHash{frames[2], frames[0], frames[1]}

	a, err := ManifestHash(frames)
	if err != nil {
		t.Fatalf("ManifestHash returned error: %v", err)
	}
	b, err := ManifestHash(shuffled)
	if err != nil {
		t.Fatalf("ManifestHash returned error: %v", err)
	}
	if a != b {
		t.Fatalf("expected manifest hash to be independent of listing order: %q != %q", a, b)
	}
}

func TestManifestHashTiesBrokenByFilename(t *testing.T) {
	a := []FrameHash{
		{FrameNumber: 1, Filename: "b.exr", Hash: "blake3:22"},
		{FrameNumber: 1, Filename: "a.exr", Hash: "blake3:11"},
	}
	b := []FrameHash{
		{FrameNumber: 1, Filename: "a.exr", Hash: "blake3:11"},
		{FrameNumber: 1, Filename: "b.exr", Hash: "blake3:22"},
	}
	ah, err := ManifestHash(a)
	if err != nil {
		t.Fatalf("ManifestHash returned error: %v", err)
	}
	bh, err := ManifestHash(b)
	if err != nil {
		t.Fatalf("ManifestHash returned error: %v", err)
	}
	if ah != bh {
		t.Fatalf("expected identical manifest hash regardless of input order: %q != %q", ah, bh)
	}
}

func TestManifestHashRejectsEmpty(t *testing.T) {
	if _, err := ManifestHash(nil); err == nil {
		t.Fatal("expected error for empty frame set")
	}
}

func TestManifestHashDiffersOnContentChange(t *testing.T) {
	a := []FrameHash{{FrameNumber: 1, Filename: "a.exr", Hash: "blake3:11"}}
	b := []FrameHash{{FrameNumber: 1, Filename: "a.exr", Hash: "blake3:22"}}
	ah, _ := ManifestHash(a)
	bh, _ := ManifestHash(b)
	if ah == bh {
		t.Fatal("expected different manifest hashes for different frame content")
	}
}
